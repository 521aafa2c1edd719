package client

import "github.com/careerflow/interview/internal/protocol"

// enqueuePlayback pushes an inbound audio payload onto the FIFO queue and
// starts the drain goroutine if playback is idle. One payload plays at a
// time; arrival order is playback order.
func (c *Client) enqueuePlayback(payload []byte, gen int) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, payload)
	if c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.mu.Unlock()

	go c.drainPlayback(gen)
}

// drainPlayback plays queued payloads strictly in order. A playback error
// advances to the next item exactly like normal completion; an emptied
// queue flips the local audio state back to listening so the outbound
// pipeline resumes (voice mode).
func (c *Client) drainPlayback(gen int) {
	for {
		c.mu.Lock()
		if c.generation != gen {
			c.playing = false
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.playing = false
			listening := c.opts.Mode == ModeVoice && c.state == StateActive
			if listening {
				c.audioState = protocol.AudioListening
			}
			c.mu.Unlock()
			if listening {
				c.opts.Events.emitAudioState(protocol.AudioListening)
			}
			return
		}
		payload := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if err := c.opts.Player.Play(payload); err != nil {
			c.log.WithError(err).Warn("audio playback failed; advancing queue")
		}
	}
}
