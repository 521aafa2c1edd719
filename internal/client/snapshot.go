package client

import (
	"time"

	"github.com/careerflow/interview/internal/protocol"
)

// Snapshot accessors for UI polling (elapsed-time display, level meter).
// Safe to call from any goroutine, including event callbacks.

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Stage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Client) AudioState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioState
}

func (c *Client) Thinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

func (c *Client) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Client) JobTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobTitle
}

// Transcript returns a copy of the append-only transcript.
func (c *Client) Transcript() []TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptEntry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

func (c *Client) Feedback() *protocol.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedback
}

// Err returns the last surfaced session error, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Elapsed is the time since the session went Active; zero before that.
func (c *Client) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return time.Since(c.startedAt)
}

// InputLevel is the RMS of the most recent capture buffer, 0..1.
func (c *Client) InputLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}
