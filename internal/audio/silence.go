package audio

import "time"

// Defaults for end-of-utterance detection on the service side.
const (
	DefaultSilenceThreshold = 500.0 // RMS over int16 samples
	DefaultSilenceDuration  = 1500 * time.Millisecond
	DefaultCooldown         = 2 * time.Second
)

// SilenceDetector watches a stream of inbound PCM chunks and reports when a
// speaker has finished a turn: speech was heard, then sustained silence.
// It is owned by a single reader loop and is not safe for concurrent use.
type SilenceDetector struct {
	Threshold float64
	Duration  time.Duration

	speaking     bool
	silenceSince time.Time
	now          func() time.Time
}

func NewSilenceDetector(threshold float64, duration time.Duration) *SilenceDetector {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	if duration <= 0 {
		duration = DefaultSilenceDuration
	}
	return &SilenceDetector{Threshold: threshold, Duration: duration, now: time.Now}
}

// Feed observes one PCM chunk and returns true when the utterance is
// complete. The caller resets the detector before the next turn.
func (d *SilenceDetector) Feed(chunk []byte) bool {
	rms := RMS(chunk)
	if rms > d.Threshold {
		d.speaking = true
		d.silenceSince = time.Time{}
		return false
	}
	if !d.speaking {
		return false
	}
	if d.silenceSince.IsZero() {
		d.silenceSince = d.now()
		return false
	}
	return d.now().Sub(d.silenceSince) >= d.Duration
}

// Speaking reports whether speech has been heard since the last Reset.
func (d *SilenceDetector) Speaking() bool { return d.speaking }

// Reset clears detector state for the next utterance.
func (d *SilenceDetector) Reset() {
	d.speaking = false
	d.silenceSince = time.Time{}
}
