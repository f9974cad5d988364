package audio

import "time"

// Frame is a single block of captured audio flowing through the outbound
// pipeline. Frames are produced once per capture tick, encoded, and handed to
// the session transport. A Frame is immutable after creation; consumers must
// not modify Samples.
type Frame struct {
	// Samples holds signed 16-bit PCM, mono.
	Samples []int16

	// SampleRate in Hz (e.g., 16000).
	SampleRate int

	// Seq is the capture-order sequence number, strictly increasing from 0
	// for the lifetime of one pipeline. Used only for ordering verification;
	// it is never transmitted.
	Seq uint64
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
