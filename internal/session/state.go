// Package session coordinates a live voice session: it owns the capture
// pipeline, the streaming transport, and the transcript, and exposes a small
// state machine that the rest of the application observes.
package session

import "errors"

// State is the lifecycle state of a voice session.
type State int

const (
	// StateIdle means no session is running and Start may be called.
	StateIdle State = iota

	// StateConnecting means the transport handshake is in progress.
	StateConnecting

	// StateActive means audio is streaming and replies are being assembled.
	StateActive

	// StateClosing means a local Stop is in progress.
	StateClosing

	// StateClosed means the session ended cleanly.
	StateClosed

	// StateFailed means the session ended with an error. See Status.Err.
	StateFailed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is an end state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Sentinel errors surfaced through Status.Err and Start.
var (
	// ErrAlreadyStarted is returned by Start when a session is not idle.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrCaptureUnavailable marks a session that failed because the audio
	// device could not be opened.
	ErrCaptureUnavailable = errors.New("session: capture device unavailable")

	// ErrConnectFailed marks a session that failed during the transport
	// handshake.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrBackendError marks a session terminated by the voice backend.
	ErrBackendError = errors.New("session: backend error")

	// ErrStopped is returned by Start when Stop won a race with the
	// startup sequence. The session ends in the state Stop picked.
	ErrStopped = errors.New("session: stopped during startup")
)

// Status is a point-in-time snapshot of the session.
type Status struct {
	State     State
	SessionID string
	Err       error
}
