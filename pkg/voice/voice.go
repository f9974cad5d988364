// Package voice defines the transport boundary for real-time voice sessions.
//
// A [Transport] dials the conversational backend and returns a [Session]: a
// bidirectional handle that accepts encoded audio payloads and emits inbound
// [Event] values (text deltas plus at most one terminal event). Concrete
// backends live in subpackages (voice/gemini, voice/openai); voice/mock
// provides test doubles.
//
// All implementations must be safe for concurrent use.
package voice

import "context"

// Payload is the wire representation of one audio frame: a text-encoded
// binary block tagged with a format descriptor. Payloads are immutable and
// owned by the transport only for the duration of the Send call.
type Payload struct {
	// Data is the base64-encoded little-endian PCM16 block.
	Data string

	// MIMEType describes encoding and sample rate, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// Event is one inbound notification from the backend. At most one of the
// terminal fields (Err, Closed) is ever delivered per session; after a
// terminal event no further events arrive and the event channel is closed.
type Event struct {
	// TextDelta is a fragment of the model's textual reply, in the order the
	// backend produced it. Empty on terminal events.
	TextDelta string

	// Err reports an abnormal session termination by the remote side.
	Err error

	// Closed reports a clean remote close.
	Closed bool
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Err != nil || e.Closed
}

// SessionConfig is the initial configuration for a new voice session.
type SessionConfig struct {
	// Model is the backend model identifier. Empty selects the transport's
	// default.
	Model string

	// SystemPrompt guides backend behaviour for the whole session. Opaque to
	// the transport.
	SystemPrompt string

	// SampleRate is the capture/encode rate in Hz the session will send.
	SampleRate int
}

// Session is an open bidirectional voice session.
//
// Callers must call Close when the session is no longer needed.
type Session interface {
	// Send delivers one encoded audio payload. It is fire-and-forget from the
	// caller's perspective: delivery failures surface asynchronously as
	// lifecycle events, and Send after a terminal event is a silent no-op.
	// A non-nil error reports an individual delivery failure only; it does
	// not by itself terminate the session.
	Send(p Payload) error

	// Events returns the inbound event stream in backend production order.
	// The channel is closed after a terminal event or after Close.
	Events() <-chan Event

	// Close terminates the session and releases the connection. Idempotent.
	Close() error
}

// Transport dials the conversational backend.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	// Connect establishes a new session. The supplied ctx governs the
	// lifetime of the connection attempt only; an established Session lives
	// until Close or a terminal event.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
