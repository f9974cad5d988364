// Package mock provides test doubles for the voice interfaces.
//
// The mocks record every call and let tests script the event stream, so
// session-level behavior can be tested without a live WebSocket backend.
package mock

import (
	"context"
	"sync"

	"github.com/voxpath/voxpath/pkg/voice"
)

// Compile-time interface assertions.
var _ voice.Transport = (*Transport)(nil)
var _ voice.Session = (*Session)(nil)

// Transport is a configurable mock implementation of voice.Transport.
type Transport struct {
	// ConnectErr, when non-nil, is returned by Connect.
	ConnectErr error

	// Session is the session handed out by Connect. If nil, Connect creates
	// a fresh one and stores it here.
	Session *Session

	mu           sync.Mutex
	connectCalls []voice.SessionConfig
}

// Connect records the call and returns the configured session or error.
func (t *Transport) Connect(_ context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectCalls = append(t.connectCalls, cfg)
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	if t.Session == nil {
		t.Session = NewSession()
	}
	return t.Session, nil
}

// ConnectCalls returns a copy of the configs passed to Connect.
func (t *Transport) ConnectCalls() []voice.SessionConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]voice.SessionConfig, len(t.connectCalls))
	copy(out, t.connectCalls)
	return out
}

// ConnectCount returns how many times Connect was called.
func (t *Transport) ConnectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connectCalls)
}

// Session is a scriptable mock implementation of voice.Session.
//
// Tests drive the event stream through Emit and CloseEvents; sent payloads
// are recorded and retrievable via SendCalls.
type Session struct {
	// SendErr, when non-nil, is returned by every Send.
	SendErr error

	// KeepEventsOpen stops Close from ending the event stream, for tests
	// that script the stream lifecycle themselves via CloseEvents.
	KeepEventsOpen bool

	mu         sync.Mutex
	sendCalls  []voice.Payload
	closeCount int

	events    chan voice.Event
	closeOnce sync.Once
}

// NewSession creates a Session with a buffered event stream.
func NewSession() *Session {
	return &Session{events: make(chan voice.Event, 64)}
}

// Send records the payload and returns SendErr.
func (s *Session) Send(p voice.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCalls = append(s.sendCalls, p)
	return s.SendErr
}

// Events returns the scripted event stream.
func (s *Session) Events() <-chan voice.Event { return s.events }

// Close records the call. Unless KeepEventsOpen is set it also ends the
// event stream, mirroring a real session whose receive loop exits after a
// local close.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closeCount++
	keepOpen := s.KeepEventsOpen
	s.mu.Unlock()
	if !keepOpen {
		s.CloseEvents()
	}
	return nil
}

// Emit delivers an event on the stream.
func (s *Session) Emit(ev voice.Event) { s.events <- ev }

// CloseEvents closes the event stream. Idempotent.
func (s *Session) CloseEvents() {
	s.closeOnce.Do(func() { close(s.events) })
}

// SendCalls returns a copy of all payloads passed to Send.
func (s *Session) SendCalls() []voice.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]voice.Payload, len(s.sendCalls))
	copy(out, s.sendCalls)
	return out
}

// SendCount returns how many times Send was called.
func (s *Session) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sendCalls)
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}
