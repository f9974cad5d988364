// Package openai implements the voice.Transport interface for OpenAI's
// Realtime API.
//
// It establishes a bidirectional WebSocket connection to the OpenAI Realtime
// endpoint and exchanges JSON events according to the Realtime API protocol.
// Audio is transmitted as base64-encoded PCM16 chunks via
// input_audio_buffer.append events; the model's textual reply arrives as
// response.text.delta events.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/voxpath/voxpath/pkg/voice"
)

// Compile-time assertions that Transport and session satisfy the voice interfaces.
var _ voice.Transport = (*Transport)(nil)
var _ voice.Session = (*session)(nil)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	eventBuffer = 64
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Transport.
type Option func(*Transport)

// WithModel sets the default OpenAI model used when the session config does
// not name one.
func WithModel(model string) Option {
	return func(t *Transport) { t.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(t *Transport) { t.baseURL = url }
}

// ── Transport ──────────────────────────────────────────────────────────────────

// Transport implements voice.Transport for OpenAI's Realtime API.
type Transport struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new OpenAI Realtime Transport with the given API key and options.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Connect establishes a new OpenAI Realtime session with the given
// configuration. The returned Session is ready to accept audio immediately
// after the session.update message is sent.
func (t *Transport) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	model := cfg.Model
	if model == "" {
		model = t.model
	}
	wsURL := fmt.Sprintf("%s?model=%s", t.baseURL, model)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + t.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		events: make(chan voice.Event, eventBuffer),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSessionUpdate(cfg.SystemPrompt); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openai: session update: %w", err)
	}

	go sess.receiveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities       []string `json:"modalities"`
	Instructions     string   `json:"instructions,omitempty"`
	InputAudioFormat string   `json:"input_audio_format"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

// serverErrorDetail represents the nested error object in an OpenAI Realtime
// error event: {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type serverEvent struct {
	Type string `json:"type"`

	// response.text.delta
	Delta string `json:"delta,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn   *websocket.Conn
	events chan voice.Event

	mu       sync.Mutex
	closed   bool
	terminal bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSessionUpdate sends a session.update event configuring a text-only
// response modality and the PCM16 input format.
func (s *session) sendSessionUpdate(instructions string) error {
	params := sessionParams{
		Modalities:       []string{"text"},
		InputAudioFormat: "pcm16",
	}
	if instructions != "" {
		params.Instructions = instructions
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openai: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket and dispatches them. It owns
// the events channel: it closes it when it exits. At most one terminal event
// is delivered.
func (s *session) receiveLoop() {
	defer s.closeEvents()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.emit(voice.Event{Closed: true})
			default:
				s.emit(voice.Event{Err: fmt.Errorf("openai: read: %w", err)})
			}
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		if s.handleServerEvent(&evt) {
			return
		}
	}
}

// handleServerEvent dispatches one inbound event. It reports true when a
// terminal event was emitted.
func (s *session) handleServerEvent(evt *serverEvent) bool {
	switch evt.Type {
	case "response.text.delta":
		if evt.Delta == "" {
			return false
		}
		s.emit(voice.Event{TextDelta: evt.Delta})

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.emit(voice.Event{Err: fmt.Errorf("openai: %s", msg)})
		return true
	}
	return false
}

// emit delivers ev on the events channel, recording terminal delivery so that
// subsequent sends become no-ops.
func (s *session) emit(ev voice.Event) {
	if ev.Terminal() {
		s.mu.Lock()
		s.terminal = true
		s.mu.Unlock()
	}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *session) closeEvents() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// ── Session methods ────────────────────────────────────────────────────────────

// Send delivers a payload as an input_audio_buffer.append event. The payload
// data is forwarded verbatim; it is already base64-encoded PCM16. After a
// terminal event or Close the call is a silent no-op.
func (s *session) Send(p voice.Payload) error {
	s.mu.Lock()
	if s.closed || s.terminal {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	msg := appendAudioMessage{Type: "input_audio_buffer.append", Audio: p.Data}
	if err := s.writeJSON(msg); err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("openai: send: %w", err)
	}
	return nil
}

// Events returns the inbound event stream.
func (s *session) Events() <-chan voice.Event { return s.events }

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
