// Package gemini implements the voice.Transport interface for Google's
// Gemini Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live
// endpoint and exchanges JSON messages according to the BidiGenerateContent
// protocol. Audio is transmitted as base64-encoded PCM chunks; the model's
// textual reply arrives as serverContent turns whose text parts are surfaced
// as ordered events.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"encoding/json"

	"github.com/coder/websocket"

	"github.com/voxpath/voxpath/pkg/voice"
)

// Compile-time assertions that Transport and session satisfy the voice interfaces.
var _ voice.Transport = (*Transport)(nil)
var _ voice.Session = (*session)(nil)

const (
	defaultModel   = "gemini-2.0-flash-live-001"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second

	eventBuffer = 64
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Transport.
type Option func(*Transport)

// WithModel sets the default Gemini model used when the session config does
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

// Transport implements voice.Transport for Google's Gemini Live API.
type Transport struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new Gemini Live Transport with the given API key and options.
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

// Connect establishes a new Gemini Live session with the given configuration.
// The returned Session is ready to accept audio immediately after the setup
// message is sent.
func (t *Transport) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	wsURL := fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		t.baseURL, t.apiKey,
	)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = t.model
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		events: make(chan voice.Event, eventBuffer),
		done:   make(chan struct{}),
		ctx:    sessCtx,
		cancel: sessCancel,
	}

	if err := sess.sendSetup(model, cfg); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()

	return sess, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model             string             `json:"model"`
	GenerationConfig  generationConfig   `json:"generationConfig"`
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
	GoAway        *json.RawMessage `json:"goAway,omitempty"`
	Error         *geminiError     `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	conn   *websocket.Conn
	events chan voice.Event

	mu       sync.Mutex
	closed   bool
	terminal bool
	done     chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSetup sends the initial BidiGenerateContent setup message. The session
// requests text-only responses: reply assembly is textual, audio playback is
// not part of this client.
func (s *session) sendSetup(model string, cfg voice.SessionConfig) error {
	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"text"},
			},
		},
	}
	if cfg.SystemPrompt != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.SystemPrompt}},
		}
	}
	return s.writeJSON(msg)
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads messages from the WebSocket and dispatches them. It owns
// the events channel: it closes it when it exits. At most one terminal event
// is delivered; the loop stops reading once one has been emitted.
func (s *session) receiveLoop() {
	defer s.closeEvents()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			// Local close: no terminal event, the channel just closes.
			if s.ctx.Err() != nil {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				s.emit(voice.Event{Closed: true})
			default:
				s.emit(voice.Event{Err: fmt.Errorf("gemini: read: %w", err)})
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}

		if s.handleServerMessage(&msg) {
			return
		}
	}
}

// handleServerMessage dispatches one inbound message. It reports true when a
// terminal event was emitted.
func (s *session) handleServerMessage(msg *serverMessage) bool {
	if msg.Error != nil {
		text := "unknown error"
		if msg.Error.Message != "" {
			text = msg.Error.Message
		}
		s.emit(voice.Event{Err: fmt.Errorf("gemini: %s", text)})
		return true
	}

	if msg.GoAway != nil {
		s.emit(voice.Event{Closed: true})
		return true
	}

	if msg.ServerContent != nil && msg.ServerContent.ModelTurn != nil {
		// Every text part of the turn is appended in part order.
		for _, p := range msg.ServerContent.ModelTurn.Parts {
			if p.Text == "" {
				continue
			}
			s.emit(voice.Event{TextDelta: p.Text})
		}
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

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection alive.
func (s *session) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *session) closeEvents() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// ── Session methods ────────────────────────────────────────────────────────────

// Send delivers a payload as a realtimeInput media chunk. After a terminal
// event or Close the call is a silent no-op.
func (s *session) Send(p voice.Payload) error {
	s.mu.Lock()
	if s.closed || s.terminal {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{
				{MIMEType: p.MIMEType, Data: p.Data},
			},
		},
	}
	if err := s.writeJSON(msg); err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("gemini: send: %w", err)
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

	s.cancel()    // unblocks receiveLoop and keepaliveLoop
	close(s.done) // signals keepaliveLoop via done channel
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
