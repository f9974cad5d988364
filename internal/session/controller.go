package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxpath/voxpath/internal/observe"
	"github.com/voxpath/voxpath/pkg/audio"
	"github.com/voxpath/voxpath/pkg/voice"
)

// Config carries the per-session settings handed to the transport and the
// capture pipeline.
type Config struct {
	// Backend names the voice backend for logs and metric attributes,
	// e.g. "gemini-live" or "openai-realtime".
	Backend string

	// Model overrides the transport's default model when non-empty.
	Model string

	// SystemPrompt is forwarded to the backend as the system instruction.
	SystemPrompt string

	// SampleRate is the capture rate in Hz.
	SampleRate int

	// FrameSamples is the number of samples per capture frame.
	FrameSamples int
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller drives one voice session at a time: it opens the capture
// pipeline, connects the transport, streams encoded frames upward, and folds
// reply deltas into the transcript.
//
// All methods are safe for concurrent use. The zero value is not usable;
// construct with [New].
type Controller struct {
	device    audio.Device
	transport voice.Transport
	cfg       Config
	metrics   *observe.Metrics
	logger    *slog.Logger

	assembler Assembler

	mu        sync.Mutex
	state     State
	sessionID string
	lastErr   error
	pipeline  *audio.Pipeline
	sess      voice.Session
	cancel    context.CancelFunc // ends the session-lifetime context
	done      chan struct{}      // closed when the receive loop exits
	counted   bool               // active-sessions gauge incremented
}

// New creates a Controller in the idle state.
func New(device audio.Device, transport voice.Transport, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		device:    device,
		transport: transport,
		cfg:       cfg,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Start brings the session from idle to active: transport handshake first,
// then the capture pipeline, then the streaming loops. It returns once the
// session is active or has failed. A controller that is not idle rejects
// Start with [ErrAlreadyStarted]; if Stop wins a race with the startup
// sequence, Start releases everything and returns [ErrStopped].
//
// ctx bounds the connect attempt only. The running session has its own
// lifetime, ended by Stop or by the backend, so callers may pass a
// short-lived context (an HTTP request's, say) without cutting the session
// short.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, c.state)
	}
	c.setStateLocked(StateConnecting, nil)
	c.sessionID = uuid.NewString()
	id := c.sessionID
	c.mu.Unlock()

	log := c.logger.With(slog.String("session_id", id), slog.String("backend", c.cfg.Backend))

	connectStart := time.Now()
	sess, err := c.transport.Connect(ctx, voice.SessionConfig{
		Model:        c.cfg.Model,
		SystemPrompt: c.cfg.SystemPrompt,
		SampleRate:   c.cfg.SampleRate,
	})
	c.metrics.ConnectDuration.Record(ctx, time.Since(connectStart).Seconds())
	if err != nil {
		log.Error("voice backend connect failed", slog.String("error", err.Error()))
		c.failDuringStart(fmt.Errorf("%w: %v", ErrConnectFailed, err))
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	pipeline := audio.NewPipeline(c.device, c.cfg.SampleRate, c.cfg.FrameSamples,
		audio.WithDropHandler(func() {
			c.metrics.FramesDropped.Add(context.Background(), 1)
		}),
	)

	// The capture loop must outlive ctx: it runs for the whole active state,
	// not just the call that started it.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	frames, err := pipeline.Start(sessCtx)
	if err != nil {
		sessCancel()
		sess.Close()
		log.Error("capture pipeline start failed", slog.String("error", err.Error()))
		c.failDuringStart(fmt.Errorf("%w: %v", ErrCaptureUnavailable, err))
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	done := make(chan struct{})

	c.mu.Lock()
	if c.state != StateConnecting {
		// Stop raced with the handshake. Release everything and leave the
		// terminal state it picked in place.
		c.mu.Unlock()
		sessCancel()
		pipeline.Stop()
		sess.Close()
		return ErrStopped
	}
	c.pipeline = pipeline
	c.sess = sess
	c.cancel = sessCancel
	c.done = done
	c.counted = true
	c.setStateLocked(StateActive, nil)
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, 1)
	log.Info("voice session active")

	go c.sendLoop(frames, sess, log)
	go c.recvLoop(sess, done, log)

	return nil
}

// sendLoop encodes each captured frame and forwards it to the backend. Send
// errors are logged and counted but never terminate the session.
func (c *Controller) sendLoop(frames <-chan audio.Frame, sess voice.Session, log *slog.Logger) {
	ctx := context.Background()
	for frame := range frames {
		c.metrics.FramesCaptured.Add(ctx, 1)
		payload := voice.EncodeFrame(frame)
		if err := sess.Send(payload); err != nil {
			c.metrics.RecordSendFailure(ctx, c.cfg.Backend)
			log.Warn("frame delivery refused",
				slog.Uint64("seq", frame.Seq),
				slog.String("error", err.Error()))
			continue
		}
		c.metrics.FramesSent.Add(ctx, 1)
	}
}

// recvLoop consumes backend events until the stream ends. Text deltas go to
// the transcript; a terminal error fails the session; a remote close or a
// locally-initiated close both land in the closed state.
func (c *Controller) recvLoop(sess voice.Session, done chan struct{}, log *slog.Logger) {
	defer close(done)
	ctx := context.Background()

	for ev := range sess.Events() {
		switch {
		case ev.Err != nil:
			log.Error("voice backend error", slog.String("error", ev.Err.Error()))
			c.teardown()
			c.finish(StateFailed, fmt.Errorf("%w: %v", ErrBackendError, ev.Err))
			return
		case ev.Closed:
			log.Info("voice backend closed the session")
			c.teardown()
			c.finish(StateClosed, nil)
			return
		case ev.TextDelta != "":
			c.assembler.Append(ev.TextDelta)
			c.metrics.TranscriptEntries.Add(ctx, 1)
		}
	}

	// Event stream closed without a terminal event: the session was closed
	// locally (or the transport shut down quietly). Either way the outcome
	// is a clean close.
	c.teardown()
	c.finish(StateClosed, nil)
}

// failDuringStart records a handshake failure unless Stop already moved the
// session to a terminal state.
func (c *Controller) failDuringStart(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.setStateLocked(StateFailed, err)
}

// teardown releases the pipeline and the transport session. Both are
// idempotent, so teardown may run from multiple paths.
func (c *Controller) teardown() {
	c.mu.Lock()
	pipeline, sess, cancel := c.pipeline, c.sess, c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if pipeline != nil {
		pipeline.Stop()
	}
	if sess != nil {
		sess.Close()
	}
}

// finish moves the session into a terminal state unless it is already in one.
// Failed is sticky: a close racing with a backend error keeps the error.
func (c *Controller) finish(terminal State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.setStateLocked(terminal, err)
	if c.counted {
		c.counted = false
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// setStateLocked transitions the state and records the transition metric.
// Callers must hold c.mu.
func (c *Controller) setStateLocked(next State, err error) {
	prev := c.state
	c.state = next
	c.lastErr = err
	c.metrics.RecordTransition(context.Background(), prev.String(), next.String())
}

// Stop ends the session and blocks until all resources are released. It is
// idempotent and safe to call from any state; on an idle or already-terminal
// controller it does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateActive && c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateClosing, nil)
	pipeline, sess, cancel, done := c.pipeline, c.sess, c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pipeline != nil {
		pipeline.Stop()
	}
	if sess != nil {
		sess.Close()
	}
	if done != nil {
		<-done
	}
	c.finish(StateClosed, nil)
}

// Reset returns a terminal controller to idle so a fresh session can start.
// The transcript is cleared. Reset on a non-terminal controller is a no-op.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return
	}
	c.setStateLocked(StateIdle, nil)
	c.sessionID = ""
	c.pipeline = nil
	c.sess = nil
	c.cancel = nil
	c.done = nil
	c.assembler.Reset()
}

// Status returns a snapshot of the session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, SessionID: c.sessionID, Err: c.lastErr}
}

// Transcript returns the reply deltas assembled so far, in arrival order.
func (c *Controller) Transcript() []Entry {
	return c.assembler.Entries()
}

// TranscriptText returns the full assembled reply text.
func (c *Controller) TranscriptText() string {
	return c.assembler.Text()
}
