package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/voxpath/voxpath/internal/observe"
	"github.com/voxpath/voxpath/internal/session"
	audiomock "github.com/voxpath/voxpath/pkg/audio/mock"
	"github.com/voxpath/voxpath/pkg/voice"
	voicemock "github.com/voxpath/voxpath/pkg/voice/mock"
)

// testConfig uses a small frame so the capture cadence is around a
// millisecond and tests run fast.
func testConfig() session.Config {
	return session.Config{
		Backend:      "mock",
		Model:        "test-model",
		SystemPrompt: "You are a career mentor.",
		SampleRate:   16000,
		FrameSamples: 16,
	}
}

func newTestController(t *testing.T, dev *audiomock.Device, tr voice.Transport) *session.Controller {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return session.New(dev, tr, testConfig(), session.WithMetrics(m))
}

// waitState polls until the controller reaches want or the deadline passes.
func waitState(t *testing.T, c *session.Controller, want session.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status().State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s; want %s", c.Status().State, want)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStart_ConnectFailureEndsFailed(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{ConnectErr: errors.New("backend down")}
	c := newTestController(t, dev, tr)

	err := c.Start(context.Background())
	if !errors.Is(err, session.ErrConnectFailed) {
		t.Fatalf("Start error = %v; want ErrConnectFailed", err)
	}

	st := c.Status()
	if st.State != session.StateFailed {
		t.Errorf("state = %s; want failed", st.State)
	}
	if !errors.Is(st.Err, session.ErrConnectFailed) {
		t.Errorf("status err = %v; want ErrConnectFailed", st.Err)
	}
	// The capture device must never have been touched.
	if dev.OpenCount() != 0 {
		t.Errorf("device opened %d times; want 0", dev.OpenCount())
	}
}

func TestStart_DeviceFailureClosesSession(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{OpenErr: errors.New("no microphone")}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	err := c.Start(context.Background())
	if !errors.Is(err, session.ErrCaptureUnavailable) {
		t.Fatalf("Start error = %v; want ErrCaptureUnavailable", err)
	}
	if st := c.Status().State; st != session.StateFailed {
		t.Errorf("state = %s; want failed", st)
	}
	// The transport session opened during the handshake must be released.
	if tr.Session == nil || tr.Session.CloseCount() == 0 {
		t.Error("transport session was not closed after device failure")
	}
}

func TestStart_PassesConfigToTransport(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	calls := tr.ConnectCalls()
	if len(calls) != 1 {
		t.Fatalf("Connect called %d times; want 1", len(calls))
	}
	if calls[0].Model != "test-model" {
		t.Errorf("model = %q; want test-model", calls[0].Model)
	}
	if calls[0].SystemPrompt != "You are a career mentor." {
		t.Errorf("system prompt = %q", calls[0].SystemPrompt)
	}
	if calls[0].SampleRate != 16000 {
		t.Errorf("sample rate = %d; want 16000", calls[0].SampleRate)
	}
	if c.Status().SessionID == "" {
		t.Error("active session must carry a session ID")
	}
}

func TestStart_SecondCallRejected(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, session.ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v; want ErrAlreadyStarted", err)
	}
	if dev.OpenCount() != 1 {
		t.Errorf("device opened %d times; want 1", dev.OpenCount())
	}
}

// hookedTransport runs a callback before delegating Connect, letting tests
// interleave calls with the startup sequence.
type hookedTransport struct {
	*voicemock.Transport
	beforeConnect func()
}

func (h *hookedTransport) Connect(ctx context.Context, cfg voice.SessionConfig) (voice.Session, error) {
	if h.beforeConnect != nil {
		h.beforeConnect()
	}
	return h.Transport.Connect(ctx, cfg)
}

func TestStop_DuringStartupReturnsErrStopped(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &hookedTransport{Transport: &voicemock.Transport{}}
	c := newTestController(t, dev, tr)
	tr.beforeConnect = func() { c.Stop() }

	err := c.Start(context.Background())
	if !errors.Is(err, session.ErrStopped) {
		t.Fatalf("Start error = %v; want ErrStopped", err)
	}
	if st := c.Status().State; st != session.StateClosed {
		t.Errorf("state = %s; want closed", st)
	}
	// Everything acquired during the doomed startup must be released again.
	if tr.Session == nil || tr.Session.CloseCount() == 0 {
		t.Error("transport session was not closed")
	}
	if len(dev.Readers) != 1 || !dev.Readers[0].Closed() {
		t.Error("capture device was not released")
	}
}

func TestActiveSession_OutlivesStartContext(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	// The starting context ends as soon as the caller returns (an HTTP
	// handler's request context, say). Capture must keep running.
	cancel()

	before := tr.Session.SendCount()
	eventually(t, func() bool { return tr.Session.SendCount() > before+3 },
		"capture stopped after the starting context was cancelled")

	if st := c.Status().State; st != session.StateActive {
		t.Errorf("state = %s; want active", st)
	}
	if dev.Readers[0].Closed() {
		t.Error("capture device was released while the session is active")
	}
}

func TestActiveSession_StreamsFramesUpward(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	eventually(t, func() bool { return tr.Session.SendCount() >= 3 },
		"no frames reached the transport")

	for i, p := range tr.Session.SendCalls()[:3] {
		if p.MIMEType != "audio/pcm;rate=16000" {
			t.Errorf("payload %d: mime = %q; want audio/pcm;rate=16000", i, p.MIMEType)
		}
		if p.Data == "" {
			t.Errorf("payload %d: empty data", i)
		}
	}
}

func TestActiveSession_AssemblesTranscriptInOrder(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, d := range []string{"Hi", " there", "!"} {
		tr.Session.Emit(voice.Event{TextDelta: d})
	}

	eventually(t, func() bool { return len(c.Transcript()) == 3 },
		"transcript never reached 3 entries")

	entries := c.Transcript()
	want := []string{"Hi", " there", "!"}
	for i, e := range entries {
		if e.Seq != i || e.Text != want[i] {
			t.Errorf("entry %d = {%d %q}; want {%d %q}", i, e.Seq, e.Text, i, want[i])
		}
	}
	if got := c.TranscriptText(); got != "Hi there!" {
		t.Errorf("TranscriptText() = %q; want %q", got, "Hi there!")
	}

	c.Stop()
}

func TestSendFailure_DoesNotEndSession(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	sess := voicemock.NewSession()
	sess.SendErr = errors.New("buffer full")
	tr := &voicemock.Transport{Session: sess}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	eventually(t, func() bool { return sess.SendCount() >= 5 },
		"frames stopped flowing after send errors")

	if st := c.Status().State; st != session.StateActive {
		t.Errorf("state = %s; want active despite send failures", st)
	}
}

func TestStop_ReleasesEverything(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let a few frames flow first.
	eventually(t, func() bool { return tr.Session.SendCount() > 0 },
		"no frames before stop")

	c.Stop()

	if st := c.Status().State; st != session.StateClosed {
		t.Errorf("state = %s; want closed", st)
	}
	if !dev.Readers[0].Closed() {
		t.Error("capture device was not released")
	}
	if tr.Session.CloseCount() == 0 {
		t.Error("transport session was not closed")
	}

	// Stop is idempotent: a second call must not touch the session again.
	before := tr.Session.CloseCount()
	c.Stop()
	if got := tr.Session.CloseCount(); got != before {
		t.Errorf("second Stop closed the session again (%d -> %d)", before, got)
	}
}

func TestBackendError_FailsSession(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr.Session.Emit(voice.Event{Err: errors.New("quota exceeded")})
	tr.Session.CloseEvents()

	waitState(t, c, session.StateFailed)

	st := c.Status()
	if !errors.Is(st.Err, session.ErrBackendError) {
		t.Errorf("status err = %v; want ErrBackendError", st.Err)
	}
	eventually(t, func() bool { return dev.Readers[0].Closed() },
		"capture device not released after backend error")
}

func TestRemoteClose_EndsClosed(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr.Session.Emit(voice.Event{Closed: true})
	tr.Session.CloseEvents()

	waitState(t, c, session.StateClosed)
	if err := c.Status().Err; err != nil {
		t.Errorf("clean close should carry no error, got %v", err)
	}
}

func TestReset_AllowsRestart(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{ConnectErr: errors.New("down")}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start should have failed")
	}
	waitState(t, c, session.StateFailed)

	c.Reset()
	if st := c.Status(); st.State != session.StateIdle || st.Err != nil || st.SessionID != "" {
		t.Fatalf("after Reset: %+v; want idle with no error", st)
	}
	if len(c.Transcript()) != 0 {
		t.Error("Reset should clear the transcript")
	}

	tr.ConnectErr = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart after Reset: %v", err)
	}
	c.Stop()
}

func TestReset_NoOpWhileActive(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	tr := &voicemock.Transport{}
	c := newTestController(t, dev, tr)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	c.Reset()
	if st := c.Status().State; st != session.StateActive {
		t.Errorf("Reset changed an active session to %s", st)
	}
}
