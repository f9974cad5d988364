// Package app wires all Voxpath subsystems into a running application.
//
// The App struct owns the onboarding wizard, the voice session controller,
// and the roadmap generator, and exposes them over a small JSON HTTP API.
// New creates and connects the subsystems; Run serves the API until the
// context is cancelled.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxpath/voxpath/internal/config"
	"github.com/voxpath/voxpath/internal/health"
	"github.com/voxpath/voxpath/internal/observe"
	"github.com/voxpath/voxpath/internal/session"
	"github.com/voxpath/voxpath/internal/wizard"
	"github.com/voxpath/voxpath/pkg/audio"
	"github.com/voxpath/voxpath/pkg/roadmap"
	"github.com/voxpath/voxpath/pkg/voice"
)

// shutdownTimeout bounds the graceful HTTP shutdown during Run teardown.
const shutdownTimeout = 10 * time.Second

// generateTimeout bounds one roadmap generation call.
const generateTimeout = 120 * time.Second

// App owns the subsystem lifetimes and the HTTP API.
type App struct {
	cfg        *config.Config
	wizard     *wizard.Wizard
	controller *session.Controller
	generator  roadmap.Generator
	metrics    *observe.Metrics
	logger     *slog.Logger
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger injects a logger instead of slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App by wiring the wizard, the session controller, and the
// generator together. The device, transport, and generator come from
// main.go, selected from the config.
func New(cfg *config.Config, device audio.Device, transport voice.Transport, generator roadmap.Generator, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		wizard:    wizard.New(),
		generator: generator,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	a.controller = session.New(device, transport, session.Config{
		Backend:      string(cfg.Voice.Backend),
		Model:        cfg.Voice.Model,
		SystemPrompt: cfg.Voice.SystemPrompt,
		SampleRate:   cfg.Audio.SampleRate,
		FrameSamples: cfg.Audio.FrameSamples,
	}, session.WithMetrics(a.metrics), session.WithLogger(a.logger))

	return a
}

// Handler builds the full HTTP handler: the JSON API wrapped in the
// observability middleware, plus health and metrics endpoints.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/status", a.handleStatus)
	mux.HandleFunc("GET /v1/transcript", a.handleTranscript)
	mux.HandleFunc("POST /v1/voice/toggle", a.handleVoiceToggle)
	mux.HandleFunc("POST /v1/wizard/advance", a.handleWizardAdvance)
	mux.HandleFunc("POST /v1/wizard/profile", a.handleWizardProfile)
	mux.HandleFunc("POST /v1/generate", a.handleGenerate)

	health.New(
		health.Checker{Name: "voice_session", Check: a.checkVoiceSession},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// checkVoiceSession fails readiness only when the session sits in a failed
// state that nothing has acknowledged yet.
func (a *App) checkVoiceSession(_ context.Context) error {
	st := a.controller.Status()
	if st.State == session.StateFailed {
		return st.Err
	}
	return nil
}

// Run serves the HTTP API until ctx is cancelled, then shuts down the server
// and the voice session gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: a.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		a.controller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
