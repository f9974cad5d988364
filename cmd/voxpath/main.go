// Command voxpath is the main entry point for the Voxpath onboarding server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxpath/voxpath/internal/app"
	"github.com/voxpath/voxpath/internal/config"
	"github.com/voxpath/voxpath/internal/observe"
	"github.com/voxpath/voxpath/pkg/audio/portaudio"
	"github.com/voxpath/voxpath/pkg/roadmap"
	roadmapanyllm "github.com/voxpath/voxpath/pkg/roadmap/anyllm"
	roadmapopenai "github.com/voxpath/voxpath/pkg/roadmap/openai"
	"github.com/voxpath/voxpath/pkg/voice"
	geminilive "github.com/voxpath/voxpath/pkg/voice/gemini"
	oairealtime "github.com/voxpath/voxpath/pkg/voice/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxpath: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxpath: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("voxpath starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxpath",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Voice backend ─────────────────────────────────────────────────────────
	transport, err := buildTransport(cfg)
	if err != nil {
		slog.Error("failed to build voice transport", "err", err)
		return 1
	}
	slog.Info("voice backend ready", "backend", cfg.Voice.Backend)

	// ── Roadmap generator ─────────────────────────────────────────────────────
	generator, err := buildGenerator(cfg)
	if err != nil {
		slog.Error("failed to build roadmap generator", "err", err)
		return 1
	}
	slog.Info("roadmap provider ready", "provider", cfg.Roadmap.Provider, "model", cfg.Roadmap.Model)

	// ── Application ───────────────────────────────────────────────────────────
	application := app.New(cfg, portaudio.New(), transport, generator, app.WithLogger(logger))

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildTransport constructs the streaming voice transport named in the
// config. API keys fall back to the backend's usual environment variable.
func buildTransport(cfg *config.Config) (voice.Transport, error) {
	switch cfg.Voice.Backend {
	case config.BackendGeminiLive:
		var opts []geminilive.Option
		if cfg.Voice.Model != "" {
			opts = append(opts, geminilive.WithModel(cfg.Voice.Model))
		}
		if cfg.Voice.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(cfg.Voice.BaseURL))
		}
		return geminilive.New(apiKeyOrEnv(cfg.Voice.APIKey, "GEMINI_API_KEY"), opts...), nil

	case config.BackendOpenAIRealtime:
		var opts []oairealtime.Option
		if cfg.Voice.Model != "" {
			opts = append(opts, oairealtime.WithModel(cfg.Voice.Model))
		}
		if cfg.Voice.BaseURL != "" {
			opts = append(opts, oairealtime.WithBaseURL(cfg.Voice.BaseURL))
		}
		return oairealtime.New(apiKeyOrEnv(cfg.Voice.APIKey, "OPENAI_API_KEY"), opts...), nil

	default:
		return nil, fmt.Errorf("unknown voice backend %q", cfg.Voice.Backend)
	}
}

// buildGenerator constructs the roadmap generator named in the config. The
// "openai" provider uses the official SDK; everything else goes through the
// any-llm multiplexer.
func buildGenerator(cfg *config.Config) (roadmap.Generator, error) {
	switch cfg.Roadmap.Provider {
	case "openai":
		var opts []roadmapopenai.Option
		if cfg.Roadmap.BaseURL != "" {
			opts = append(opts, roadmapopenai.WithBaseURL(cfg.Roadmap.BaseURL))
		}
		return roadmapopenai.New(apiKeyOrEnv(cfg.Roadmap.APIKey, "OPENAI_API_KEY"), cfg.Roadmap.Model, opts...)

	default:
		var opts []anyllmlib.Option
		if key := apiKeyOrEnv(cfg.Roadmap.APIKey, providerKeyEnv(cfg.Roadmap.Provider)); key != "" {
			opts = append(opts, anyllmlib.WithAPIKey(key))
		}
		if cfg.Roadmap.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.Roadmap.BaseURL))
		}
		return roadmapanyllm.New(cfg.Roadmap.Provider, cfg.Roadmap.Model, opts...)
	}
}

// providerKeyEnv names the conventional API-key environment variable for a
// roadmap provider. Ollama is a local server and needs none.
func providerKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "ollama":
		return ""
	default:
		return "OPENAI_API_KEY"
	}
}

func apiKeyOrEnv(key, envVar string) string {
	if key != "" || envVar == "" {
		return key
	}
	return os.Getenv(envVar)
}
