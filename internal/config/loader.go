package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidRoadmapProviders lists known roadmap provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidRoadmapProviders = []string{"openai", "anthropic", "gemini", "ollama"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSamples == 0 {
		cfg.Audio.FrameSamples = DefaultFrameSamples
	}
	if cfg.Audio.FrameSamples < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_samples %d must be positive", cfg.Audio.FrameSamples))
	}

	// Voice
	if cfg.Voice.Backend != "" && !cfg.Voice.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("voice.backend %q is invalid; valid values: gemini-live, openai-realtime", cfg.Voice.Backend))
	}
	if cfg.Voice.Backend != "" && cfg.Voice.APIKey == "" {
		slog.Warn("voice.api_key is empty; the backend will rely on its environment variable")
	}

	// Roadmap
	if cfg.Roadmap.Provider != "" && !slices.Contains(ValidRoadmapProviders, cfg.Roadmap.Provider) {
		slog.Warn("roadmap.provider is not a known provider name",
			slog.String("provider", cfg.Roadmap.Provider),
			slog.Any("known", ValidRoadmapProviders))
	}
	if cfg.Roadmap.Provider != "" && cfg.Roadmap.Model == "" {
		errs = append(errs, fmt.Errorf("roadmap.model is required when roadmap.provider is set"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps the configured log level to a slog.Level. An empty or
// invalid level maps to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
