// Package config provides the configuration schema and loader for the
// Voxpath onboarding service.
package config

// LogLevel controls log verbosity for the Voxpath server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// VoiceBackend selects the streaming voice backend.
type VoiceBackend string

const (
	// BackendGeminiLive streams to Google's Gemini Live API.
	BackendGeminiLive VoiceBackend = "gemini-live"

	// BackendOpenAIRealtime streams to OpenAI's Realtime API.
	BackendOpenAIRealtime VoiceBackend = "openai-realtime"
)

// IsValid reports whether b is a recognised voice backend.
func (b VoiceBackend) IsValid() bool {
	return b == BackendGeminiLive || b == BackendOpenAIRealtime
}

// Config is the root configuration structure for Voxpath.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Voice   VoiceConfig   `yaml:"voice"`
	Roadmap RoadmapConfig `yaml:"roadmap"`
}

// ServerConfig holds network and logging settings for the Voxpath server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSamples is the number of samples per capture frame. Default: 1600
	// (100 ms at 16 kHz).
	FrameSamples int `yaml:"frame_samples"`
}

// VoiceConfig selects and configures the streaming voice backend.
type VoiceConfig struct {
	// Backend is one of "gemini-live" or "openai-realtime".
	Backend VoiceBackend `yaml:"backend"`

	// APIKey authenticates against the backend. Falls back to the backend's
	// usual environment variable when empty.
	APIKey string `yaml:"api_key"`

	// Model overrides the backend's default model.
	Model string `yaml:"model"`

	// BaseURL overrides the backend's WebSocket endpoint. Mainly for tests.
	BaseURL string `yaml:"base_url"`

	// SystemPrompt is the system instruction sent at session setup.
	SystemPrompt string `yaml:"system_prompt"`
}

// RoadmapConfig selects and configures the career-roadmap generator.
type RoadmapConfig struct {
	// Provider is the LLM provider name, e.g. "gemini", "openai",
	// "anthropic", "ollama".
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key"`

	// Model is the model used for generation, e.g. "gemini-2.0-flash".
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint. Mainly for tests and local
	// inference servers.
	BaseURL string `yaml:"base_url"`
}

// Defaults applied by Validate when fields are unset.
const (
	DefaultListenAddr   = ":8080"
	DefaultSampleRate   = 16000
	DefaultFrameSamples = 1600
)
