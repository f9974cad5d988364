// Package anyllm provides a roadmap generator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, and more.
//
// Usage:
//
//	g, err := anyllm.New("gemini", "gemini-2.0-flash", anyllmlib.WithAPIKey("..."))
//	g, err := anyllm.NewOllama("llama3.2")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxpath/voxpath/pkg/roadmap"
)

var _ roadmap.Generator = (*Generator)(nil)

// defaultTemperature keeps recommendations varied but schema-stable.
const defaultTemperature = 0.4

// Generator implements roadmap.Generator by wrapping any-llm-go.
type Generator struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
}

// New creates a Generator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama".
// model is the specific model to use (e.g. "gemini-2.0-flash").
// opts are any-llm-go options (e.g. anyllmlib.WithAPIKey). Without an API key
// option, the provider falls back to its usual environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Generator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Generator{backend: backend, model: model, temperature: defaultTemperature}, nil
}

// NewOpenAI creates a Generator backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("openai", model, opts...)
}

// NewAnthropic creates a Generator backed by Anthropic.
// Without options, it reads the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("anthropic", model, opts...)
}

// NewGemini creates a Generator backed by Google Gemini.
// Without options, it reads the GEMINI_API_KEY or GOOGLE_API_KEY environment variable.
func NewGemini(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("gemini", model, opts...)
}

// NewOllama creates a Generator backed by Ollama (local inference).
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Generator, error) {
	return New("ollama", model, opts...)
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama", providerName)
	}
}

// Generate implements roadmap.Generator.
func (g *Generator) Generate(ctx context.Context, p roadmap.Profile) ([]roadmap.CareerPath, error) {
	temp := g.temperature
	params := anyllmlib.CompletionParams{
		Model: g.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: roadmap.SystemPrompt},
			{Role: anyllmlib.RoleUser, Content: roadmap.BuildPrompt(p)},
		},
		Temperature: &temp,
	}

	resp, err := g.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	return roadmap.ParseCareerPaths(resp.Choices[0].Message.ContentString())
}
