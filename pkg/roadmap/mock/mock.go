// Package mock provides a test double for the roadmap.Generator interface.
package mock

import (
	"context"
	"sync"

	"github.com/voxpath/voxpath/pkg/roadmap"
)

var _ roadmap.Generator = (*Generator)(nil)

// Generator is a configurable mock implementation of roadmap.Generator.
type Generator struct {
	// Paths is returned by Generate when Err is nil.
	Paths []roadmap.CareerPath

	// Err, when non-nil, is returned by Generate.
	Err error

	// Delay, when non-zero, makes Generate wait for the duration or the
	// context, whichever ends first. Useful for cancellation tests.
	Delay func(ctx context.Context) error

	mu    sync.Mutex
	calls []roadmap.Profile
}

// Generate records the call and returns the scripted result.
func (g *Generator) Generate(ctx context.Context, p roadmap.Profile) ([]roadmap.CareerPath, error) {
	g.mu.Lock()
	g.calls = append(g.calls, p)
	g.mu.Unlock()

	if g.Delay != nil {
		if err := g.Delay(ctx); err != nil {
			return nil, err
		}
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Paths, nil
}

// Calls returns a copy of the profiles passed to Generate.
func (g *Generator) Calls() []roadmap.Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]roadmap.Profile, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns how many times Generate was called.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
