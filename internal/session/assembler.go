package session

import (
	"strings"
	"sync"
)

// Entry is one reply delta in arrival order.
type Entry struct {
	// Seq is the zero-based arrival index of the delta.
	Seq int

	// Text is the delta exactly as the backend sent it, whitespace included.
	Text string
}

// Assembler accumulates reply deltas into an ordered transcript. It is safe
// for concurrent use.
type Assembler struct {
	mu      sync.Mutex
	entries []Entry
}

// Append records one delta at the next sequence position.
func (a *Assembler) Append(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, Entry{Seq: len(a.entries), Text: text})
}

// Entries returns a copy of all recorded deltas in arrival order.
func (a *Assembler) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Text returns the full reply assembled by concatenating every delta.
func (a *Assembler) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b strings.Builder
	for _, e := range a.entries {
		b.WriteString(e.Text)
	}
	return b.String()
}

// Len returns the number of recorded deltas.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Reset discards all recorded deltas.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}
