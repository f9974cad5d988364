package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestAssembler_AppendKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	var a Assembler
	for _, d := range []string{"Hi", " there", "!"} {
		a.Append(d)
	}

	entries := a.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries; want 3", len(entries))
	}
	want := []string{"Hi", " there", "!"}
	for i, e := range entries {
		if e.Seq != i {
			t.Errorf("entry %d: Seq = %d; want %d", i, e.Seq, i)
		}
		if e.Text != want[i] {
			t.Errorf("entry %d: Text = %q; want %q", i, e.Text, want[i])
		}
	}
	if got := a.Text(); got != "Hi there!" {
		t.Errorf("Text() = %q; want %q", got, "Hi there!")
	}
}

func TestAssembler_PreservesWhitespaceDeltas(t *testing.T) {
	t.Parallel()

	var a Assembler
	a.Append("a")
	a.Append("  ")
	a.Append("b")

	if got := a.Text(); got != "a  b" {
		t.Errorf("Text() = %q; want %q", got, "a  b")
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d; want 3", a.Len())
	}
}

func TestAssembler_EntriesReturnsCopy(t *testing.T) {
	t.Parallel()

	var a Assembler
	a.Append("x")

	entries := a.Entries()
	entries[0].Text = "mutated"

	if got := a.Entries()[0].Text; got != "x" {
		t.Errorf("internal entry = %q; want %q", got, "x")
	}
}

func TestAssembler_Reset(t *testing.T) {
	t.Parallel()

	var a Assembler
	a.Append("x")
	a.Reset()

	if a.Len() != 0 {
		t.Errorf("Len() after Reset = %d; want 0", a.Len())
	}
	if a.Text() != "" {
		t.Errorf("Text() after Reset = %q; want empty", a.Text())
	}
}

func TestAssembler_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	var a Assembler
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Append(fmt.Sprintf("w%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	entries := a.Entries()
	if len(entries) != 1000 {
		t.Fatalf("got %d entries; want 1000", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i {
			t.Fatalf("entry %d has Seq %d; sequence numbers must be gapless", i, e.Seq)
		}
	}
}
