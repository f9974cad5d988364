package audio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxpath/voxpath/pkg/audio"
	"github.com/voxpath/voxpath/pkg/audio/mock"
)

// fastPipeline builds a pipeline with a ~1ms cadence so tests run quickly.
func fastPipeline(dev *mock.Device, opts ...audio.PipelineOption) *audio.Pipeline {
	return audio.NewPipeline(dev, 16000, 16, opts...)
}

// collectFrames receives n frames or fails the test after a timeout.
func collectFrames(t *testing.T, frames <-chan audio.Frame, n int) []audio.Frame {
	t.Helper()
	out := make([]audio.Frame, 0, n)
	deadline := time.After(3 * time.Second)
	for len(out) < n {
		select {
		case f, ok := <-frames:
			if !ok {
				t.Fatalf("frame channel closed after %d of %d frames", len(out), n)
			}
			out = append(out, f)
		case <-deadline:
			t.Fatalf("timeout after %d of %d frames", len(out), n)
		}
	}
	return out
}

func TestPipeline_FramesInCaptureOrder(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{
		Blocks: [][]float32{
			{0.5, -0.5},
			{1.0, -1.0},
			{0, 0},
		},
	}
	p := fastPipeline(dev)

	frames, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	got := collectFrames(t, frames, 3)
	for i, f := range got {
		if f.Seq != uint64(i) {
			t.Errorf("frame %d: seq = %d, want %d", i, f.Seq, i)
		}
		if f.SampleRate != 16000 {
			t.Errorf("frame %d: sample rate = %d, want 16000", i, f.SampleRate)
		}
	}
	if got[0].Samples[0] != 16383 || got[0].Samples[1] != -16383 {
		t.Errorf("frame 0 samples = %v, want [16383 -16383]", got[0].Samples[:2])
	}
	if got[1].Samples[0] != 32767 || got[1].Samples[1] != -32767 {
		t.Errorf("frame 1 samples = %v, want [32767 -32767]", got[1].Samples[:2])
	}
}

func TestPipeline_DeviceUnavailable(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{OpenErr: audio.ErrDeviceUnavailable}
	p := fastPipeline(dev)

	_, err := p.Start(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("Start error = %v, want ErrDeviceUnavailable", err)
	}
	// A failed start must not leave anything to release.
	if n := dev.OpenCount(); n != 1 {
		t.Errorf("open count = %d, want 1", n)
	}
	if len(dev.Readers) != 0 {
		t.Errorf("readers handed out = %d, want 0", len(dev.Readers))
	}
}

func TestPipeline_StopReleasesDeviceExactlyOnce(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{}
	p := fastPipeline(dev)

	frames, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collectFrames(t, frames, 1)

	p.Stop()
	p.Stop() // idempotent

	if len(dev.Readers) != 1 {
		t.Fatalf("readers handed out = %d, want 1", len(dev.Readers))
	}
	if n := dev.Readers[0].CloseCount(); n != 1 {
		t.Errorf("reader close count = %d, want 1", n)
	}

	// The frame channel must close once the loop exits.
	select {
	case _, ok := <-frames:
		if ok {
			// A buffered frame may still be pending; drain until closed.
			for range frames {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("frame channel did not close after Stop")
	}
}

func TestPipeline_SecondStartRejected(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{}
	p := fastPipeline(dev)

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	if _, err := p.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded, want error")
	}
	if n := dev.OpenCount(); n != 1 {
		t.Errorf("open count = %d, want 1 (no second capture pipeline)", n)
	}
}

func TestPipeline_ReadErrorStopsCapture(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{ReadErr: errors.New("device yanked")}
	p := fastPipeline(dev)

	frames, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	select {
	case _, ok := <-frames:
		if ok {
			t.Fatal("got a frame, want closed channel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("frame channel did not close after read error")
	}
	if !dev.Readers[0].Closed() {
		t.Error("device not released after read error")
	}
}

func TestPipeline_ContextCancelStops(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{}
	p := fastPipeline(dev)

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := p.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collectFrames(t, frames, 1)
	cancel()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel did not close after context cancel")
		}
	}
}

func TestPipeline_DropsWhenConsumerStalls(t *testing.T) {
	t.Parallel()
	dropped := make(chan struct{}, 1)
	dev := &mock.Device{}
	p := fastPipeline(dev, audio.WithDropHandler(func() {
		select {
		case dropped <- struct{}{}:
		default:
		}
	}))

	frames, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	// Never read from frames: the buffer fills and the pipeline must keep
	// its cadence by dropping rather than blocking.
	select {
	case <-dropped:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame drop observed with a stalled consumer")
	}
	if p.Dropped() == 0 {
		t.Error("Dropped() = 0, want > 0")
	}
	_ = frames
}

func TestPipeline_StalledConsumerKeepsNewestFrames(t *testing.T) {
	t.Parallel()
	dev := &mock.Device{}
	p := fastPipeline(dev)

	frames, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Never read: the buffer fills and the loop starts evicting.
	deadline := time.Now().Add(5 * time.Second)
	for p.Dropped() < 5 {
		if time.Now().After(deadline) {
			t.Fatal("no frames dropped with a stalled consumer")
		}
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	var seqs []uint64
	for f := range frames {
		seqs = append(seqs, f.Seq)
	}
	if len(seqs) == 0 {
		t.Fatal("no frames left in the buffer")
	}
	// Old frames go first, so the earliest sequence numbers must be gone and
	// the survivors are a contiguous run ending at the newest frame.
	if seqs[0] == 0 {
		t.Errorf("frame seq 0 survived; eviction must discard the oldest frames")
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] != seqs[i-1]+1 {
			t.Fatalf("buffered frames not contiguous: %v", seqs)
		}
	}
	// Every frame below the first survivor was evicted, and nothing else.
	if got := p.Dropped(); got != seqs[0] {
		t.Errorf("Dropped() = %d, want %d (one per evicted frame)", got, seqs[0])
	}
}
