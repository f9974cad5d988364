// Package audio provides microphone capture for the voxpath voice pipeline.
//
// The two primary abstractions are:
//
//   - [Device] — acquires a microphone input stream and returns a [BlockReader].
//   - [Pipeline] — the cadence-driven capture loop that reads fixed-size float
//     sample blocks from the device, converts them to signed 16-bit PCM, and
//     emits immutable [Frame] values on a bounded channel.
//
// Implementations of [Device] are provided by adapter packages (audio/portaudio
// for real hardware, audio/mock for tests). The interfaces are intentionally
// narrow to keep the session controller decoupled from driver details.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDeviceUnavailable indicates that the input device could not be acquired
// (permission denied, no device present, driver failure). Callers must treat
// this as terminal for the start attempt, not retryable.
var ErrDeviceUnavailable = errors.New("audio: input device unavailable")

// BlockReader delivers fixed-size blocks of float32 samples from an open
// input stream. ReadBlock may block for up to one frame duration on real
// hardware.
type BlockReader interface {
	// ReadBlock returns the next block of samples in the range [-1.0, 1.0].
	// The returned slice is owned by the caller. Sample values outside the
	// nominal range are permitted and are clamped downstream.
	ReadBlock() ([]float32, error)

	// Close releases the input device. Idempotent.
	Close() error
}

// Device acquires a microphone input stream.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Open acquires the input device for mono capture at sampleRate Hz,
	// delivering frameSamples samples per block. Errors wrap
	// [ErrDeviceUnavailable] when the device cannot be acquired.
	Open(sampleRate, frameSamples int) (BlockReader, error)
}

// frameBuffer is the capacity of the frame channel between the capture loop
// and its consumer. When the consumer falls behind (slow network sends), the
// oldest buffered frames are dropped rather than stalling the capture cadence.
const frameBuffer = 32

// PipelineOption is a functional option for configuring a [Pipeline].
type PipelineOption func(*Pipeline)

// WithDropHandler registers cb to be invoked once per dropped frame. The
// callback runs on the capture goroutine and must not block.
func WithDropHandler(cb func()) PipelineOption {
	return func(p *Pipeline) { p.onDrop = cb }
}

// Pipeline is the cadence-driven capture loop. Exactly one capture goroutine
// runs between a successful Start and the matching Stop. All exported methods
// are safe for concurrent use.
type Pipeline struct {
	device       Device
	sampleRate   int
	frameSamples int
	onDrop       func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	dropped  atomic.Uint64
	dropWarn sync.Once
}

// NewPipeline creates a Pipeline that captures from device at sampleRate Hz
// in blocks of frameSamples samples. The pipeline does not touch the device
// until [Pipeline.Start] is called.
func NewPipeline(device Device, sampleRate, frameSamples int, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		device:       device,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start acquires the input device and begins the capture loop, delivering one
// [Frame] every frameSamples/sampleRate seconds on the returned channel. The
// channel is closed when the pipeline stops — via [Pipeline.Stop], ctx
// cancellation, or an unrecoverable device read error.
//
// If the device cannot be acquired the error wraps [ErrDeviceUnavailable] and
// no frames are ever produced. Starting an already-running pipeline is an
// error.
func (p *Pipeline) Start(ctx context.Context) (<-chan Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil, fmt.Errorf("audio: pipeline already running")
	}
	if p.sampleRate <= 0 || p.frameSamples <= 0 {
		return nil, fmt.Errorf("audio: invalid capture config: rate=%d samples=%d", p.sampleRate, p.frameSamples)
	}

	reader, err := p.device.Open(p.sampleRate, p.frameSamples)
	if err != nil {
		return nil, fmt.Errorf("audio: open device: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	frames := make(chan Frame, frameBuffer)
	done := make(chan struct{})

	p.running = true
	p.cancel = cancel
	p.done = done

	go p.captureLoop(loopCtx, reader, frames, done)

	return frames, nil
}

// Stop terminates the capture loop and releases the input device. It blocks
// until the loop has exited and the device is closed, so on return the
// microphone is guaranteed released. Safe to call from any goroutine and at
// any point relative to an in-flight tick; calling Stop on a stopped or
// never-started pipeline is a no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	cancel()
	<-done
}

// Dropped returns the number of frames discarded because the consumer fell
// behind the capture cadence.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// captureLoop reads one block per tick, converts it to PCM16, and delivers it
// as a Frame. It owns frames and reader: both are closed when it exits.
func (p *Pipeline) captureLoop(ctx context.Context, reader BlockReader, frames chan Frame, done chan struct{}) {
	defer close(done)
	defer close(frames)
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Warn("audio: device close error", "err", err)
		}
	}()

	cadence := time.Duration(p.frameSamples) * time.Second / time.Duration(p.sampleRate)
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		block, err := reader.ReadBlock()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("audio: device read error, stopping capture", "err", err, "seq", seq)
			return
		}

		frame := Frame{
			Samples:    FloatToPCM16(block),
			SampleRate: p.sampleRate,
			Seq:        seq,
		}
		seq++

		select {
		case frames <- frame:
		default:
			// Consumer is behind. Evict the oldest buffered frame so the
			// stream stays near real time, then deliver the fresh one.
			select {
			case <-frames:
				p.dropped.Add(1)
				if p.onDrop != nil {
					p.onDrop()
				}
				p.dropWarn.Do(func() {
					slog.Warn("audio: frame channel full, dropping oldest frames",
						"capacity", frameBuffer,
						"seq", frame.Seq,
					)
				})
			default:
			}
			// The loop is the only sender, so after the eviction the buffer
			// has room again.
			select {
			case frames <- frame:
			default:
			}
		}
	}
}
