// Package portaudio implements the [audio.Device] interface on top of the
// PortAudio library via github.com/gordonklaus/portaudio.
//
// The adapter opens the system default input device in mono at the requested
// sample rate. PortAudio's library-level Initialize/Terminate calls are
// reference counted per open stream.
package portaudio

import (
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/voxpath/voxpath/pkg/audio"
)

// Compile-time assertion that Device satisfies the audio interface.
var _ audio.Device = (*Device)(nil)

// Device opens the system default microphone. The zero value is ready to use.
type Device struct{}

// New creates a PortAudio-backed input device.
func New() *Device {
	return &Device{}
}

// Open implements [audio.Device]. It initialises PortAudio, opens the default
// input stream for mono float32 capture, and starts it. Failures to acquire
// the device wrap [audio.ErrDeviceUnavailable].
func (d *Device) Open(sampleRate, frameSamples int) (audio.BlockReader, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	buf := make([]float32, frameSamples)
	stream, err := pa.OpenDefaultStream(1, 0, float64(sampleRate), frameSamples, buf)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open default input: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	return &reader{stream: stream, buf: buf}, nil
}

// reader wraps an open PortAudio input stream as an [audio.BlockReader].
type reader struct {
	stream *pa.Stream
	buf    []float32

	closeOnce sync.Once
	closeErr  error
}

// ReadBlock blocks until the stream has filled one buffer and returns a copy.
func (r *reader) ReadBlock() ([]float32, error) {
	if err := r.stream.Read(); err != nil {
		return nil, fmt.Errorf("portaudio: read: %w", err)
	}
	out := make([]float32, len(r.buf))
	copy(out, r.buf)
	return out, nil
}

// Close stops and closes the stream and releases the PortAudio library
// reference. Idempotent.
func (r *reader) Close() error {
	r.closeOnce.Do(func() {
		_ = r.stream.Stop()
		r.closeErr = r.stream.Close()
		_ = pa.Terminate()
	})
	return r.closeErr
}
