// Package mock provides in-memory mock implementations of the [audio.Device]
// and [audio.BlockReader] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported
// fields the test can set to control return values.
//
// Typical usage:
//
//	dev := &mock.Device{
//	    Blocks: [][]float32{{0.5, -0.5}, {1.0, -1.0}},
//	}
//	pipeline := audio.NewPipeline(dev, 16000, 2)
package mock

import (
	"sync"

	"github.com/voxpath/voxpath/pkg/audio"
)

// OpenCall records a single invocation of Device.Open.
type OpenCall struct {
	SampleRate   int
	FrameSamples int
}

// Device is a mock implementation of [audio.Device].
// Set the exported fields before use; inspect the Call* fields after.
type Device struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned from Open. Wrap
	// [audio.ErrDeviceUnavailable] to simulate a missing microphone.
	OpenErr error

	// Blocks are served by the reader's ReadBlock in order. When exhausted
	// the reader serves silence (all-zero blocks) unless ReadErr is set.
	Blocks [][]float32

	// ReadErr is returned by ReadBlock once Blocks is exhausted. When nil,
	// exhausted readers serve silence indefinitely.
	ReadErr error

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall

	// Readers holds every reader handed out by Open, in order.
	Readers []*Reader
}

// Open implements [audio.Device]. Returns a new [Reader] serving Blocks, or
// OpenErr if set.
func (d *Device) Open(sampleRate, frameSamples int) (audio.BlockReader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, OpenCall{SampleRate: sampleRate, FrameSamples: frameSamples})
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	r := &Reader{
		device:       d,
		frameSamples: frameSamples,
	}
	d.Readers = append(d.Readers, r)
	return r, nil
}

// OpenCount returns how many times Open was called. Thread-safe.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.OpenCalls)
}

// Reader is the mock [audio.BlockReader] handed out by [Device.Open].
type Reader struct {
	device       *Device
	frameSamples int

	mu         sync.Mutex
	next       int
	closed     bool
	closeCount int
}

// ReadBlock implements [audio.BlockReader]. It serves the device's scripted
// Blocks in order, then silence, or the device's ReadErr once exhausted.
func (r *Reader) ReadBlock() ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, audio.ErrDeviceUnavailable
	}

	r.device.mu.Lock()
	blocks := r.device.Blocks
	readErr := r.device.ReadErr
	r.device.mu.Unlock()

	if r.next < len(blocks) {
		block := blocks[r.next]
		r.next++
		out := make([]float32, len(block))
		copy(out, block)
		return out, nil
	}
	if readErr != nil {
		return nil, readErr
	}
	return make([]float32, r.frameSamples), nil
}

// Close implements [audio.BlockReader]. Idempotent; every call is counted so
// tests can assert the device was released exactly once.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.closeCount++
	return nil
}

// Closed reports whether Close has been called at least once.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// CloseCount returns how many times Close was called.
func (r *Reader) CloseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCount
}

// Ensure the mocks implement the audio interfaces at compile time.
var (
	_ audio.Device      = (*Device)(nil)
	_ audio.BlockReader = (*Reader)(nil)
)
