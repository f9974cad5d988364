package voice_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/voxpath/voxpath/pkg/audio"
	"github.com/voxpath/voxpath/pkg/voice"
)

func TestEncodeFrame_Deterministic(t *testing.T) {
	t.Parallel()
	f := audio.Frame{Samples: []int16{0, 1000, -1000, 32767, -32768}, SampleRate: 16000}
	a := voice.EncodeFrame(f)
	b := voice.EncodeFrame(f)
	if a != b {
		t.Fatalf("payloads differ between runs: %+v vs %+v", a, b)
	}
}

func TestEncodeFrame_PayloadContents(t *testing.T) {
	t.Parallel()
	f := audio.Frame{Samples: []int16{0x0102, -1}, SampleRate: 16000}
	p := voice.EncodeFrame(f)

	if want := "audio/pcm;rate=16000"; p.MIMEType != want {
		t.Errorf("MIMEType = %q, want %q", p.MIMEType, want)
	}
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		t.Fatalf("payload data is not valid base64: %v", err)
	}
	want := []byte{0x02, 0x01, 0xff, 0xff}
	if len(raw) != len(want) {
		t.Fatalf("decoded length = %d, want %d", len(raw), len(want))
	}
	for i := range want {
		if raw[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, raw[i], want[i])
		}
	}
}

func TestPCMMimeType(t *testing.T) {
	t.Parallel()
	if got := voice.PCMMimeType(24000); got != "audio/pcm;rate=24000" {
		t.Errorf("PCMMimeType(24000) = %q", got)
	}
}

func TestEvent_Terminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		ev   voice.Event
		want bool
	}{
		{"text delta", voice.Event{TextDelta: "hi"}, false},
		{"closed", voice.Event{Closed: true}, true},
		{"error", voice.Event{Err: context.Canceled}, true},
	}
	for _, tc := range cases {
		if got := tc.ev.Terminal(); got != tc.want {
			t.Errorf("%s: Terminal() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
