package voice

import (
	"encoding/base64"
	"fmt"

	"github.com/voxpath/voxpath/pkg/audio"
)

// PCMMimeType returns the format descriptor for raw PCM16 at the given rate,
// e.g. "audio/pcm;rate=16000".
func PCMMimeType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// EncodeFrame converts a captured frame into its transport payload: the
// samples serialised as little-endian PCM16, base64-encoded, tagged with the
// PCM format descriptor. The transform is pure and deterministic — identical
// frames always produce identical payloads — and keeps the text encoding an
// internal serialization detail swappable without touching capture or
// transport code.
func EncodeFrame(f audio.Frame) Payload {
	return Payload{
		Data:     base64.StdEncoding.EncodeToString(audio.PCM16Bytes(f.Samples)),
		MIMEType: PCMMimeType(f.SampleRate),
	}
}
