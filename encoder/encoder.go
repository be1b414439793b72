// Package encoder turns captured sample chunks into upload payloads
// for the recognition APIs. FLAC roughly halves upload size against
// WAV at identical fidelity, which matters on slow links when a
// payload goes out every few seconds.
package encoder

import "fmt"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder produces a complete, self-contained audio file per call.
// Segments are encoded independently so a corrupt payload never
// affects its neighbors.
type Encoder interface {
	Encode(samples []float32) ([]byte, error)
	ContentType() string
	Ext() string
}

func New(format string) (Encoder, error) {
	switch format {
	case "wav":
		return WavEncoder{}, nil
	case "flac":
		return FlacEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown audio format %q (want wav or flac)", format)
}

func toInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
