package pipeline

import "time"

// Config carries every tunable the pipeline stages need. It is passed
// by value into constructors; stages never read ambient global state.
type Config struct {
	SampleRate    int           // capture sample rate (Hz)
	ChunkDuration time.Duration // audio accumulated per segment
	SilenceFloor  float64       // RMS below which a chunk is suppressed
	Denoise       DenoiseConfig

	ContextEntries int // max (source, translation) pairs kept
	ContextTokens  int // approximate token budget, 0 = entries bound only

	QueueCapacity int // per-stage queue bound (backpressure, not buffering)

	RecognizeTimeout time.Duration
	TranslateTimeout time.Duration // per attempt
	TranslateRetries int           // extra attempts after the first

	ConfidenceFloor float64 // transcripts below this are flagged, not dropped

	GapReset   time.Duration // reset context after a capture gap, 0 = off
	DrainGrace time.Duration // shutdown drain budget
}

func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		ChunkDuration:    3 * time.Second,
		SilenceFloor:     0.015,
		Denoise:          DefaultDenoiseConfig(),
		ContextEntries:   12,
		ContextTokens:    480,
		QueueCapacity:    3,
		RecognizeTimeout: 10 * time.Second,
		TranslateTimeout: 10 * time.Second,
		TranslateRetries: 1,
		ConfidenceFloor:  0.5,
		GapReset:         0,
		DrainGrace:       5 * time.Second,
	}
}

// chunkSamples is the number of samples per emitted segment.
func (c Config) chunkSamples() int {
	n := int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}
