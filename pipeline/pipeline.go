// Package pipeline implements the staged live translation pipeline:
// audio segmentation, speech recognition, context-aware translation,
// and ordered caption delivery. Stages are connected by bounded FIFO
// queues; a failure in one segment never stalls the segments behind it.
package pipeline

import (
	"context"
	"time"
)

// AudioSegment is one fixed-duration chunk of captured audio.
// Immutable once emitted by the Segmenter.
type AudioSegment struct {
	Sequence int64
	Captured time.Time
	Samples  []float32 // normalized mono, [-1, 1]
}

// Transcription is the recognizer's verdict for one audio segment.
type Transcription struct {
	Text       string
	Confidence float64 // 0..1
}

// TranscriptSegment carries recognized text between stages.
type TranscriptSegment struct {
	Sequence      int64
	Captured      time.Time
	Text          string
	Confidence    float64
	LowConfidence bool
}

// ContextEntry is one completed (source, translation) pair kept for
// prompt assembly. Never mutated after being appended.
type ContextEntry struct {
	Sequence   int64
	SourceText string
	Translated string
}

// TranslatedSegment is the terminal entity handed to the caption sink.
// Failed marks a segment whose translation retries were exhausted; its
// Translated text is then the FailureText sentinel.
type TranslatedSegment struct {
	Sequence      int64
	Captured      time.Time
	SourceText    string
	Translated    string
	Failed        bool
	LowConfidence bool
	Latency       time.Duration // capture to translation completion
}

// FailureText is the sentinel shown for segments whose translation
// exhausted its retry bound. Such segments are delivered, not dropped,
// so the viewer sees an unbroken caption sequence.
const FailureText = "[translation unavailable]"

// SampleSource delivers raw audio. ReadChunk blocks until a capture
// buffer is available and returns io.EOF when the source ends. One
// caller at a time.
type SampleSource interface {
	ReadChunk(ctx context.Context) ([]float32, error)
}

// Recognizer turns one audio segment into text. Implementations must
// honor ctx cancellation and deadline.
type Recognizer interface {
	Recognize(ctx context.Context, samples []float32) (Transcription, error)
}

// Translator translates text given prior (source, translation) pairs,
// oldest first. Implementations must honor ctx cancellation and
// deadline.
type Translator interface {
	Translate(ctx context.Context, text string, history []ContextEntry) (string, error)
}

// Sink receives translated segments in non-decreasing sequence order.
// Display must return within a bounded time; a slow consumer buffers
// internally rather than stalling the pipeline.
type Sink interface {
	Display(TranslatedSegment)
}
