package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingRecognizer names transcripts T1, T2, ... in call order and
// fails the calls listed in failCalls.
type countingRecognizer struct {
	mu         sync.Mutex
	calls      int
	failCalls  map[int]bool
	confidence float64
	texts      map[int]string // optional per-call override
}

func (r *countingRecognizer) Recognize(_ context.Context, _ []float32) (Transcription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failCalls[r.calls] {
		return Transcription{}, errors.New("recognizer timeout")
	}
	text := fmt.Sprintf("T%d", r.calls)
	if t, ok := r.texts[r.calls]; ok {
		text = t
	}
	conf := r.confidence
	if conf == 0 {
		conf = 0.9
	}
	return Transcription{Text: text, Confidence: conf}, nil
}

func runRecognition(t *testing.T, rec Recognizer, cfg Config, segs []AudioSegment) []TranscriptSegment {
	t.Helper()
	in := make(chan AudioSegment, len(segs))
	out := make(chan TranscriptSegment, len(segs))
	for _, s := range segs {
		in <- s
	}
	close(in)

	st := &recognitionStage{rec: rec, cfg: cfg, log: zerolog.Nop()}
	st.run(context.Background(), in, out)

	var got []TranscriptSegment
	for ts := range out {
		got = append(got, ts)
	}
	return got
}

func audioSeg(seq int64) AudioSegment {
	return AudioSegment{Sequence: seq, Captured: time.Now(), Samples: constChunk(10, 0.5)}
}

func TestRecognitionDropsFailedSegments(t *testing.T) {
	rec := &countingRecognizer{failCalls: map[int]bool{2: true}}
	got := runRecognition(t, rec, testConfig(), []AudioSegment{audioSeg(0), audioSeg(1), audioSeg(2)})

	if len(got) != 2 {
		t.Fatalf("forwarded %d transcripts, want 2", len(got))
	}
	if got[0].Sequence != 0 || got[1].Sequence != 2 {
		t.Errorf("sequences = %d,%d, want 0,2 (failed segment leaves a gap)", got[0].Sequence, got[1].Sequence)
	}
	if got[1].Text != "T3" {
		t.Errorf("second transcript = %q, want T3", got[1].Text)
	}
}

func TestRecognitionFlagsLowConfidence(t *testing.T) {
	cfg := testConfig()
	cfg.ConfidenceFloor = 0.5
	rec := &countingRecognizer{confidence: 0.2}
	got := runRecognition(t, rec, cfg, []AudioSegment{audioSeg(0)})

	if len(got) != 1 {
		t.Fatalf("forwarded %d transcripts, want 1 (low confidence is flagged, not dropped)", len(got))
	}
	if !got[0].LowConfidence {
		t.Error("LowConfidence not set")
	}
}

func TestRecognitionDropsEmptyText(t *testing.T) {
	rec := &countingRecognizer{texts: map[int]string{1: "   "}}
	got := runRecognition(t, rec, testConfig(), []AudioSegment{audioSeg(0)})
	if len(got) != 0 {
		t.Fatalf("forwarded %d transcripts, want 0", len(got))
	}
}

func TestRecognitionPanicContained(t *testing.T) {
	got := runRecognition(t, panicRecognizer{}, testConfig(), []AudioSegment{audioSeg(0), audioSeg(1)})
	if len(got) != 0 {
		t.Fatalf("forwarded %d transcripts from a panicking recognizer, want 0", len(got))
	}
}

type panicRecognizer struct{}

func (panicRecognizer) Recognize(context.Context, []float32) (Transcription, error) {
	panic("recognizer bug")
}
