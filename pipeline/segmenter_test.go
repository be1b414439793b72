package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// scriptSource replays a fixed list of capture buffers, then either
// reports end-of-stream or blocks until the context is canceled.
type scriptSource struct {
	chunks   [][]float32
	pos      int
	blockEnd bool
}

func (s *scriptSource) ReadChunk(ctx context.Context) ([]float32, error) {
	if s.pos >= len(s.chunks) {
		if s.blockEnd {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func constChunk(n int, amp float32) []float32 {
	c := make([]float32, n)
	for i := range c {
		c[i] = amp
	}
	return c
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 100
	cfg.ChunkDuration = 100_000_000 // 100ms -> 10 samples per segment
	cfg.SilenceFloor = 0.01
	cfg.Denoise.Enabled = false
	return cfg
}

func TestSegmenterEmitsFixedChunks(t *testing.T) {
	cfg := testConfig()
	src := &scriptSource{chunks: [][]float32{
		constChunk(4, 0.5), constChunk(4, 0.5), constChunk(4, 0.5),
	}}
	seg := NewSegmenter(src, cfg, zerolog.Nop())

	got, err := seg.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(got.Samples) != 10 {
		t.Errorf("segment has %d samples, want 10", len(got.Samples))
	}
	if got.Sequence != 0 {
		t.Errorf("first sequence = %d, want 0", got.Sequence)
	}
	if got.Captured.IsZero() {
		t.Error("capture timestamp not set")
	}

	// Leftover 2 samples are not enough for another segment.
	if _, err := seg.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next at end = %v, want io.EOF", err)
	}
}

func TestSegmenterSuppressesSilence(t *testing.T) {
	cfg := testConfig()
	src := &scriptSource{chunks: [][]float32{
		constChunk(10, 0.5), // seq 0: loud
		constChunk(10, 0),   // seq 1: silent, suppressed
		constChunk(10, 0.5), // seq 2: loud
	}}
	seg := NewSegmenter(src, cfg, zerolog.Nop())

	first, err := seg.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := seg.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if first.Sequence != 0 || second.Sequence != 2 {
		t.Errorf("sequences = %d,%d, want 0,2 (silence still advances the counter)", first.Sequence, second.Sequence)
	}
}

func TestSegmenterContextCancel(t *testing.T) {
	cfg := testConfig()
	src := &scriptSource{blockEnd: true}
	seg := NewSegmenter(src, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := seg.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next = %v, want context.Canceled", err)
	}
}

func TestSegmenterDenoiseBeforeFloor(t *testing.T) {
	// A pure DC offset is loud before the high-pass filter and silent
	// after it; the suppression decision must see the cleaned audio.
	cfg := testConfig()
	cfg.SampleRate = 16000
	cfg.ChunkDuration = 10_000_000 // 10ms -> 160 samples
	cfg.SilenceFloor = 0.3         // raw DC RMS is 0.8; filtered is ~0.26
	cfg.Denoise = DenoiseConfig{Enabled: true, HighPassHz: 80, GateThreshold: 0}
	src := &scriptSource{chunks: [][]float32{constChunk(160, 0.8)}}
	seg := NewSegmenter(src, cfg, zerolog.Nop())

	if _, err := seg.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("DC-only chunk survived the silence floor: %v", err)
	}
	if seg.NextSequence() != 1 {
		t.Errorf("NextSequence = %d, want 1", seg.NextSequence())
	}
}
