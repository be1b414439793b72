package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type stubCapture struct {
	cb DataCallback
}

func (s *stubCapture) Start() error                { return nil }
func (s *stubCapture) Stop()                       {}
func (s *stubCapture) Close()                      {}
func (s *stubCapture) SetCallback(cb DataCallback) { s.cb = cb }
func (s *stubCapture) ClearCallback()              { s.cb = nil }

func pcm16(samples ...int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}

func TestStreamConvertsPCM(t *testing.T) {
	dev := &stubCapture{}
	s := NewStream(dev)
	defer s.Close()

	dev.cb(pcm16(0, 16384, -32768), 3)

	chunk, err := s.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	want := []float32{0, 0.5, -1}
	if len(chunk) != len(want) {
		t.Fatalf("chunk len = %d, want %d", len(chunk), len(want))
	}
	for i := range want {
		if math.Abs(float64(chunk[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, chunk[i], want[i])
		}
	}
}

func TestStreamLevelTracksRMS(t *testing.T) {
	dev := &stubCapture{}
	s := NewStream(dev)
	defer s.Close()

	dev.cb(pcm16(16384, 16384, 16384, 16384), 4)
	if _, err := s.ReadChunk(context.Background()); err != nil {
		t.Fatal(err)
	}
	if lvl := s.Level(); math.Abs(lvl-0.5) > 1e-4 {
		t.Errorf("Level = %v, want 0.5", lvl)
	}
}

func TestStreamDropsOldestWhenFull(t *testing.T) {
	dev := &stubCapture{}
	s := NewStream(dev)
	defer s.Close()

	// Overfill the queue; newest chunks win.
	for i := int16(0); i < 32; i++ {
		dev.cb(pcm16(i), 1)
	}

	last := float32(-1)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		chunk, err := s.ReadChunk(ctx)
		cancel()
		if err != nil {
			break
		}
		if chunk[0] < last {
			t.Fatalf("chunks out of order: %v after %v", chunk[0], last)
		}
		last = chunk[0]
	}
	if want := float32(31) / 32768; last != want {
		t.Errorf("last chunk = %v, want %v (newest kept)", last, want)
	}
}

func TestStreamCloseReportsEOF(t *testing.T) {
	dev := &stubCapture{}
	s := NewStream(dev)

	dev.cb(pcm16(100), 1)
	s.Close()
	if dev.cb != nil {
		t.Error("Close did not clear the capture callback")
	}

	// Queued data drains first, then EOF.
	if _, err := s.ReadChunk(context.Background()); err != nil {
		t.Fatalf("queued chunk after Close: %v", err)
	}
	if _, err := s.ReadChunk(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("ReadChunk after drain = %v, want io.EOF", err)
	}
}

func TestStreamReadChunkContext(t *testing.T) {
	s := NewStream(&stubCapture{})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadChunk(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadChunk = %v, want context.Canceled", err)
	}
}

func TestFileSourceReplaysWAV(t *testing.T) {
	samples := make([]int16, fileChunkFrames+10)
	for i := range samples {
		samples[i] = int16(i)
	}
	path := filepath.Join(t.TempDir(), "replay.wav")
	data := append(make([]byte, WAVHeaderSize), pcm16(samples...)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewFileSource(path, 16000, false)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	first, err := src.ReadChunk(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != fileChunkFrames {
		t.Errorf("first chunk = %d frames, want %d", len(first), fileChunkFrames)
	}
	if first[1] != float32(1)/32768 {
		t.Errorf("sample 1 = %v", first[1])
	}

	second, err := src.ReadChunk(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 10 {
		t.Errorf("tail chunk = %d frames, want 10", len(second))
	}

	if _, err := src.ReadChunk(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("ReadChunk at end = %v, want io.EOF", err)
	}
}

func TestFileSourceRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := os.WriteFile(path, make([]byte, WAVHeaderSize), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(path, 16000, false); err == nil {
		t.Error("expected error for header-only file")
	}
}
