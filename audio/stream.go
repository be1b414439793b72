package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

// Stream adapts a push-style CaptureDevice into a pull-style sample
// source. The capture callback runs on the audio thread and must never
// block, so when the consumer falls behind the oldest queued chunk is
// dropped to make room.
type Stream struct {
	dev CaptureDevice

	samples chan []float32
	level   atomic.Uint64 // Float64bits of the latest chunk RMS

	closeOnce sync.Once
	closed    chan struct{}
}

func NewStream(dev CaptureDevice) *Stream {
	s := &Stream{
		dev:     dev,
		samples: make(chan []float32, 16),
		closed:  make(chan struct{}),
	}
	dev.SetCallback(s.push)
	return s
}

// push converts 16-bit little-endian mono PCM to float32 in [-1, 1).
func (s *Stream) push(data []byte, frameCount uint32) {
	n := int(frameCount)
	if n*2 > len(data) {
		n = len(data) / 2
	}
	if n == 0 {
		return
	}

	chunk := make([]float32, n)
	var sum float64
	for i := 0; i < n; i++ {
		v := float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
		chunk[i] = v
		sum += float64(v) * float64(v)
	}
	s.level.Store(math.Float64bits(math.Sqrt(sum / float64(n))))

	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.samples <- chunk:
	default:
		select {
		case <-s.samples:
		default:
		}
		select {
		case s.samples <- chunk:
		default:
		}
	}
}

// ReadChunk blocks until capture data is available or ctx is canceled.
// After Close it reports io.EOF once the queue is drained.
func (s *Stream) ReadChunk(ctx context.Context) ([]float32, error) {
	select {
	case chunk := <-s.samples:
		return chunk, nil
	default:
	}
	select {
	case chunk := <-s.samples:
		return chunk, nil
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Level reports the RMS of the most recently captured chunk.
func (s *Stream) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.dev.ClearCallback()
		close(s.closed)
	})
}
