package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Segmenter slices a continuous sample stream into fixed-duration
// segments and suppresses chunks below the silence floor. It is a lazy,
// effectively infinite sequence; restart requires a new Segmenter.
//
// The sequence counter advances for suppressed chunks too, so
// downstream consumers can spot gaps in diagnostics.
type Segmenter struct {
	src SampleSource
	cfg Config
	log zerolog.Logger

	buf   []float32
	seq   int64
	chunk int
}

func NewSegmenter(src SampleSource, cfg Config, logger zerolog.Logger) *Segmenter {
	return &Segmenter{
		src:   src,
		cfg:   cfg,
		log:   logger,
		chunk: cfg.chunkSamples(),
	}
}

// Next blocks until a non-silent segment is available. It returns the
// source's error (io.EOF at end of stream) or ctx.Err() on cancel.
func (s *Segmenter) Next(ctx context.Context) (AudioSegment, error) {
	for {
		for len(s.buf) < s.chunk {
			data, err := s.src.ReadChunk(ctx)
			if err != nil {
				return AudioSegment{}, err
			}
			s.buf = append(s.buf, data...)
		}

		samples := make([]float32, s.chunk)
		copy(samples, s.buf)
		s.buf = append(s.buf[:0], s.buf[s.chunk:]...)

		seq := s.seq
		s.seq++

		cleaned := denoise(samples, s.cfg.SampleRate, s.cfg.Denoise)
		level := rms(cleaned)
		if level < s.cfg.SilenceFloor {
			s.log.Debug().
				Int64("seq", seq).
				Float64("rms", level).
				Msg("segment_suppressed")
			continue
		}

		return AudioSegment{
			Sequence: seq,
			Captured: time.Now(),
			Samples:  cleaned,
		}, nil
	}
}

// NextSequence reports the sequence number the next chunk will get,
// suppressed or not.
func (s *Segmenter) NextSequence() int64 { return s.seq }
