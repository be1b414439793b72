package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// recognitionStage consumes audio segments one at a time (recognition
// calls are never pipelined) and forwards transcripts. A failed call
// drops the segment and moves on; retries are the recognizer's own
// business.
type recognitionStage struct {
	rec Recognizer
	cfg Config
	log zerolog.Logger
}

func (st *recognitionStage) run(ctx context.Context, in <-chan AudioSegment, out chan<- TranscriptSegment) {
	defer close(out)
	for {
		select {
		case seg, ok := <-in:
			if !ok {
				return
			}
			ts, ok := st.process(ctx, seg)
			if !ok {
				continue
			}
			select {
			case out <- ts:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// process returns ok=false when the segment is dropped. A panic from
// the recognizer is contained here so the stage survives bad segments.
func (st *recognitionStage) process(ctx context.Context, seg AudioSegment) (ts TranscriptSegment, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			st.log.Error().Int64("seq", seg.Sequence).Any("panic", r).Msg("recognition_panic")
			ok = false
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, st.cfg.RecognizeTimeout)
	defer cancel()

	start := time.Now()
	tr, err := st.rec.Recognize(callCtx, seg.Samples)
	if err != nil {
		st.log.Warn().
			Int64("seq", seg.Sequence).
			Err(err).
			Msg("recognition_failed")
		return TranscriptSegment{}, false
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		st.log.Debug().Int64("seq", seg.Sequence).Msg("recognition_empty")
		return TranscriptSegment{}, false
	}

	low := tr.Confidence < st.cfg.ConfidenceFloor
	st.log.Debug().
		Int64("seq", seg.Sequence).
		Float64("confidence", tr.Confidence).
		Dur("took", time.Since(start)).
		Msg("recognized")

	return TranscriptSegment{
		Sequence:      seg.Sequence,
		Captured:      seg.Captured,
		Text:          text,
		Confidence:    tr.Confidence,
		LowConfidence: low,
	}, true
}
