package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// translationStage owns the context window: it is the only writer, and
// snapshots are taken on its goroutine, so window access needs no lock.
// Exhausted retries produce a sentinel segment instead of a silent
// drop; downstream must account for every transcript deemed worth
// showing.
type translationStage struct {
	tr     Translator
	window *ContextWindow
	cfg    Config
	log    zerolog.Logger

	lastCaptured time.Time
}

func (st *translationStage) run(ctx context.Context, in <-chan TranscriptSegment, out chan<- TranslatedSegment) {
	defer close(out)
	for {
		select {
		case seg, ok := <-in:
			if !ok {
				return
			}
			res := st.process(ctx, seg)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (st *translationStage) process(ctx context.Context, seg TranscriptSegment) (res TranslatedSegment) {
	defer func() {
		if r := recover(); r != nil {
			st.log.Error().Int64("seq", seg.Sequence).Any("panic", r).Msg("translation_panic")
			res = st.failure(seg)
		}
	}()

	if st.cfg.GapReset > 0 && !st.lastCaptured.IsZero() &&
		seg.Captured.Sub(st.lastCaptured) > st.cfg.GapReset {
		st.log.Info().
			Int64("seq", seg.Sequence).
			Dur("gap", seg.Captured.Sub(st.lastCaptured)).
			Msg("context_reset_gap")
		st.window.Reset()
	}
	st.lastCaptured = seg.Captured

	// Out-of-order entries mean the single-writer discipline was
	// violated somewhere; salvage by starting from an empty window.
	if !st.window.ordered() {
		st.log.Error().Int64("seq", seg.Sequence).Msg("context_corrupt")
		st.window.Reset()
	}

	// Retries reuse the same snapshot: a failed call must not see
	// context it could never have had on the first attempt.
	history := st.window.Snapshot()
	attempts := 1 + st.cfg.TranslateRetries
	if attempts < 1 {
		attempts = 1
	}

	var translated string
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, st.cfg.TranslateTimeout)
		translated, err = st.tr.Translate(callCtx, seg.Text, history)
		cancel()
		if err == nil {
			break
		}
		if attempt < attempts && ctx.Err() == nil {
			st.log.Warn().
				Int64("seq", seg.Sequence).
				Int("attempt", attempt).
				Err(err).
				Msg("translation_retry")
			continue
		}
		break
	}
	if err != nil {
		st.log.Warn().Int64("seq", seg.Sequence).Err(err).Msg("translation_failed")
		return st.failure(seg)
	}

	// Context mutation happens strictly after the call returned, so a
	// failed call can never poison the window.
	st.window.Append(ContextEntry{
		Sequence:   seg.Sequence,
		SourceText: seg.Text,
		Translated: translated,
	})

	return TranslatedSegment{
		Sequence:      seg.Sequence,
		Captured:      seg.Captured,
		SourceText:    seg.Text,
		Translated:    translated,
		LowConfidence: seg.LowConfidence,
		Latency:       time.Since(seg.Captured),
	}
}

func (st *translationStage) failure(seg TranscriptSegment) TranslatedSegment {
	return TranslatedSegment{
		Sequence:      seg.Sequence,
		Captured:      seg.Captured,
		SourceText:    seg.Text,
		Translated:    FailureText,
		Failed:        true,
		LowConfidence: seg.LowConfidence,
		Latency:       time.Since(seg.Captured),
	}
}
