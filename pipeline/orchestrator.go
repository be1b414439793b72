package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the orchestrator lifecycle. There is no way back to Running;
// a restart needs a fresh Orchestrator.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var ErrNotIdle = errors.New("pipeline: already started")

// Orchestrator wires segmenter, recognition, translation and delivery
// into a chain of bounded FIFO queues, one worker goroutine per stage.
// Queue writes block when full, so a slow translator eventually
// backpressures recognition and then the segmenter.
type Orchestrator struct {
	cfg  Config
	seg  *Segmenter
	rec  Recognizer
	tr   Translator
	sink Sink
	log  zerolog.Logger

	runID string

	state atomic.Int32

	intake     context.Context // canceled on stop: no new audio
	stopIntake context.CancelFunc
	hard       context.Context // canceled when the drain grace expires
	kill       context.CancelFunc

	stopOnce sync.Once
	done     chan struct{}

	audioCh      chan AudioSegment
	transcriptCh chan TranscriptSegment
	outCh        chan TranslatedSegment

	errMu sync.Mutex
	err   error
}

func NewOrchestrator(src SampleSource, rec Recognizer, tr Translator, sink Sink, cfg Config, logger zerolog.Logger) *Orchestrator {
	runID := uuid.NewString()
	logger = logger.With().Str("run", runID).Logger()

	hard, kill := context.WithCancel(context.Background())
	intake, stopIntake := context.WithCancel(hard)

	cap := cfg.QueueCapacity
	if cap < 1 {
		cap = 1
	}

	return &Orchestrator{
		cfg:          cfg,
		seg:          NewSegmenter(src, cfg, logger),
		rec:          rec,
		tr:           tr,
		sink:         sink,
		log:          logger,
		runID:        runID,
		intake:       intake,
		stopIntake:   stopIntake,
		hard:         hard,
		kill:         kill,
		done:         make(chan struct{}),
		audioCh:      make(chan AudioSegment, cap),
		transcriptCh: make(chan TranscriptSegment, cap),
		outCh:        make(chan TranslatedSegment, cap),
	}
}

func (o *Orchestrator) RunID() string        { return o.runID }
func (o *Orchestrator) State() State         { return State(o.state.Load()) }
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Err reports the fatal error that ended the run, if any. Per-segment
// failures are not fatal and never show up here. Valid after Done.
func (o *Orchestrator) Err() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.err
}

// Start launches the stage workers. ctx cancellation acts as a stop
// signal (drain, then stop); use Stop for an explicit one.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	o.log.Info().Str("state", StateRunning.String()).Msg("pipeline_state")

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				o.Stop()
			case <-o.done:
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		defer o.guard("segmenter")()
		defer close(o.audioCh)
		o.segmentLoop()
	}()

	recog := &recognitionStage{rec: o.rec, cfg: o.cfg, log: o.log}
	go func() {
		defer wg.Done()
		defer o.guard("recognition")()
		recog.run(o.hard, o.audioCh, o.transcriptCh)
	}()

	trans := &translationStage{
		tr:     o.tr,
		window: NewContextWindow(o.cfg.ContextEntries, o.cfg.ContextTokens),
		cfg:    o.cfg,
		log:    o.log,
	}
	go func() {
		defer wg.Done()
		defer o.guard("translation")()
		trans.run(o.hard, o.transcriptCh, o.outCh)
	}()

	go func() {
		defer wg.Done()
		defer o.guard("delivery")()
		o.deliveryLoop()
	}()

	go func() {
		wg.Wait()
		o.finish()
	}()

	return nil
}

// Stop refuses new audio and lets in-flight segments drain through all
// stages, bounded by the drain grace period. Safe to call repeatedly.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.beginDrain("stop_signal")
	})
}

func (o *Orchestrator) segmentLoop() {
	for {
		seg, err := o.seg.Next(o.intake)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				o.log.Info().Msg("source_end")
				o.beginDrain("source_end")
			case errors.Is(err, context.Canceled):
			default:
				o.log.Error().Err(err).Msg("source_error")
				o.setErr(fmt.Errorf("audio source: %w", err))
				o.beginDrain("source_error")
			}
			return
		}
		select {
		case o.audioCh <- seg:
		case <-o.hard.Done():
			return
		}
	}
}

func (o *Orchestrator) deliveryLoop() {
	for {
		select {
		case ts, ok := <-o.outCh:
			if !ok {
				return
			}
			o.sink.Display(ts)
			o.log.Debug().
				Int64("seq", ts.Sequence).
				Bool("failed", ts.Failed).
				Dur("latency", ts.Latency).
				Msg("caption_delivered")
		case <-o.hard.Done():
			return
		}
	}
}

func (o *Orchestrator) beginDrain(reason string) {
	o.stopIntake()
	if !o.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return
	}
	o.log.Info().Str("state", StateDraining.String()).Str("reason", reason).Msg("pipeline_state")
	go func() {
		select {
		case <-o.done:
		case <-time.After(o.cfg.DrainGrace):
			o.log.Warn().
				Int("audio_queued", len(o.audioCh)).
				Int("transcripts_queued", len(o.transcriptCh)).
				Int("captions_queued", len(o.outCh)).
				Msg("drain_timeout")
			o.kill()
		}
	}()
}

// guard turns a worker goroutine crash into a fatal, full shutdown.
// Per-segment failures are handled inside the stages and never reach
// this.
func (o *Orchestrator) guard(stage string) func() {
	return func() {
		if r := recover(); r != nil {
			o.log.Error().Str("stage", stage).Any("panic", r).Msg("stage_crashed")
			o.setErr(fmt.Errorf("stage %s crashed: %v", stage, r))
			o.stopIntake()
			o.kill()
		}
	}
}

func (o *Orchestrator) finish() {
	o.kill()
	o.state.Store(int32(StateStopped))
	o.log.Info().Str("state", StateStopped.String()).Msg("pipeline_state")
	close(o.done)
}

func (o *Orchestrator) setErr(err error) {
	o.errMu.Lock()
	if o.err == nil {
		o.err = err
	}
	o.errMu.Unlock()
}
