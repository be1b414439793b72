package caption

import (
	"sync"

	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

// Buffered decouples a slow sink from the pipeline. Display queues the
// segment and returns immediately; when the queue is full the oldest
// caption is dropped, since stale captions are worse than missing ones
// in a live view.
type Buffered struct {
	next pipeline.Sink
	log  zerolog.Logger

	queue     chan pipeline.TranslatedSegment
	closeOnce sync.Once
	done      chan struct{}
}

func NewBuffered(next pipeline.Sink, depth int, logger zerolog.Logger) *Buffered {
	if depth < 1 {
		depth = 1
	}
	b := &Buffered{
		next:  next,
		log:   logger,
		queue: make(chan pipeline.TranslatedSegment, depth),
		done:  make(chan struct{}),
	}
	go b.forward()
	return b
}

func (b *Buffered) forward() {
	defer close(b.done)
	for ts := range b.queue {
		b.next.Display(ts)
	}
}

func (b *Buffered) Display(ts pipeline.TranslatedSegment) {
	for {
		select {
		case b.queue <- ts:
			return
		default:
		}
		select {
		case old := <-b.queue:
			b.log.Warn().Int64("seq", old.Sequence).Msg("caption_dropped")
		default:
		}
	}
}

// Close flushes queued captions and waits for the wrapped sink.
func (b *Buffered) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
		<-b.done
	})
}
