package caption

import "lingocap/pipeline"

// Multi fans each segment out to several sinks in order.
type Multi []pipeline.Sink

func (m Multi) Display(ts pipeline.TranslatedSegment) {
	for _, s := range m {
		s.Display(ts)
	}
}
