package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"lingocap/pipeline"
)

// captionStats aggregates delivery outcomes for the live status line
// and the end-of-run summary.
type captionStats struct {
	mu        sync.Mutex
	delivered int
	failed    int
	lowConf   int
	latencies []float64 // seconds
}

type statsSnapshot struct {
	Delivered     int
	Failed        int
	LowConfidence int
	P50, P90, P99 time.Duration
}

func (s *captionStats) record(ts pipeline.TranslatedSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered++
	if ts.Failed {
		s.failed++
	}
	if ts.LowConfidence {
		s.lowConf++
	}
	s.latencies = append(s.latencies, ts.Latency.Seconds())
}

func (s *captionStats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := statsSnapshot{
		Delivered:     s.delivered,
		Failed:        s.failed,
		LowConfidence: s.lowConf,
	}
	if len(s.latencies) == 0 {
		return snap
	}

	sorted := append([]float64{}, s.latencies...)
	sort.Float64s(sorted)
	snap.P50 = secondsToDuration(stat.Quantile(0.50, stat.Empirical, sorted, nil))
	snap.P90 = secondsToDuration(stat.Quantile(0.90, stat.Empirical, sorted, nil))
	snap.P99 = secondsToDuration(stat.Quantile(0.99, stat.Empirical, sorted, nil))
	return snap
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (s statsSnapshot) String() string {
	return fmt.Sprintf("delivered %d (failed %d, uncertain %d) | latency p50 %s p90 %s p99 %s",
		s.Delivered, s.Failed, s.LowConfidence,
		s.P50.Round(time.Millisecond), s.P90.Round(time.Millisecond), s.P99.Round(time.Millisecond))
}

// measuredSink records every segment before passing it on.
type measuredSink struct {
	next  pipeline.Sink
	stats *captionStats
}

func (m measuredSink) Display(ts pipeline.TranslatedSegment) {
	m.stats.record(ts)
	m.next.Display(ts)
}
