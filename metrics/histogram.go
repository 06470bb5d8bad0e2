package metrics

import (
	"sync"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyHistogram accumulates microsecond latencies with HdrHistogram's
// bounded error guarantee and periodically flushes percentiles to a
// Reporter set. The worker pool uses one to track task duration without
// paying a per-sample reporter round trip.
type LatencyHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
	name string
	tags map[string]string
}

// NewLatencyHistogram tracks values from 1us to 10s with 3 significant
// digits, matching HdrHistogram's typical latency-tracking configuration.
func NewLatencyHistogram(name string, tags map[string]string) *LatencyHistogram {
	return &LatencyHistogram{
		hist: hdrhistogram.New(1, 10_000_000, 3),
		name: name,
		tags: tags,
	}
}

// Record adds one observation, in microseconds.
func (l *LatencyHistogram) Record(microseconds int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.hist.RecordValue(microseconds)
}

// Flush reports p50/p90/p99 as gauges to reporters and resets the
// underlying histogram so subsequent windows don't accumulate forever.
func (l *LatencyHistogram) Flush(reporters []Reporter) {
	l.mu.Lock()
	p50 := float64(l.hist.ValueAtQuantile(50))
	p90 := float64(l.hist.ValueAtQuantile(90))
	p99 := float64(l.hist.ValueAtQuantile(99))
	l.hist.Reset()
	l.mu.Unlock()

	for quantile, v := range map[string]float64{"p50": p50, "p90": p90, "p99": p99} {
		tags := map[string]string{"quantile": quantile}
		for k, v := range l.tags {
			tags[k] = v
		}
		ReportGaugeAll(reporters, l.name, tags, v)
	}
}
