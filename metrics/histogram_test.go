package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu     sync.Mutex
	gauges map[string][]float64
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{gauges: make(map[string][]float64)}
}

func (r *recordingReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := metric
	if q, ok := tags["quantile"]; ok {
		key += ":" + q
	}
	r.gauges[key] = append(r.gauges[key], value)
	return nil
}

func (r *recordingReporter) ReportCount(metric string, tags map[string]string, value float64) error {
	return nil
}

func (r *recordingReporter) ReportSummary(metric string, tags map[string]string, value float64) error {
	return nil
}

func TestHistogramFlushReportsQuantiles(t *testing.T) {
	h := NewLatencyHistogram("task_us", map[string]string{"pool": "main"})
	for i := int64(1); i <= 1000; i++ {
		h.Record(i)
	}

	rep := newRecordingReporter()
	h.Flush([]Reporter{rep})

	require.Len(t, rep.gauges["task_us:p50"], 1)
	require.Len(t, rep.gauges["task_us:p99"], 1)
	p50 := rep.gauges["task_us:p50"][0]
	p99 := rep.gauges["task_us:p99"][0]
	assert.InDelta(t, 500, p50, 5)
	assert.InDelta(t, 990, p99, 10)
	assert.Less(t, p50, p99)
}

func TestHistogramFlushResetsWindow(t *testing.T) {
	h := NewLatencyHistogram("task_us", nil)
	h.Record(1000)

	rep := newRecordingReporter()
	h.Flush([]Reporter{rep})
	h.Flush([]Reporter{rep})

	p99 := rep.gauges["task_us:p99"]
	require.Len(t, p99, 2)
	assert.Zero(t, p99[1])
}
