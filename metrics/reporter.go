// Package metrics defines the Reporter interface every emitted metric in
// the framework goes through, plus Prometheus and DataDog backends. Call
// sites never import a concrete backend directly.
package metrics

import "github.com/ulala-x/playhouse/logger"

// Metric name constants used across the framework.
const (
	ChannelCapacity       = "channel_capacity"
	ConnectedClients      = "connected_clients"
	ResponseTime          = "response_time_ms"
	StageCount            = "stage_count"
	StagePumpQueueDepth   = "stage_pump_queue_depth"
	WorkerPoolSize        = "worker_pool_size"
	WorkerPoolQueueDepth  = "worker_pool_queue_depth"
	MeshOutboundQueueSize = "mesh_outbound_queue_size"
	RequestCacheSize      = "request_cache_size"
)

// Reporter is implemented by each metrics backend. Every method returns an
// error so the caller can log-and-continue rather than crash a hot path
// over a metrics outage.
type Reporter interface {
	// ReportGauge sets an instantaneous value for metric, tagged with tags.
	ReportGauge(metric string, tags map[string]string, value float64) error
	// ReportCount increments a counter by value.
	ReportCount(metric string, tags map[string]string, value float64) error
	// ReportSummary records a value into a distribution (timings, sizes).
	ReportSummary(metric string, tags map[string]string, value float64) error
}

// ReportNumberOfConnectedClients fans a gauge update out to every reporter.
func ReportNumberOfConnectedClients(reporters []Reporter, count int) {
	reportAll(reporters, ConnectedClients, nil, float64(count), Reporter.ReportGauge)
}

// ReportGaugeAll is the generic fan-out gauge helper used outside the agent
// (worker pool size, stage count, mesh queue depth, ...).
func ReportGaugeAll(reporters []Reporter, metric string, tags map[string]string, value float64) {
	reportAll(reporters, metric, tags, value, Reporter.ReportGauge)
}

// ReportCountAll fans a counter increment out to every reporter.
func ReportCountAll(reporters []Reporter, metric string, tags map[string]string, value float64) {
	reportAll(reporters, metric, tags, value, Reporter.ReportCount)
}

func reportAll(reporters []Reporter, metric string, tags map[string]string, value float64, fn func(Reporter, string, map[string]string, float64) error) {
	for _, r := range reporters {
		if r == nil {
			continue
		}
		if err := fn(r, metric, tags, value); err != nil {
			logger.Log.Warnf("failed to report metric %s: %s", metric, err.Error())
		}
	}
}
