package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter is a Reporter backed by client_golang vectors, created
// lazily per metric name since tag keys vary per call site.
type PrometheusReporter struct {
	namespace string
	subsystem string
	registry  *prometheus.Registry

	mu        sync.Mutex
	gauges    map[string]*prometheus.GaugeVec
	counters  map[string]*prometheus.CounterVec
	summaries map[string]*prometheus.SummaryVec
}

// NewPrometheusReporter builds a reporter registered against its own
// registry so callers can expose it over /metrics without colliding with
// the default global registry.
func NewPrometheusReporter(namespace, subsystem string) *PrometheusReporter {
	return &PrometheusReporter{
		namespace: namespace,
		subsystem: subsystem,
		registry:  prometheus.NewRegistry(),
		gauges:    map[string]*prometheus.GaugeVec{},
		counters:  map[string]*prometheus.CounterVec{},
		summaries: map[string]*prometheus.SummaryVec{},
	}
}

// Registry exposes the underlying Prometheus registry for an HTTP handler.
func (p *PrometheusReporter) Registry() *prometheus.Registry { return p.registry }

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	return names
}

func (p *PrometheusReporter) gaugeVec(metric string, tags map[string]string) *prometheus.GaugeVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gv, ok := p.gauges[metric]; ok {
		return gv
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Subsystem: p.subsystem,
		Name:      metric,
	}, labelNames(tags))
	p.registry.MustRegister(gv)
	p.gauges[metric] = gv
	return gv
}

func (p *PrometheusReporter) counterVec(metric string, tags map[string]string) *prometheus.CounterVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cv, ok := p.counters[metric]; ok {
		return cv
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Subsystem: p.subsystem,
		Name:      metric,
	}, labelNames(tags))
	p.registry.MustRegister(cv)
	p.counters[metric] = cv
	return cv
}

func (p *PrometheusReporter) summaryVec(metric string, tags map[string]string) *prometheus.SummaryVec {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sv, ok := p.summaries[metric]; ok {
		return sv
	}
	sv := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  p.namespace,
		Subsystem:  p.subsystem,
		Name:       metric,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, labelNames(tags))
	p.registry.MustRegister(sv)
	p.summaries[metric] = sv
	return sv
}

// ReportGauge implements Reporter.
func (p *PrometheusReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	p.gaugeVec(metric, tags).With(tags).Set(value)
	return nil
}

// ReportCount implements Reporter.
func (p *PrometheusReporter) ReportCount(metric string, tags map[string]string, value float64) error {
	p.counterVec(metric, tags).With(tags).Add(value)
	return nil
}

// ReportSummary implements Reporter.
func (p *PrometheusReporter) ReportSummary(metric string, tags map[string]string, value float64) error {
	p.summaryVec(metric, tags).With(tags).Observe(value)
	return nil
}
