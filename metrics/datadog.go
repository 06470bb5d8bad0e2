package metrics

import (
	"sort"

	"github.com/DataDog/datadog-go/statsd"
)

// DatadogReporter is a Reporter backed by a DogStatsD client, for shops
// that ship metrics to Datadog's agent instead of scraping Prometheus.
type DatadogReporter struct {
	client *statsd.Client
	prefix string
}

// NewDatadogReporter dials the local dogstatsd agent at addr (typically
// "127.0.0.1:8125").
func NewDatadogReporter(addr, prefix string) (*DatadogReporter, error) {
	c, err := statsd.New(addr)
	if err != nil {
		return nil, err
	}
	c.Namespace = prefix
	return &DatadogReporter{client: c, prefix: prefix}, nil
}

func tagSlice(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}

// ReportGauge implements Reporter.
func (d *DatadogReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	return d.client.Gauge(metric, value, tagSlice(tags), 1)
}

// ReportCount implements Reporter.
func (d *DatadogReporter) ReportCount(metric string, tags map[string]string, value float64) error {
	return d.client.Count(metric, int64(value), tagSlice(tags), 1)
}

// ReportSummary implements Reporter.
func (d *DatadogReporter) ReportSummary(metric string, tags map[string]string, value float64) error {
	return d.client.Histogram(metric, value, tagSlice(tags), 1)
}

// Close flushes and closes the underlying statsd client.
func (d *DatadogReporter) Close() error {
	return d.client.Close()
}
