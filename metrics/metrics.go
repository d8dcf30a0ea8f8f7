// Package metrics collects the job's stats as Prometheus metrics and can push
// them to a Pushgateway once the run is over.
package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every metric name.
const Namespace = "sparkify_etl"

// labelNames are the labels every metric carries. Tags passed as "key:value"
// fill in the label of that name; other tags are ignored.
var labelNames = []string{"name", "table", "stage", "input"}

// Collector is a Statter backed by a private Prometheus registry. It is
// threadsafe.
type Collector struct {
	registry *prometheus.Registry

	counts     *prometheus.CounterVec
	gauges     *prometheus.GaugeVec
	histograms *prometheus.HistogramVec
	timings    *prometheus.HistogramVec
	sets       *prometheus.GaugeVec

	mu      sync.Mutex
	members map[string]map[string]struct{}
}

// NewCollector returns a Collector with its metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		counts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "count_total",
			Help:      "Running totals reported by the job, such as rows written.",
		}, labelNames),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gauge",
			Help:      "Point in time values reported by the job.",
		}, labelNames),
		histograms: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "histogram",
			Help:      "Distributions of values reported by the job.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}, labelNames),
		timings: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "duration_seconds",
			Help:      "Time taken by phases of the job.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, labelNames),
		sets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "distinct",
			Help:      "Number of distinct values reported by the job.",
		}, labelNames),
		members: make(map[string]map[string]struct{}),
	}
	c.registry.MustRegister(c.counts, c.gauges, c.histograms, c.timings, c.sets)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Count adds value to the named counter. Rate is ignored.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	c.counts.With(labels(name, tags)).Add(float64(value))
}

// Gauge sets the named gauge.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.gauges.With(labels(name, tags)).Set(value)
}

// Histogram observes value in the named histogram.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	c.histograms.With(labels(name, tags)).Observe(value)
}

// Set records value as a member of the named set and reports the set's size.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {
	l := labels(name, tags)
	key := name + "\x00" + strings.Join(tags, "\x00")
	c.mu.Lock()
	m, ok := c.members[key]
	if !ok {
		m = make(map[string]struct{})
		c.members[key] = m
	}
	m[value] = struct{}{}
	n := len(m)
	c.mu.Unlock()
	c.sets.With(l).Set(float64(n))
}

// Timing observes value, in seconds, in the named duration histogram.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	c.timings.With(labels(name, tags)).Observe(value.Seconds())
}

// Push sends every metric to the Pushgateway at url under the given job name,
// replacing what was previously pushed for the same grouping.
func (c *Collector) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	p := push.New(url, job).Gatherer(c.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	return errors.Wrapf(p.PushContext(ctx), "pushing metrics to %s", url)
}

func labels(name string, tags []string) prometheus.Labels {
	l := prometheus.Labels{"name": name, "table": "", "stage": "", "input": ""}
	for _, t := range tags {
		i := strings.IndexByte(t, ':')
		if i < 0 {
			continue
		}
		if _, ok := l[t[:i]]; ok && t[:i] != "name" {
			l[t[:i]] = t[i+1:]
		}
	}
	return l
}
