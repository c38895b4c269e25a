// Package metrics exposes gateway and pipeline counters in Prometheus text
// exposition format without pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry.
var Collector = NewRegistry()

// Registry holds the registered counters, gauges, and histograms.
type Registry struct {
	mu         sync.Mutex
	counters   []*Counter
	gauges     []*Gauge
	histograms []*Histogram
	startTime  time.Time
}

func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Add(n int64)  { g.value.Add(n) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks a distribution over fixed buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// Counter registers a counter, or returns the existing one with that name.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.counters {
		if c.name == name {
			return c
		}
	}
	c := &Counter{name: name, help: help}
	r.counters = append(r.counters, c)
	return c
}

// Gauge registers a gauge, or returns the existing one with that name.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.gauges {
		if g.name == name {
			return g
		}
	}
	g := &Gauge{name: name, help: help}
	r.gauges = append(r.gauges, g)
	return g
}

// Histogram registers a histogram with the given bucket upper bounds.
func (r *Registry) Histogram(name, help string, bounds []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.histograms {
		if h.name == name {
			return h
		}
	}
	sort.Float64s(bounds)
	h := &Histogram{name: name, help: help, bounds: bounds, buckets: make([]int64, len(bounds))}
	r.histograms = append(r.histograms, h)
	return h
}

// Handler renders the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP hermes_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE hermes_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "hermes_uptime_seconds %d\n\n", int64(time.Since(r.startTime).Seconds()))

		r.mu.Lock()
		counters := append([]*Counter(nil), r.counters...)
		gauges := append([]*Gauge(nil), r.gauges...)
		histograms := append([]*Histogram(nil), r.histograms...)
		r.mu.Unlock()

		for _, c := range counters {
			fmt.Fprintf(&sb, "# HELP %s %s\n", c.name, c.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(&sb, "%s %d\n", c.name, c.Value())
		}

		for _, g := range gauges {
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
		}

		for _, h := range histograms {
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
			fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
			for i, le := range h.bounds {
				bound := fmt.Sprintf("%g", le)
				if math.IsInf(le, 1) {
					bound = "+Inf"
				}
				fmt.Fprintf(&sb, "%s_bucket{le=%q} %d\n", h.name, bound, h.buckets[i])
			}
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

// Metrics shared across the gateway and pipeline.
var (
	RequestsTotal    = Collector.Counter("hermes_requests_total", "Total webhook requests received")
	SignatureRejects = Collector.Counter("hermes_signature_rejects_total", "Requests rejected for a bad signature")
	JobsPublished    = Collector.Counter("hermes_jobs_published_total", "Translation jobs published to the queue")
	PublishFailures  = Collector.Counter("hermes_publish_failures_total", "Translation jobs that failed to publish")
	JobsDelivered    = Collector.Counter("hermes_jobs_delivered_total", "Translations delivered to recipients")
	JobsDeadLettered = Collector.Counter("hermes_jobs_dead_lettered_total", "Jobs moved to the dead letter store")

	QueueDepth = Collector.Gauge("hermes_queue_depth", "Records currently waiting across all topics")

	TranslateLatency = Collector.Histogram("hermes_translate_latency_seconds",
		"Translation backend latency in seconds",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
)
