// Package arcmetrics exports registry statistics as Prometheus metrics.
package arcmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/arckit/arc"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "arc"

// Collector implements prometheus.Collector over a registry's Stats.
type Collector struct {
	reg *arc.Registry

	allocs        *prometheus.Desc
	allocFailures *prometheus.Desc
	frees         *prometheus.Desc
	retains       *prometheus.Desc
	releases      *prometheus.Desc
	violations    *prometheus.Desc
	liveBlocks    *prometheus.Desc
	liveBytes     *prometheus.Desc
	backendInUse  *prometheus.Desc
	backendRes    *prometheus.Desc
}

// NewCollector returns a collector for r. constLabels are attached to every
// metric, e.g. {"backend": "arena"}.
func NewCollector(r *arc.Registry, namespace string, constLabels prometheus.Labels) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, constLabels)
	}
	return &Collector{
		reg:           r,
		allocs:        desc("allocations_total", "Blocks allocated."),
		allocFailures: desc("allocation_failures_total", "Allocations the backend refused."),
		frees:         desc("frees_total", "Blocks returned to the backend."),
		retains:       desc("retains_total", "Successful retain calls."),
		releases:      desc("releases_total", "Successful release calls."),
		violations:    desc("violations_total", "Memory errors detected."),
		liveBlocks:    desc("live_blocks", "Blocks currently allocated."),
		liveBytes:     desc("live_bytes", "Payload bytes currently allocated."),
		backendInUse:  desc("backend_in_use_bytes", "Bytes handed out by the backend, headers included."),
		backendRes:    desc("backend_reserved_bytes", "Bytes the backend obtained from the operating system."),
	}
}

// Describe sends every metric descriptor.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocs
	ch <- c.allocFailures
	ch <- c.frees
	ch <- c.retains
	ch <- c.releases
	ch <- c.violations
	ch <- c.liveBlocks
	ch <- c.liveBytes
	ch <- c.backendInUse
	ch <- c.backendRes
}

// Collect takes one Stats snapshot and sends it as metrics.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.reg.Stats()

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(c.allocs, s.Allocs)
	counter(c.allocFailures, s.AllocFailures)
	counter(c.frees, s.Frees)
	counter(c.retains, s.Retains)
	counter(c.releases, s.Releases)
	counter(c.violations, s.Violations)
	gauge(c.liveBlocks, s.LiveBlocks)
	gauge(c.liveBytes, s.LiveBytes)
	gauge(c.backendInUse, s.Backend.InUse)
	gauge(c.backendRes, s.Backend.Reserved)
}

// Compile-time interface check
var _ prometheus.Collector = (*Collector)(nil)
