// Package prom exports cache.Metrics signals as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/objcache/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	creates    *prometheus.CounterVec
	discards   prometheus.Counter
	resurrects prometheus.Counter
	evicts     *prometheus.CounterVec
	entries    prometheus.Gauge
	idle       prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
//
// Caches that share an adapter share its series; give each cache its own
// subsystem or const labels to tell them apart.
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:   counter("hits_total", "Lookups that found a cached object"),
		misses: counter("misses_total", "Lookups that found nothing"),
		creates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "creates_total",
			Help: "Factory calls by outcome", ConstLabels: constLabels,
		}, []string{"result"}),
		discards:   counter("discards_total", "Created objects that lost the insertion race"),
		resurrects: counter("resurrections_total", "Evictions aborted by a concurrent lookup"),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Cache evictions by reason", ConstLabels: constLabels,
		}, []string{"reason"}),
		entries: gauge("size_entries", "Number of cached objects, referenced or idle"),
		idle:    gauge("size_idle", "Number of cached objects without references"),
	}
	reg.MustRegister(a.hits, a.misses, a.creates, a.discards, a.resurrects, a.evicts, a.entries, a.idle)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Create counts a factory call.
func (a *Adapter) Create(ok bool) {
	if ok {
		a.creates.WithLabelValues("ok").Inc()
		return
	}
	a.creates.WithLabelValues("failed").Inc()
}

// Discard counts an object destroyed because another creator won.
func (a *Adapter) Discard() { a.discards.Inc() }

// Resurrect counts an aborted eviction.
func (a *Adapter) Resurrect() { a.resurrects.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges. With a sharded cache the values are those of the
// shard that changed last.
func (a *Adapter) Size(entries, idle int) {
	a.entries.Set(float64(entries))
	a.idle.Set(float64(idle))
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
