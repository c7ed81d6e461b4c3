// Package metrics declares the prometheus collectors exported by the
// fabric's daemons, grouped the way kata-containers' virtcontainers
// package groups its hypervisor/shim/virtiofsd gauges: a namespace per
// subsystem, package-level collector vars, and a single Register to
// wire them all into a registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespaceMount = "vfs_mount"
	namespaceJobs  = "vfs_jobs"
	namespaceTrash = "vfs_trash"
)

var (
	// mount tracker
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceMount,
		Name:      "cache_hits_total",
		Help:      "Mount spec interning cache hits.",
	}, []string{"cache"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceMount,
		Name:      "cache_misses_total",
		Help:      "Mount spec interning cache misses.",
	}, []string{"cache"})

	ActiveMounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceMount,
		Name:      "active_mounts",
		Help:      "Number of mounts currently tracked.",
	})

	// job dispatch
	JobsInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceJobs,
		Name:      "in_flight",
		Help:      "Jobs currently dispatched to a backend.",
	}, []string{"kind"})

	JobDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespaceJobs,
		Name:      "duration_milliseconds",
		Help:      "Job dispatch latency distribution.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"kind", "outcome"})

	// trash
	TrashItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceTrash,
		Name:      "items",
		Help:      "Items currently known to a trash root.",
	}, []string{"topdir"})

	TrashExpungeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceTrash,
		Name:      "expunge_runs_total",
		Help:      "Background expunge worker wakeups.",
	}, []string{"outcome"})
)

// Register adds every collector in this package to reg. It is
// idempotent: a collector reg already holds (prometheus.
// AlreadyRegisteredError) is skipped, so a second call against the same
// registry returns nil. Any other registration error is returned.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		CacheHits, CacheMisses, ActiveMounts,
		JobsInFlight, JobDurations,
		TrashItems, TrashExpungeRuns,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
