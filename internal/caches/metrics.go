package caches

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lifecycle metrics, exposed on the debug server's /metrics.
var (
	CachesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forage_caches_created_total",
		Help: "Caches created, by kind (dynamic, static)",
	}, []string{"kind"})

	CachesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forage_caches_discarded_total",
		Help: "Cache creation attempts that were discarded",
	})

	CachesDepleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forage_caches_depleted_total",
		Help: "Caches removed because robots emptied them",
	})

	CachesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forage_caches_active",
		Help: "Caches currently in the arena",
	})

	CreationPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "forage_cache_creation_pass_seconds",
		Help:    "Time spent in one dynamic cache creation pass",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
	})
)
