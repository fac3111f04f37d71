package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecipeCacheMetrics tracks the two-layer recipe list cache. A nil
// *RecipeCacheMetrics is valid and records nothing.
type RecipeCacheMetrics struct {
	Lookups       *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
	CachedRecipes prometheus.Gauge
	StoreLoads    prometheus.Histogram
}

func NewRecipeCacheMetrics(reg prometheus.Registerer) *RecipeCacheMetrics {
	m := &RecipeCacheMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipe_cache",
			Name:      "lookups_total",
			Help:      "Recipe list lookups by cache layer and result (hit or miss).",
		}, []string{"layer", "result"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipe_cache",
			Name:      "invalidations_total",
			Help:      "Recipe list invalidations, local after an insert here or remote via pub/sub.",
		}, []string{"source"}),
		CachedRecipes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recipe_cache",
			Name:      "recipes",
			Help:      "Number of recipes in the most recently loaded list.",
		}),
		StoreLoads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recipe_cache",
			Name:      "store_load_duration_seconds",
			Help:      "Time spent reading the recipe list from PostgreSQL after both layers missed.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	reg.MustRegister(m.Lookups, m.Invalidations, m.CachedRecipes, m.StoreLoads)
	return m
}

// Lookup records one cache layer consultation.
func (m *RecipeCacheMetrics) Lookup(layer string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Lookups.WithLabelValues(layer, result).Inc()
}

// Invalidated records a dropped list; source is "local" or "remote".
func (m *RecipeCacheMetrics) Invalidated(source string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(source).Inc()
}

// Loaded records a successful store read of n recipes.
func (m *RecipeCacheMetrics) Loaded(n int, took time.Duration) {
	if m == nil {
		return
	}
	m.CachedRecipes.Set(float64(n))
	m.StoreLoads.Observe(took.Seconds())
}
