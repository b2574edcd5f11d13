// Package monitoring exposes Prometheus metrics for search runs.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocklab_evaluations_total",
			Help: "Candidate evaluations by outcome status",
		},
		[]string{"status"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stocklab_evaluation_seconds",
			Help:    "Wall time of one candidate evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocklab_dataset_cache_hits_total",
			Help: "Dataset loads served from the in-memory cache",
		},
	)

	bestScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocklab_best_score",
			Help: "Best candidate score seen so far in the current run",
		},
	)
)

func init() {
	prometheus.MustRegister(evaluationsTotal)
	prometheus.MustRegister(evaluationDuration)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(bestScore)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvaluation records the outcome and duration of one evaluation.
func RecordEvaluation(status string, d time.Duration) {
	evaluationsTotal.WithLabelValues(status).Inc()
	evaluationDuration.Observe(d.Seconds())
}

// RecordCacheHit counts a dataset load served from cache.
func RecordCacheHit() {
	cacheHitsTotal.Inc()
}

// SetBestScore publishes the running best score.
func SetBestScore(score float64) {
	bestScore.Set(score)
}
