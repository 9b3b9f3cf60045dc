package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboard_store_upserts_total",
		Help: "Total number of upserts by table and outcome (success or error)",
	}, []string{"table", "outcome"})

	upsertDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "onboard_store_upsert_duration_seconds",
		Help:    "Duration of upserts by table",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"table"})
)

func observeUpsert(table string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	upsertsTotal.WithLabelValues(table, outcome).Inc()
	upsertDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}
