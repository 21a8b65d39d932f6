package snapshot

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/docengine/internal/engine/docerr"
)

var (
	// opsApplied counts operations folded into snapshots.
	opsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docengine_snapshot_ops_applied_total",
		Help: "Operations applied while computing snapshots",
	})

	// opsSkipped counts operations that failed to apply and were skipped.
	opsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docengine_snapshot_ops_skipped_total",
		Help: "Operations skipped while computing snapshots, by error kind",
	}, []string{"kind"})

	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docengine_snapshot_compute_duration_seconds",
		Help:    "Snapshot fold duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})

	// lookups counts snapshot requests by where the result came from.
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docengine_snapshot_lookups_total",
		Help: "Snapshot lookups by source (cache, stored, base)",
	}, []string{"source"})
)

func errorKind(err error) string {
	switch kind := docerr.KindOf(err); {
	case errors.Is(kind, docerr.ErrNotFound):
		return "not_found"
	case errors.Is(kind, docerr.ErrApplication):
		return "application"
	case errors.Is(kind, docerr.ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(kind, docerr.ErrIllegalState):
		return "illegal_state"
	default:
		return "other"
	}
}
