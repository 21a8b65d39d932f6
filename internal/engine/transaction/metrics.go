package transaction

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("docengine.transaction")

var (
	beginTotal    metric.Int64Counter
	commitTotal   metric.Int64Counter
	rollbackTotal metric.Int64Counter
	txDuration    metric.Float64Histogram
	opsPerChange  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

var metricsEnabled atomic.Bool

func init() {
	metricsEnabled.Store(true)
}

// SetMetricsEnabled controls whether transaction metrics are recorded.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		beginTotal, err = meter.Int64Counter(
			"docengine_transaction_begin_total",
			metric.WithDescription("Transactions opened"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commitTotal, err = meter.Int64Counter(
			"docengine_transaction_commit_total",
			metric.WithDescription("Transactions committed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rollbackTotal, err = meter.Int64Counter(
			"docengine_transaction_rollback_total",
			metric.WithDescription("Transactions rolled back"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		txDuration, err = meter.Float64Histogram(
			"docengine_transaction_duration_seconds",
			metric.WithDescription("Time a transaction stayed open"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opsPerChange, err = meter.Int64Histogram(
			"docengine_transaction_operations",
			metric.WithDescription("Operations buffered per transaction"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBegin(ctx context.Context, success bool) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	beginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status(success))))
}

func recordCommit(ctx context.Context, duration time.Duration, ops int) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", "committed"))
	commitTotal.Add(ctx, 1)
	txDuration.Record(ctx, duration.Seconds(), attrs)
	opsPerChange.Record(ctx, int64(ops), attrs)
}

// recordRollback records a rollback. reason is "error", "panic" or "user".
func recordRollback(ctx context.Context, duration time.Duration, ops int, reason string, success bool) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", "rolled_back"))
	rollbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("result", status(success)),
	))
	txDuration.Record(ctx, duration.Seconds(), attrs)
	opsPerChange.Record(ctx, int64(ops), attrs)
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
