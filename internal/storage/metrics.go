package storage

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// RegisterPoolMetrics exports pgxpool statistics as observable gauges.
// Registration failures are logged and otherwise ignored; metrics are
// best-effort.
func (db *DB) RegisterPoolMetrics() {
	meter := otel.GetMeterProvider().Meter("studio/storage")

	total, err := meter.Int64ObservableGauge("db.pool.connections.total",
		metric.WithDescription("Total connections in the pool"))
	if err != nil {
		db.logger.Warn("pool metrics registration failed", "error", err)
		return
	}
	idle, err := meter.Int64ObservableGauge("db.pool.connections.idle",
		metric.WithDescription("Idle connections in the pool"))
	if err != nil {
		db.logger.Warn("pool metrics registration failed", "error", err)
		return
	}
	acquired, err := meter.Int64ObservableGauge("db.pool.connections.acquired",
		metric.WithDescription("Connections currently checked out"))
	if err != nil {
		db.logger.Warn("pool metrics registration failed", "error", err)
		return
	}
	waitCount, err := meter.Int64ObservableGauge("db.pool.acquire.blocked.total",
		metric.WithDescription("Acquires that blocked waiting for a connection"))
	if err != nil {
		db.logger.Warn("pool metrics registration failed", "error", err)
		return
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := db.pool.Stat()
		o.ObserveInt64(total, int64(stats.TotalConns()))
		o.ObserveInt64(idle, int64(stats.IdleConns()))
		o.ObserveInt64(acquired, int64(stats.AcquiredConns()))
		o.ObserveInt64(waitCount, stats.EmptyAcquireCount())
		return nil
	}, total, idle, acquired, waitCount)
	if err != nil {
		db.logger.Warn("pool metrics callback registration failed", "error", err)
	}
}
