// Package source defines the market data provider contract the review
// pipeline consumes. Implementations are latency-bound remote calls; every
// method takes a context and callers apply per-call timeouts.
package source

import (
	"context"
	"errors"
)

// ErrUnavailable marks a data source failure. The pipeline degrades the
// affected sub-metric to its zero default instead of aborting.
var ErrUnavailable = errors.New("market data source unavailable")

// PoolRow is one entry from a limit-up, limit-down or burst pool.
type PoolRow struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	BoardCount int    `json:"board_count"` // consecutive limit-up days
	BurstCount int    `json:"burst_count"` // intraday limit-up failures
}

// SnapshotRow is one entry from the full-market quote snapshot.
type SnapshotRow struct {
	Code           string  `json:"code"`
	ChangePct      float64 `json:"change_pct"`
	TurnoverAmount float64 `json:"turnover_amount"`
	Volume         float64 `json:"volume"`
}

// RowSource yields per-trading-day market observations. Dates use the
// compact YYYYMMDD format the upstream aggregator expects.
type RowSource interface {
	// LimitUpPool returns the stocks that closed at their limit-up cap.
	LimitUpPool(ctx context.Context, date string) ([]PoolRow, error)

	// LimitDownPool returns the stocks that closed at their limit-down cap.
	LimitDownPool(ctx context.Context, date string) ([]PoolRow, error)

	// ConsecutiveBoardPool returns the stocks on a streak of two or more
	// consecutive limit-up closes.
	ConsecutiveBoardPool(ctx context.Context, date string) ([]PoolRow, error)

	// BurstPool returns the stocks that touched limit-up intraday but
	// failed to hold it into the close.
	BurstPool(ctx context.Context, date string) ([]PoolRow, error)

	// FullMarketSnapshot returns the live quote table for the whole market.
	FullMarketSnapshot(ctx context.Context) ([]SnapshotRow, error)

	// SectorRows returns raw sector table rows as ordered column cells.
	SectorRows(ctx context.Context) ([][]string, error)
}
