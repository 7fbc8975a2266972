// Package persistence defines the review store contract and the persisted
// market review entity.
package persistence

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateDate is returned by Create when a record for the same
	// trading date already exists. Date is the store's unique key.
	ErrDuplicateDate = errors.New("review record already exists for date")

	// ErrNotFound is returned when a record id or date does not exist.
	ErrNotFound = errors.New("review record not found")
)

// StockRef identifies a stock inside a board-streak list. Sector is a
// placeholder for a future sector join and is stored empty today.
type StockRef struct {
	Code   string `json:"code" db:"code"`
	Name   string `json:"name" db:"name"`
	Sector string `json:"sector,omitempty" db:"sector"`
}

// MarketReview is the persisted daily review snapshot. Date uses the
// YYYY-MM-DD form and is unique per record. List-valued fields are stored
// as JSON text and must round-trip losslessly.
type MarketReview struct {
	ID                   int64      `json:"id" db:"id"`
	Date                 string     `json:"date" db:"date"`
	Volume               int64      `json:"volume" db:"volume"`
	RedCount             int        `json:"red_count" db:"red_count"`
	GreenCount           int        `json:"green_count" db:"green_count"`
	LimitUpCount         int        `json:"limit_up_count" db:"limit_up_count"`
	LimitDownCount       int        `json:"limit_down_count" db:"limit_down_count"`
	ZtCount              int        `json:"zt_count" db:"zt_count"`
	ZtRate               int        `json:"zt_rate" db:"zt_rate"`
	TotalContinuousLimit int        `json:"total_continuous_limit" db:"total_continuous_limit"`
	ContinuousLimitRate  int        `json:"continuous_limit_rate" db:"continuous_limit_rate"`
	FourPlusCount        int        `json:"four_plus_count" db:"four_plus_count"`
	FourPlusStocks       []StockRef `json:"four_plus_stocks" db:"-"`
	TwoBoardCount        int        `json:"two_board_count" db:"two_board_count"`
	ThreeBoardCount      int        `json:"three_board_count" db:"three_board_count"`
	ThreeBoardStocks     []StockRef `json:"three_board_stocks" db:"-"`
	TotalStocks          int        `json:"total_stocks" db:"total_stocks"`
	HotSectors           []string   `json:"hot_sectors" db:"-"`
	Notes                string     `json:"notes" db:"notes"`
	RedRate              int        `json:"red_rate" db:"red_rate"`
	MarketStrength       string     `json:"market_strength" db:"market_strength"`
	MaxContinuousDays    int        `json:"max_continuous_days" db:"max_continuous_days"`
	FirstBoardCount      int        `json:"first_board_count" db:"first_board_count"`
	ThreeBoardWithSector []StockRef `json:"three_board_stocks_with_sector" db:"-"`
	FourPlusWithSector   []StockRef `json:"four_plus_stocks_with_sector" db:"-"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// ReviewUpdate carries the only two fields the update path may touch.
type ReviewUpdate struct {
	HotSectors []string `json:"hot_sectors"`
	Notes      string   `json:"notes"`
}

// ReviewStore persists daily review snapshots keyed by trading date.
type ReviewStore interface {
	// Create inserts a new record and returns its assigned id.
	// ErrDuplicateDate when a record for the same date exists.
	Create(ctx context.Context, review *MarketReview) (int64, error)

	// GetByDate fetches the record for a YYYY-MM-DD date.
	GetByDate(ctx context.Context, date string) (*MarketReview, error)

	// GetAll lists records ordered by date descending.
	GetAll(ctx context.Context, limit, offset int) ([]MarketReview, error)

	// Update replaces hot_sectors and notes on an existing record.
	Update(ctx context.Context, id int64, update ReviewUpdate) error

	// Delete removes a record by id.
	Delete(ctx context.Context, id int64) error
}
