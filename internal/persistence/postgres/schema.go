package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is the market_review DDL. The unique index on date is what makes
// concurrent same-day creations resolve to a single winner.
const Schema = `
CREATE TABLE IF NOT EXISTS market_review (
	id                              BIGSERIAL PRIMARY KEY,
	date                            VARCHAR(10) NOT NULL UNIQUE,
	volume                          BIGINT NOT NULL DEFAULT 0,
	red_count                       INTEGER NOT NULL DEFAULT 0,
	green_count                     INTEGER NOT NULL DEFAULT 0,
	limit_up_count                  INTEGER NOT NULL DEFAULT 0,
	limit_down_count                INTEGER NOT NULL DEFAULT 0,
	zt_count                        INTEGER NOT NULL DEFAULT 0,
	zt_rate                         INTEGER NOT NULL DEFAULT 0,
	total_continuous_limit          INTEGER NOT NULL DEFAULT 0,
	continuous_limit_rate           INTEGER NOT NULL DEFAULT 0,
	four_plus_count                 INTEGER NOT NULL DEFAULT 0,
	four_plus_stocks                TEXT NOT NULL DEFAULT '[]',
	two_board_count                 INTEGER NOT NULL DEFAULT 0,
	three_board_count               INTEGER NOT NULL DEFAULT 0,
	three_board_stocks              TEXT NOT NULL DEFAULT '[]',
	total_stocks                    INTEGER NOT NULL DEFAULT 0,
	hot_sectors                     TEXT NOT NULL DEFAULT '[]',
	notes                           TEXT NOT NULL DEFAULT '',
	red_rate                        INTEGER NOT NULL DEFAULT 0,
	market_strength                 VARCHAR(32) NOT NULL DEFAULT '',
	max_continuous_days             INTEGER NOT NULL DEFAULT 0,
	first_board_count               INTEGER NOT NULL DEFAULT 0,
	three_board_stocks_with_sector  TEXT NOT NULL DEFAULT '[]',
	four_plus_stocks_with_sector    TEXT NOT NULL DEFAULT '[]',
	created_at                      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_market_review_date ON market_review (date DESC);
`

// Migrate applies the review schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply market_review schema: %w", err)
	}
	return nil
}
