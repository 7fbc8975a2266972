// Package postgres implements the review store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hsliang/redboard/internal/persistence"
)

const uniqueViolation = "23505"

const reviewColumns = `
	id, date, volume, red_count, green_count, limit_up_count, limit_down_count,
	zt_count, zt_rate, total_continuous_limit, continuous_limit_rate,
	four_plus_count, four_plus_stocks, two_board_count, three_board_count,
	three_board_stocks, total_stocks, hot_sectors, notes,
	red_rate, market_strength, max_continuous_days, first_board_count,
	three_board_stocks_with_sector, four_plus_stocks_with_sector,
	created_at, updated_at`

// reviewRepo implements persistence.ReviewStore for PostgreSQL.
type reviewRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewReviewRepo creates a PostgreSQL-backed review store.
func NewReviewRepo(db *sqlx.DB, timeout time.Duration) persistence.ReviewStore {
	return &reviewRepo{db: db, timeout: timeout}
}

// Create inserts a new review. The unique index on date arbitrates
// concurrent creations: exactly one insert wins, the rest map to
// ErrDuplicateDate.
func (r *reviewRepo) Create(ctx context.Context, review *persistence.MarketReview) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fourPlus, err := marshalRefs(review.FourPlusStocks)
	if err != nil {
		return 0, err
	}
	threeBoard, err := marshalRefs(review.ThreeBoardStocks)
	if err != nil {
		return 0, err
	}
	threeWithSector, err := marshalRefs(review.ThreeBoardWithSector)
	if err != nil {
		return 0, err
	}
	fourWithSector, err := marshalRefs(review.FourPlusWithSector)
	if err != nil {
		return 0, err
	}
	hotSectors, err := marshalStrings(review.HotSectors)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO market_review (
			date, volume, red_count, green_count, limit_up_count, limit_down_count,
			zt_count, zt_rate, total_continuous_limit, continuous_limit_rate,
			four_plus_count, four_plus_stocks, two_board_count, three_board_count,
			three_board_stocks, total_stocks, hot_sectors, notes,
			red_rate, market_strength, max_continuous_days, first_board_count,
			three_board_stocks_with_sector, four_plus_stocks_with_sector
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query,
		review.Date, review.Volume, review.RedCount, review.GreenCount,
		review.LimitUpCount, review.LimitDownCount,
		review.ZtCount, review.ZtRate, review.TotalContinuousLimit, review.ContinuousLimitRate,
		review.FourPlusCount, fourPlus, review.TwoBoardCount, review.ThreeBoardCount,
		threeBoard, review.TotalStocks, hotSectors, review.Notes,
		review.RedRate, review.MarketStrength, review.MaxContinuousDays, review.FirstBoardCount,
		threeWithSector, fourWithSector).
		Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return 0, persistence.ErrDuplicateDate
		}
		return 0, fmt.Errorf("failed to insert review: %w", err)
	}
	return review.ID, nil
}

func (r *reviewRepo) GetByDate(ctx context.Context, date string) (*persistence.MarketReview, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT` + reviewColumns + ` FROM market_review WHERE date = $1`

	review, err := scanReview(r.db.QueryRowxContext(ctx, query, date))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review by date: %w", err)
	}
	return review, nil
}

func (r *reviewRepo) GetAll(ctx context.Context, limit, offset int) ([]persistence.MarketReview, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT` + reviewColumns + `
		FROM market_review
		ORDER BY date DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []persistence.MarketReview
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

// Update rewrites the user-editable fields only.
func (r *reviewRepo) Update(ctx context.Context, id int64, update persistence.ReviewUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	hotSectors, err := marshalStrings(update.HotSectors)
	if err != nil {
		return err
	}

	query := `
		UPDATE market_review
		SET hot_sectors = $1, notes = $2, updated_at = NOW()
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, hotSectors, update.Notes, id)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return affectedOrNotFound(result)
}

func (r *reviewRepo) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM market_review WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return affectedOrNotFound(result)
}

func affectedOrNotFound(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// rowScanner covers both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*persistence.MarketReview, error) {
	var review persistence.MarketReview
	var fourPlus, threeBoard, hotSectors, threeWithSector, fourWithSector []byte

	err := row.Scan(
		&review.ID, &review.Date, &review.Volume, &review.RedCount, &review.GreenCount,
		&review.LimitUpCount, &review.LimitDownCount,
		&review.ZtCount, &review.ZtRate, &review.TotalContinuousLimit, &review.ContinuousLimitRate,
		&review.FourPlusCount, &fourPlus, &review.TwoBoardCount, &review.ThreeBoardCount,
		&threeBoard, &review.TotalStocks, &hotSectors, &review.Notes,
		&review.RedRate, &review.MarketStrength, &review.MaxContinuousDays, &review.FirstBoardCount,
		&threeWithSector, &fourWithSector,
		&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if review.FourPlusStocks, err = unmarshalRefs(fourPlus); err != nil {
		return nil, err
	}
	if review.ThreeBoardStocks, err = unmarshalRefs(threeBoard); err != nil {
		return nil, err
	}
	if review.ThreeBoardWithSector, err = unmarshalRefs(threeWithSector); err != nil {
		return nil, err
	}
	if review.FourPlusWithSector, err = unmarshalRefs(fourWithSector); err != nil {
		return nil, err
	}
	if review.HotSectors, err = unmarshalStrings(hotSectors); err != nil {
		return nil, err
	}
	return &review, nil
}

// marshalRefs serializes a stock list as UTF-8 JSON text. Nil lists store
// as "[]" so the column never carries NULL.
func marshalRefs(refs []persistence.StockRef) ([]byte, error) {
	if refs == nil {
		refs = []persistence.StockRef{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock list: %w", err)
	}
	return raw, nil
}

// unmarshalRefs accepts NULL, empty text and "[]" as the empty list.
func unmarshalRefs(raw []byte) ([]persistence.StockRef, error) {
	if len(raw) == 0 {
		return []persistence.StockRef{}, nil
	}
	var refs []persistence.StockRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stock list: %w", err)
	}
	if refs == nil {
		refs = []persistence.StockRef{}
	}
	return refs, nil
}

func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return raw, nil
}

func unmarshalStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
