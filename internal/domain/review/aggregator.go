// Package review assembles the daily market review snapshot from the pool
// and snapshot sources. Every sub-metric degrades to its zero default on a
// source failure; nothing short of total misconfiguration aborts a run.
package review

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hsliang/redboard/internal/persistence"
	"github.com/hsliang/redboard/internal/source"
)

// Board streak buckets.
const (
	twoBoards      = 2
	threeBoards    = 3
	fourPlusBoards = 4
)

// Market strength ladder over the red ratio (red_count / total_stocks).
const (
	extremelyStrongFloor = 0.8
	strongFloor          = 0.7
	slightlyStrongFloor  = 0.5
	neutralFloor         = 0.4
	slightlyWeakFloor    = 0.2
)

// ProgressFunc receives step-level progress for the log relay. May be nil.
type ProgressFunc func(step, detail string)

// Aggregator computes the pre-persistence review record for a trade date.
type Aggregator struct {
	src         source.RowSource
	store       persistence.ReviewStore
	callTimeout time.Duration
	progress    ProgressFunc
	now         func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCallTimeout bounds each source round-trip. A timeout is treated the
// same as the source being unavailable for that sub-metric.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.callTimeout = d }
}

// WithProgress streams step progress to the given sink.
func WithProgress(fn ProgressFunc) Option {
	return func(a *Aggregator) { a.progress = fn }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator wires an aggregator over the given source. The store is
// only consulted for the prior-day limit-up lookup and may be nil, in which
// case the snapshot fallback denominator is used directly.
func NewAggregator(src source.RowSource, store persistence.ReviewStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:         src,
		store:       store,
		callTimeout: 30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate computes the review record for a compact YYYYMMDD trade date.
// An empty date means today. Aggregate never returns an error: when the
// source cannot be reached at all the result is a fully zeroed record.
func (a *Aggregator) Aggregate(ctx context.Context, tradeDate string) *persistence.MarketReview {
	if tradeDate == "" {
		tradeDate = a.now().Format(compactLayout)
	}
	if a.src == nil {
		log.Error().Str("date", tradeDate).Msg("review aggregation has no data source, returning empty record")
		return a.emptyRecord()
	}

	log.Info().Str("date", tradeDate).Msg("aggregating market review")

	rec := &persistence.MarketReview{
		Date:             CompactToStore(tradeDate),
		FourPlusStocks:   []persistence.StockRef{},
		ThreeBoardStocks: []persistence.StockRef{},
		HotSectors:       []string{},
	}

	limitUpRows, limitUpOK := a.fetchPool(ctx, "limit_up_pool", tradeDate, a.src.LimitUpPool)
	rec.LimitUpCount = len(limitUpRows)

	// An empty limit-up pool on a real trading day is rare; it usually
	// means the date is non-trading or out of the supported range. The two
	// conditions are logged apart so operators can tell them from a source
	// outage, but both zero the market-statistics block below.
	invalidDate := limitUpOK && len(limitUpRows) == 0
	if invalidDate {
		log.Warn().Str("date", tradeDate).Msg("limit-up pool empty, date may be non-trading")
	}

	limitDownRows, _ := a.fetchPool(ctx, "limit_down_pool", tradeDate, a.src.LimitDownPool)
	rec.LimitDownCount = len(limitDownRows)

	boardRows, _ := a.fetchPool(ctx, "consecutive_board_pool", tradeDate, a.src.ConsecutiveBoardPool)
	a.applyBoardBreakdown(rec, boardRows)

	if !invalidDate {
		a.applySnapshot(ctx, rec)
	} else {
		a.step("market_snapshot", "skipped: possible non-trading date")
	}

	a.applyBurst(ctx, rec, tradeDate, boardRows)

	rec.ContinuousLimitRate = a.continuousLimitRate(ctx, tradeDate, rec.TotalContinuousLimit, rec.TotalStocks)
	rec.RedRate = roundRate(rec.RedCount, rec.TotalStocks)
	rec.MarketStrength = marketStrength(rec.RedCount, rec.TotalStocks)

	if first := rec.LimitUpCount - rec.TotalContinuousLimit; first > 0 {
		rec.FirstBoardCount = first
	}

	// Sector tags are a future join; today the enriched lists carry the
	// same refs with an empty sector.
	rec.ThreeBoardWithSector = withEmptySector(rec.ThreeBoardStocks)
	rec.FourPlusWithSector = withEmptySector(rec.FourPlusStocks)

	log.Info().
		Str("date", rec.Date).
		Int("limit_up", rec.LimitUpCount).
		Int("limit_down", rec.LimitDownCount).
		Int("continuous", rec.TotalContinuousLimit).
		Int("red", rec.RedCount).
		Int("total", rec.TotalStocks).
		Msg("market review aggregated")

	return rec
}

func (a *Aggregator) fetchPool(ctx context.Context, step, date string, fetch func(context.Context, string) ([]source.PoolRow, error)) ([]source.PoolRow, bool) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	rows, err := fetch(callCtx, date)
	if err != nil {
		log.Warn().Err(err).Str("step", step).Str("date", date).Msg("source call failed, sub-metric degrades to zero")
		a.step(step, "failed: "+err.Error())
		return nil, false
	}
	a.step(step, "ok")
	return rows, true
}

func (a *Aggregator) applyBoardBreakdown(rec *persistence.MarketReview, rows []source.PoolRow) {
	rec.TotalContinuousLimit = len(rows)

	maxDays := 0
	for _, row := range rows {
		switch {
		case row.BoardCount == twoBoards:
			rec.TwoBoardCount++
		case row.BoardCount == threeBoards:
			rec.ThreeBoardCount++
			rec.ThreeBoardStocks = append(rec.ThreeBoardStocks, persistence.StockRef{Code: row.Code, Name: row.Name})
		case row.BoardCount >= fourPlusBoards:
			rec.FourPlusCount++
			rec.FourPlusStocks = append(rec.FourPlusStocks, persistence.StockRef{Code: row.Code, Name: row.Name})
			if row.BoardCount > maxDays {
				maxDays = row.BoardCount
			}
		}
	}
	rec.MaxContinuousDays = maxDays
}

func (a *Aggregator) applySnapshot(ctx context.Context, rec *persistence.MarketReview) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	rows, err := a.src.FullMarketSnapshot(callCtx)
	if err != nil {
		log.Warn().Err(err).Str("step", "market_snapshot").Msg("source call failed, sub-metric degrades to zero")
		a.step("market_snapshot", "failed: "+err.Error())
		return
	}
	a.step("market_snapshot", "ok")

	rec.TotalStocks = len(rows)

	var amountSum, volumeSum float64
	for _, row := range rows {
		if row.ChangePct > 0 {
			rec.RedCount++
		} else if row.ChangePct < 0 {
			rec.GreenCount++
		}
		amountSum += row.TurnoverAmount
		volumeSum += row.Volume
	}

	// Prefer the turnover-amount column; fall back to traded volume when
	// the snapshot carries no amounts at all.
	if amountSum > 0 {
		rec.Volume = int64(amountSum)
	} else {
		rec.Volume = int64(volumeSum)
	}
}

func (a *Aggregator) applyBurst(ctx context.Context, rec *persistence.MarketReview, date string, boardRows []source.PoolRow) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	burstRows, err := a.src.BurstPool(callCtx, date)
	if err != nil {
		// Burst pool down: approximate from the consecutive-board rows
		// that recorded at least one failed limit-up attempt.
		log.Warn().Err(err).Str("step", "burst_pool").Msg("burst pool unavailable, falling back to board burst counts")
		count := 0
		for _, row := range boardRows {
			if row.BurstCount > 0 {
				count++
			}
		}
		rec.ZtCount = count
		a.step("burst_pool", "degraded to board burst counts")
	} else {
		rec.ZtCount = len(burstRows)
		a.step("burst_pool", "ok")
	}

	rec.ZtRate = roundRate(rec.ZtCount, rec.ZtCount+rec.LimitUpCount)
}

// continuousLimitRate relates today's streak pool to yesterday's limit-up
// count; without a usable prior record it falls back to today's universe.
func (a *Aggregator) continuousLimitRate(ctx context.Context, tradeDate string, totalContinuous, totalStocks int) int {
	if prevDate, ok := PrevStoreDate(tradeDate); ok && a.store != nil {
		callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
		defer cancel()

		prev, err := a.store.GetByDate(callCtx, prevDate)
		if err == nil && prev != nil && prev.LimitUpCount > 0 {
			return roundRate(totalContinuous, prev.LimitUpCount)
		}
		if err != nil && !errors.Is(err, persistence.ErrNotFound) {
			log.Warn().Err(err).Str("date", prevDate).Msg("prior-day review lookup failed")
		}
	}
	return roundRate(totalContinuous, totalStocks)
}

func (a *Aggregator) emptyRecord() *persistence.MarketReview {
	return &persistence.MarketReview{
		Date:                 a.now().Format(storeLayout),
		FourPlusStocks:       []persistence.StockRef{},
		ThreeBoardStocks:     []persistence.StockRef{},
		HotSectors:           []string{},
		ThreeBoardWithSector: []persistence.StockRef{},
		FourPlusWithSector:   []persistence.StockRef{},
	}
}

func (a *Aggregator) step(name, detail string) {
	if a.progress != nil {
		a.progress(name, detail)
	}
}

func roundRate(numerator, denominator int) int {
	if denominator <= 0 {
		return 0
	}
	return int(math.Round(float64(numerator) / float64(denominator) * 100))
}

func marketStrength(redCount, totalStocks int) string {
	if totalStocks == 0 {
		return ""
	}
	ratio := float64(redCount) / float64(totalStocks)
	switch {
	case ratio >= extremelyStrongFloor:
		return "extremely strong"
	case ratio >= strongFloor:
		return "strong"
	case ratio >= slightlyStrongFloor:
		return "slightly strong"
	case ratio >= neutralFloor:
		return "neutral"
	case ratio >= slightlyWeakFloor:
		return "slightly weak"
	default:
		return "weak"
	}
}

func withEmptySector(refs []persistence.StockRef) []persistence.StockRef {
	out := make([]persistence.StockRef, len(refs))
	for i, ref := range refs {
		out[i] = persistence.StockRef{Code: ref.Code, Name: ref.Name}
	}
	return out
}
