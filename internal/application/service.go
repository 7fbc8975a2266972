// Package application orchestrates the domain pipeline behind the API
// surface: review generation and persistence, sentiment and rotation
// snapshots, and the sector views.
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hsliang/redboard/internal/domain/emotion"
	"github.com/hsliang/redboard/internal/domain/review"
	"github.com/hsliang/redboard/internal/domain/rotation"
	"github.com/hsliang/redboard/internal/domain/sector"
	"github.com/hsliang/redboard/internal/metrics"
	"github.com/hsliang/redboard/internal/notify"
	"github.com/hsliang/redboard/internal/persistence"
	"github.com/hsliang/redboard/internal/source"
)

// ErrInvalidDate rejects trade dates that do not parse as YYYYMMDD.
var ErrInvalidDate = errors.New("invalid trade date, want YYYYMMDD")

// List paging bounds.
const (
	defaultListLimit = 30
	maxListLimit     = 100
)

// ReviewService is the application facade over the review pipeline.
type ReviewService struct {
	src         source.RowSource
	store       persistence.ReviewStore
	bus         *notify.Bus
	metrics     *metrics.Registry
	callTimeout time.Duration
	now         func() time.Time
}

// ServiceOption configures a ReviewService.
type ServiceOption func(*ReviewService)

// WithCallTimeout bounds each upstream round-trip.
func WithCallTimeout(d time.Duration) ServiceOption {
	return func(s *ReviewService) { s.callTimeout = d }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ReviewService) { s.now = now }
}

// NewReviewService wires the facade. Bus and metrics may be nil; progress
// relay and instrumentation are then skipped.
func NewReviewService(src source.RowSource, store persistence.ReviewStore, bus *notify.Bus, reg *metrics.Registry, opts ...ServiceOption) *ReviewService {
	s := &ReviewService{
		src:         src,
		store:       store,
		bus:         bus,
		metrics:     reg,
		callTimeout: 30 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate aggregates and persists the review for a compact YYYYMMDD trade
// date; an empty date means today. Progress is relayed to the given session.
// A duplicate date surfaces persistence.ErrDuplicateDate with the computed
// record still returned for display.
func (s *ReviewService) Generate(ctx context.Context, tradeDate, session string) (*persistence.MarketReview, error) {
	if tradeDate == "" {
		tradeDate = s.now().Format("20060102")
	}
	if !review.ValidCompactDate(tradeDate) {
		return nil, ErrInvalidDate
	}

	start := s.now()
	agg := review.NewAggregator(s.src, s.store,
		review.WithCallTimeout(s.callTimeout),
		review.WithClock(s.now),
		review.WithProgress(s.progressSink(session)),
	)
	rec := agg.Aggregate(ctx, tradeDate)
	s.observe("aggregate", "ok", start)

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicateDate) {
			s.countOutcome("duplicate")
			s.publish(session, "persist", "duplicate date, record kept")
			return rec, err
		}
		s.countOutcome("error")
		s.publish(session, "persist", "failed: "+err.Error())
		return nil, err
	}
	rec.ID = id

	s.countOutcome("created")
	s.publish(session, "persist", "ok")
	log.Info().Int64("id", id).Str("date", rec.Date).Msg("market review stored")
	return rec, nil
}

// Create stores a caller-supplied review record, for manual entry of days
// the pipeline missed. The date accepts both forms and is normalized to the
// store's YYYY-MM-DD key.
func (s *ReviewService) Create(ctx context.Context, rec *persistence.MarketReview) (int64, error) {
	if review.ValidCompactDate(rec.Date) {
		rec.Date = review.CompactToStore(rec.Date)
	}
	if _, err := time.Parse("2006-01-02", rec.Date); err != nil {
		return 0, ErrInvalidDate
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicateDate) {
			s.countOutcome("duplicate")
		} else {
			s.countOutcome("error")
		}
		return 0, err
	}
	rec.ID = id
	s.countOutcome("created")
	return id, nil
}

// GetByDate fetches a stored review. Both YYYYMMDD and YYYY-MM-DD forms are
// accepted.
func (s *ReviewService) GetByDate(ctx context.Context, date string) (*persistence.MarketReview, error) {
	if review.ValidCompactDate(date) {
		date = review.CompactToStore(date)
	}
	return s.store.GetByDate(ctx, date)
}

// List returns stored reviews newest first. Limit defaults to 30 and caps
// at 100; negative offsets clamp to zero.
func (s *ReviewService) List(ctx context.Context, limit, offset int) ([]persistence.MarketReview, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.GetAll(ctx, limit, offset)
}

// Update replaces the editable fields of a stored review.
func (s *ReviewService) Update(ctx context.Context, id int64, update persistence.ReviewUpdate) error {
	return s.store.Update(ctx, id, update)
}

// Delete removes a stored review by id.
func (s *ReviewService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

// Emotion computes the live sentiment snapshot. Source failures degrade to
// the neutral snapshot instead of erroring.
func (s *ReviewService) Emotion(ctx context.Context) emotion.MarketEmotion {
	now := s.now()
	tradeDate := now.Format("20060102")

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("emotion snapshot unavailable, returning neutral")
		return emotion.Degraded(now)
	}

	breadth := emotion.Breadth{TotalStocks: len(snapshot)}
	for _, row := range snapshot {
		switch {
		case row.ChangePct > 0:
			breadth.UpCount++
		case row.ChangePct < 0:
			breadth.DownCount++
		default:
			breadth.FlatCount++
		}
	}

	// Pool failures leave the limit counts at zero; breadth still scores.
	if rows, err := s.pool(ctx, s.src.LimitUpPool, tradeDate); err == nil {
		breadth.LimitUpCount = len(rows)
	}
	if rows, err := s.pool(ctx, s.src.LimitDownPool, tradeDate); err == nil {
		breadth.LimitDownCount = len(rows)
	}

	records, err := s.sectorRecords(ctx)
	if err != nil {
		records = nil
	}
	return emotion.Score(now, breadth, records)
}

// SectorTable returns the per-sector review table, hottest first.
func (s *ReviewService) SectorTable(ctx context.Context) ([]sector.TableRow, error) {
	records, err := s.sectorRecords(ctx)
	if err != nil {
		return nil, err
	}
	return sector.ReviewTable(records), nil
}

// SectorRanking returns the top sectors by the given criterion.
func (s *ReviewService) SectorRanking(ctx context.Context, by sector.OrderBy, limit int) ([]sector.Record, error) {
	records, err := s.sectorRecords(ctx)
	if err != nil {
		return nil, err
	}
	return sector.Rank(records, by, limit), nil
}

// Rotation returns the sector rotation analysis, hottest first.
func (s *ReviewService) Rotation(ctx context.Context) ([]rotation.SectorRotation, error) {
	records, err := s.sectorRecords(ctx)
	if err != nil {
		return nil, err
	}
	return rotation.Analyze(records), nil
}

func (s *ReviewService) sectorRecords(ctx context.Context) ([]sector.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	rows, err := s.src.SectorRows(callCtx)
	if err != nil {
		return nil, err
	}
	return sector.FromRows(rows), nil
}

func (s *ReviewService) snapshot(ctx context.Context) ([]source.SnapshotRow, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.src.FullMarketSnapshot(callCtx)
}

func (s *ReviewService) pool(ctx context.Context, fetch func(context.Context, string) ([]source.PoolRow, error), date string) ([]source.PoolRow, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return fetch(callCtx, date)
}

// progressSink adapts aggregator progress into the notify bus and the
// failure counter.
func (s *ReviewService) progressSink(session string) review.ProgressFunc {
	return func(step, detail string) {
		s.publish(session, step, detail)
		if s.metrics != nil && strings.HasPrefix(detail, "failed") {
			s.metrics.SourceFailures.WithLabelValues(step).Inc()
		}
	}
}

func (s *ReviewService) publish(session, step, detail string) {
	if s.bus != nil && session != "" {
		s.bus.Publish(session, step, detail)
	}
}

func (s *ReviewService) observe(step, result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StepDuration.WithLabelValues(step, result).Observe(s.now().Sub(start).Seconds())
	}
}

func (s *ReviewService) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.ReviewsCreated.WithLabelValues(outcome).Inc()
	}
}
