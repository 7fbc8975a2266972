package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsliang/redboard/internal/persistence"
	"github.com/hsliang/redboard/internal/source"
)

type stubSource struct {
	limitUp    []source.PoolRow
	limitUpErr error

	limitDown    []source.PoolRow
	limitDownErr error

	boards    []source.PoolRow
	boardsErr error

	burst    []source.PoolRow
	burstErr error

	snapshot    []source.SnapshotRow
	snapshotErr error

	sectors [][]string
}

func (s *stubSource) LimitUpPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return s.limitUp, s.limitUpErr
}

func (s *stubSource) LimitDownPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return s.limitDown, s.limitDownErr
}

func (s *stubSource) ConsecutiveBoardPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return s.boards, s.boardsErr
}

func (s *stubSource) BurstPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return s.burst, s.burstErr
}

func (s *stubSource) FullMarketSnapshot(ctx context.Context) ([]source.SnapshotRow, error) {
	return s.snapshot, s.snapshotErr
}

func (s *stubSource) SectorRows(ctx context.Context) ([][]string, error) {
	return s.sectors, nil
}

type stubStore struct {
	persistence.ReviewStore
	byDate map[string]*persistence.MarketReview
	err    error
}

func (s *stubStore) GetByDate(ctx context.Context, date string) (*persistence.MarketReview, error) {
	if s.err != nil {
		return nil, s.err
	}
	if rec, ok := s.byDate[date]; ok {
		return rec, nil
	}
	return nil, persistence.ErrNotFound
}

func poolRows(n int) []source.PoolRow {
	rows := make([]source.PoolRow, n)
	for i := range rows {
		rows[i] = source.PoolRow{Code: "600000", Name: "stock"}
	}
	return rows
}

func snapshotRows(total, red int) []source.SnapshotRow {
	rows := make([]source.SnapshotRow, total)
	for i := range rows {
		pct := -1.0
		if i < red {
			pct = 1.0
		}
		rows[i] = source.SnapshotRow{Code: "600000", ChangePct: pct, TurnoverAmount: 1000}
	}
	return rows
}

func TestAggregate_EndToEnd(t *testing.T) {
	src := &stubSource{
		limitUp:   poolRows(50),
		limitDown: poolRows(5),
		boards: []source.PoolRow{
			{Code: "600001", Name: "二板股", BoardCount: 2},
			{Code: "600002", Name: "三板股", BoardCount: 3},
			{Code: "600003", Name: "五板股", BoardCount: 5},
		},
		snapshot: snapshotRows(4000, 2500),
		burstErr: errors.New("no burst endpoint"),
	}

	agg := NewAggregator(src, &stubStore{})
	rec := agg.Aggregate(context.Background(), "20250106")

	assert.Equal(t, "2025-01-06", rec.Date)
	assert.Equal(t, 50, rec.LimitUpCount)
	assert.Equal(t, 5, rec.LimitDownCount)
	assert.Equal(t, 3, rec.TotalContinuousLimit)
	assert.Equal(t, 1, rec.TwoBoardCount)
	assert.Equal(t, 1, rec.ThreeBoardCount)
	assert.Equal(t, 1, rec.FourPlusCount)
	assert.Equal(t, 5, rec.MaxContinuousDays)
	assert.Equal(t, 2500, rec.RedCount)
	assert.Equal(t, 1500, rec.GreenCount)
	assert.Equal(t, 4000, rec.TotalStocks)
	assert.Equal(t, 63, rec.RedRate, "2500/4000 rounds to 63")
	assert.Equal(t, "slightly strong", rec.MarketStrength)
	assert.Equal(t, 47, rec.FirstBoardCount)
	assert.Equal(t, int64(4000*1000), rec.Volume)

	require.Len(t, rec.ThreeBoardStocks, 1)
	assert.Equal(t, "三板股", rec.ThreeBoardStocks[0].Name)
	require.Len(t, rec.FourPlusStocks, 1)
	assert.Equal(t, "五板股", rec.FourPlusStocks[0].Name)

	// Sector enrichment is a placeholder: same refs, empty sector tag.
	require.Len(t, rec.FourPlusWithSector, 1)
	assert.Equal(t, "五板股", rec.FourPlusWithSector[0].Name)
	assert.Empty(t, rec.FourPlusWithSector[0].Sector)
}

func TestAggregate_Idempotent(t *testing.T) {
	src := &stubSource{
		limitUp:   poolRows(10),
		limitDown: poolRows(2),
		boards:    []source.PoolRow{{Code: "600001", Name: "a", BoardCount: 2}},
		snapshot:  snapshotRows(100, 60),
		burst:     poolRows(3),
	}
	agg := NewAggregator(src, &stubStore{})

	first := agg.Aggregate(context.Background(), "20250106")
	second := agg.Aggregate(context.Background(), "20250106")
	assert.Equal(t, first, second)
}

func TestAggregate_SubMetricDegradesAlone(t *testing.T) {
	src := &stubSource{
		limitUp:      poolRows(20),
		limitDownErr: errors.New("timeout"),
		boards:       []source.PoolRow{{BoardCount: 2}},
		snapshot:     snapshotRows(100, 50),
		burst:        poolRows(4),
	}

	rec := NewAggregator(src, &stubStore{}).Aggregate(context.Background(), "20250106")

	assert.Equal(t, 0, rec.LimitDownCount, "failed source zeroes only its metric")
	assert.Equal(t, 20, rec.LimitUpCount)
	assert.Equal(t, 100, rec.TotalStocks)
	assert.Equal(t, 4, rec.ZtCount)
	// 4 / (4 + 20) = 16.67 -> 17
	assert.Equal(t, 17, rec.ZtRate)
}

func TestAggregate_EmptyLimitUpPoolSkipsSnapshot(t *testing.T) {
	src := &stubSource{
		limitUp:  nil, // fetched fine, zero rows: likely non-trading date
		snapshot: snapshotRows(4000, 2000),
	}

	rec := NewAggregator(src, &stubStore{}).Aggregate(context.Background(), "20250101")

	assert.Zero(t, rec.TotalStocks)
	assert.Zero(t, rec.RedCount)
	assert.Zero(t, rec.Volume)
	assert.Empty(t, rec.MarketStrength)
}

func TestAggregate_LimitUpErrorStillReadsSnapshot(t *testing.T) {
	src := &stubSource{
		limitUpErr: errors.New("pool endpoint down"),
		snapshot:   snapshotRows(100, 80),
	}

	rec := NewAggregator(src, &stubStore{}).Aggregate(context.Background(), "20250106")

	// A source failure is not the non-trading-date signal.
	assert.Equal(t, 100, rec.TotalStocks)
	assert.Equal(t, 80, rec.RedCount)
	assert.Equal(t, "extremely strong", rec.MarketStrength)
}

func TestAggregate_ContinuousLimitRatePrefersPriorDay(t *testing.T) {
	src := &stubSource{
		limitUp:  poolRows(40),
		boards:   []source.PoolRow{{BoardCount: 2}, {BoardCount: 2}, {BoardCount: 3}},
		snapshot: snapshotRows(5000, 2000),
	}
	store := &stubStore{byDate: map[string]*persistence.MarketReview{
		"2025-01-05": {Date: "2025-01-05", LimitUpCount: 30},
	}}

	rec := NewAggregator(src, store).Aggregate(context.Background(), "20250106")
	assert.Equal(t, 10, rec.ContinuousLimitRate, "3/30 = 10%")
}

func TestAggregate_ContinuousLimitRateFallsBackToUniverse(t *testing.T) {
	src := &stubSource{
		limitUp:  poolRows(40),
		boards:   poolRows(0),
		snapshot: snapshotRows(100, 50),
	}
	src.boards = []source.PoolRow{{BoardCount: 2}, {BoardCount: 2}}

	rec := NewAggregator(src, &stubStore{}).Aggregate(context.Background(), "20250106")
	assert.Equal(t, 2, rec.ContinuousLimitRate, "2/100 without a prior record")
}

func TestAggregate_BurstPoolPreferred(t *testing.T) {
	src := &stubSource{
		limitUp:  poolRows(10),
		boards:   []source.PoolRow{{BoardCount: 2, BurstCount: 3}},
		burst:    poolRows(5),
		snapshot: snapshotRows(10, 5),
	}

	rec := NewAggregator(src, &stubStore{}).Aggregate(context.Background(), "20250106")
	assert.Equal(t, 5, rec.ZtCount, "dedicated burst pool wins over board burst counts")
	// 5/(5+10) = 33.33 -> 33
	assert.Equal(t, 33, rec.ZtRate)
}

func TestAggregate_NoSourceReturnsEmptyRecordForToday(t *testing.T) {
	now := time.Date(2025, 3, 1, 16, 0, 0, 0, time.Local)
	agg := NewAggregator(nil, nil, WithClock(func() time.Time { return now }))

	rec := agg.Aggregate(context.Background(), "")

	assert.Equal(t, "2025-03-01", rec.Date)
	assert.Zero(t, rec.LimitUpCount)
	assert.NotNil(t, rec.FourPlusStocks)
	assert.Empty(t, rec.FourPlusStocks)
	assert.Empty(t, rec.Notes)
}

func TestMarketStrengthLadder(t *testing.T) {
	tests := []struct {
		red, total int
		want       string
	}{
		{85, 100, "extremely strong"},
		{70, 100, "strong"},
		{63, 100, "slightly strong"},
		{45, 100, "neutral"},
		{25, 100, "slightly weak"},
		{5, 100, "weak"},
		{0, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, marketStrength(tt.red, tt.total), "%d/%d", tt.red, tt.total)
	}
}

func TestDateHelpers(t *testing.T) {
	assert.Equal(t, "2025-01-06", CompactToStore("20250106"))
	assert.Equal(t, "20250106", StoreToCompact("2025-01-06"))
	assert.Equal(t, "bogus", CompactToStore("bogus"))

	prev, ok := PrevStoreDate("20250106")
	require.True(t, ok)
	assert.Equal(t, "2025-01-05", prev)

	_, ok = PrevStoreDate("not-a-date")
	assert.False(t, ok)

	assert.True(t, ValidCompactDate("20250106"))
	assert.False(t, ValidCompactDate("2025-01-06"))
}
