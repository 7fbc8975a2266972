package emotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hsliang/redboard/internal/domain/sector"
)

var day = time.Date(2025, 1, 6, 15, 30, 0, 0, time.Local)

func balancedSectors() []sector.Record {
	// Exactly half up: no sector adjustment either way.
	return []sector.Record{
		{Code: "a", ChangePct: 1.0},
		{Code: "b", ChangePct: 2.0},
		{Code: "c", ChangePct: -1.0},
		{Code: "d", ChangePct: -0.5},
	}
}

func TestScore_BullishBreadth(t *testing.T) {
	breadth := Breadth{
		TotalStocks:    1000,
		UpCount:        700,
		DownCount:      300,
		LimitUpCount:   50,
		LimitDownCount: 5,
	}

	got := Score(day, breadth, balancedSectors())

	// 50 + (0.7-0.5)*40 + (0.05-0.005)*30 = 59.35
	assert.InDelta(t, 59.35, got.EmotionScore, 1e-9)
	assert.GreaterOrEqual(t, got.EmotionScore, 0.0)
	assert.LessOrEqual(t, got.EmotionScore, 100.0)
	assert.Equal(t, CycleChoppy, got.EmotionCycle)
	assert.Equal(t, "2025-01-06", got.Date)
}

func TestScore_ClampsToHundred(t *testing.T) {
	breadth := Breadth{
		TotalStocks:  1000,
		UpCount:      1000,
		LimitUpCount: 1000,
	}
	hot := []sector.Record{{ChangePct: 5}, {ChangePct: 6}, {ChangePct: 7}}

	got := Score(day, breadth, hot)
	assert.InDelta(t, 100.0, got.EmotionScore, 1e-9)
	assert.Equal(t, CycleRising, got.EmotionCycle)
}

func TestScore_ClampsToZero(t *testing.T) {
	breadth := Breadth{
		TotalStocks:    1000,
		DownCount:      1000,
		LimitDownCount: 1000,
	}
	cold := []sector.Record{{ChangePct: -5}, {ChangePct: -6}, {ChangePct: -7}}

	got := Score(day, breadth, cold)
	assert.InDelta(t, 0.0, got.EmotionScore, 1e-9)
	assert.Equal(t, CycleFreezing, got.EmotionCycle)
}

func TestScore_SectorAdjustment(t *testing.T) {
	breadth := Breadth{TotalStocks: 100, UpCount: 50, DownCount: 50}

	mostlyUp := []sector.Record{{ChangePct: 1}, {ChangePct: 2}, {ChangePct: 3}, {ChangePct: -1}}
	got := Score(day, breadth, mostlyUp)
	assert.InDelta(t, 60.0, got.EmotionScore, 1e-9, "75%% up sectors adds 10")

	mostlyDown := []sector.Record{{ChangePct: -1}, {ChangePct: -2}, {ChangePct: -3}, {ChangePct: 1}}
	got = Score(day, breadth, mostlyDown)
	assert.InDelta(t, 40.0, got.EmotionScore, 1e-9, "25%% up sectors subtracts 10")
}

func TestScore_ZeroStocksKeepsBase(t *testing.T) {
	got := Score(day, Breadth{}, nil)
	assert.InDelta(t, 50.0, got.EmotionScore, 1e-9)
	assert.Equal(t, CycleChoppy, got.EmotionCycle)
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Cycle
	}{
		{75.0, CycleRising},
		{74.99, CycleActive},
		{60.0, CycleActive},
		{59.99, CycleChoppy},
		{40.0, CycleChoppy},
		{39.99, CycleReceding},
		{25.0, CycleReceding},
		{24.99, CycleFreezing},
		{0, CycleFreezing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.score), "score %v", tt.score)
	}
}

func TestDegraded(t *testing.T) {
	got := Degraded(day)
	assert.InDelta(t, 50.0, got.EmotionScore, 1e-9)
	assert.Equal(t, CycleUnknown, got.EmotionCycle)
	assert.Equal(t, "2025-01-06", got.Date)
}
