package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsliang/redboard/internal/domain/sector"
)

func TestAnalyze_HotSector(t *testing.T) {
	sectors := []sector.Record{{
		Code:         "881101",
		Name:         "半导体",
		ChangePct:    5,
		LimitUpCount: 10,
		UpCount:      80,
		TotalStocks:  100,
	}}

	got := Analyze(sectors)
	require.Len(t, got, 1)

	// min(50,50) + min(50,30) + 0.8*20 = 96
	assert.InDelta(t, 96.0, got[0].HotScore, 1e-9)
	assert.Equal(t, MomentumStrong, got[0].Momentum)
	assert.Equal(t, TrendIn, got[0].RotationTrend)
}

func TestAnalyze_NegativeChangeContributesNothing(t *testing.T) {
	got := Analyze([]sector.Record{{ChangePct: -8, UpCount: 2, TotalStocks: 100}})
	require.Len(t, got, 1)

	assert.InDelta(t, 0.4, got[0].HotScore, 1e-9)
	assert.Equal(t, MomentumWeak, got[0].Momentum)
	assert.Equal(t, TrendOut, got[0].RotationTrend)
}

func TestAnalyze_ZeroTotalStocksGuardsDivision(t *testing.T) {
	got := Analyze([]sector.Record{{ChangePct: 1, UpCount: 5, TotalStocks: 0}})
	require.Len(t, got, 1)
	assert.InDelta(t, 10.0, got[0].HotScore, 1e-9)
}

func TestAnalyze_InflowRequiresBothConditions(t *testing.T) {
	tests := []struct {
		name      string
		changePct float64
		limitUps  int
		want      Trend
	}{
		{"strong change alone is stable", 4.0, 5, TrendStable},
		{"limit-ups alone is stable", 2.0, 9, TrendStable},
		{"both conditions flow in", 3.5, 6, TrendIn},
		{"boundary change stays stable", 3.0, 6, TrendStable},
		{"mild drop is stable", -3.0, 0, TrendStable},
		{"hard drop flows out", -3.5, 0, TrendOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze([]sector.Record{{ChangePct: tt.changePct, LimitUpCount: tt.limitUps}})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].RotationTrend)
		})
	}
}

func TestAnalyze_SortsByHeatStable(t *testing.T) {
	sectors := []sector.Record{
		{Code: "cool", ChangePct: 0.5},
		{Code: "hot", ChangePct: 6, LimitUpCount: 8, UpCount: 90, TotalStocks: 100},
		{Code: "tied-a", ChangePct: 2},
		{Code: "tied-b", ChangePct: 2},
	}

	got := Analyze(sectors)
	require.Len(t, got, 4)

	assert.Equal(t, "hot", got[0].Code)
	assert.Equal(t, "tied-a", got[1].Code, "ties keep input order")
	assert.Equal(t, "tied-b", got[2].Code)
	assert.Equal(t, "cool", got[3].Code)
}

func TestAnalyze_MomentumLadder(t *testing.T) {
	// change 7 -> 50 capped? 7*10=70 -> capped at 50. Use limit-ups to shape scores.
	medium := Analyze([]sector.Record{{ChangePct: 4.0}})[0] // 40
	assert.Equal(t, MomentumMedium, medium.Momentum)

	strong := Analyze([]sector.Record{{ChangePct: 4.0, LimitUpCount: 6}})[0] // 40+30=70
	assert.Equal(t, MomentumStrong, strong.Momentum)

	weak := Analyze([]sector.Record{{ChangePct: 3.9}})[0] // 39
	assert.Equal(t, MomentumWeak, weak.Momentum)
}
