// Package rotation scores sector heat and classifies momentum and the
// direction capital is rotating.
package rotation

import (
	"math"
	"sort"

	"github.com/hsliang/redboard/internal/domain/sector"
)

// Momentum buckets a sector's heat score.
type Momentum string

const (
	MomentumWeak   Momentum = "weak"
	MomentumMedium Momentum = "medium"
	MomentumStrong Momentum = "strong"
)

// Trend labels the inferred capital flow for a sector.
type Trend string

const (
	TrendIn     Trend = "in"
	TrendOut    Trend = "out"
	TrendStable Trend = "stable"
)

// SectorRotation is the per-sector analysis result.
type SectorRotation struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	HotScore      float64  `json:"hot_score"`
	Momentum      Momentum `json:"momentum"`
	RotationTrend Trend    `json:"rotation_trend"`
	ChangePct     float64  `json:"change_pct"`
	LimitUpCount  int      `json:"limit_up_count"`
}

// Heat score contribution caps.
const (
	changeCap  = 50.0 // change% * 10
	limitUpCap = 30.0 // limit-up count * 5
	breadthCap = 20.0 // up ratio * 20
)

// Momentum thresholds.
const (
	strongFloor = 70.0
	mediumFloor = 40.0
)

// Trend thresholds. Inflow requires both conditions; outflow only the drop.
// The asymmetry is deliberate and matches observed behavior.
const (
	inflowChangePct  = 3.0
	inflowLimitUps   = 5
	outflowChangePct = -3.0
)

// Analyze scores every sector and returns the results sorted descending by
// heat. The sort is stable: equal scores keep their input order.
func Analyze(sectors []sector.Record) []SectorRotation {
	out := make([]SectorRotation, 0, len(sectors))
	for _, s := range sectors {
		score := hotScore(s)
		out = append(out, SectorRotation{
			Code:          s.Code,
			Name:          s.Name,
			HotScore:      score,
			Momentum:      classifyMomentum(score),
			RotationTrend: classifyTrend(s),
			ChangePct:     s.ChangePct,
			LimitUpCount:  s.LimitUpCount,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].HotScore > out[j].HotScore })
	return out
}

func hotScore(s sector.Record) float64 {
	score := 0.0
	if s.ChangePct > 0 {
		score += math.Min(s.ChangePct*10, changeCap)
	}
	if s.LimitUpCount > 0 {
		score += math.Min(float64(s.LimitUpCount)*5, limitUpCap)
	}
	if s.UpCount > 0 && s.TotalStocks > 0 {
		score += float64(s.UpCount) / float64(s.TotalStocks) * breadthCap
	}
	return math.Round(score*100) / 100
}

func classifyMomentum(score float64) Momentum {
	switch {
	case score >= strongFloor:
		return MomentumStrong
	case score >= mediumFloor:
		return MomentumMedium
	default:
		return MomentumWeak
	}
}

func classifyTrend(s sector.Record) Trend {
	switch {
	case s.ChangePct > inflowChangePct && s.LimitUpCount > inflowLimitUps:
		return TrendIn
	case s.ChangePct < outflowChangePct:
		return TrendOut
	default:
		return TrendStable
	}
}
