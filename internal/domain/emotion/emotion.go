// Package emotion derives the market-wide sentiment score from breadth
// statistics and sector performance.
package emotion

import (
	"math"
	"time"

	"github.com/hsliang/redboard/internal/domain/sector"
)

// Cycle labels the phase of the sentiment cycle implied by the score.
type Cycle string

const (
	CycleRising   Cycle = "rising"
	CycleActive   Cycle = "active"
	CycleChoppy   Cycle = "choppy"
	CycleReceding Cycle = "receding"
	CycleFreezing Cycle = "freezing"
	CycleUnknown  Cycle = "unknown"
)

// Breadth is the market-wide advance/decline snapshot the scorer consumes.
type Breadth struct {
	TotalStocks    int `json:"total_stocks"`
	UpCount        int `json:"up_count"`
	DownCount      int `json:"down_count"`
	FlatCount      int `json:"flat_count"`
	LimitUpCount   int `json:"limit_up_count"`
	LimitDownCount int `json:"limit_down_count"`
}

// MarketEmotion is the derived sentiment snapshot. It is recomputed per
// request and never persisted.
type MarketEmotion struct {
	Date           string  `json:"date"`
	TotalStocks    int     `json:"total_stocks"`
	UpCount        int     `json:"up_count"`
	DownCount      int     `json:"down_count"`
	FlatCount      int     `json:"flat_count"`
	LimitUpCount   int     `json:"limit_up_count"`
	LimitDownCount int     `json:"limit_down_count"`
	EmotionScore   float64 `json:"emotion_score"`
	EmotionCycle   Cycle   `json:"emotion_cycle"`
}

const (
	baseScore       = 50.0
	breadthWeight   = 40.0 // ±20 around the 50% midpoint
	limitWeight     = 30.0 // limit-up vs limit-down extremes
	sectorAdjust    = 10.0
	sectorHighWater = 0.6
	sectorLowWater  = 0.4
)

// Score combines market breadth and sector breadth into a 0-100 sentiment
// score with its cycle label, dated the given day.
func Score(date time.Time, breadth Breadth, sectors []sector.Record) MarketEmotion {
	score := baseScore

	if breadth.TotalStocks > 0 {
		total := float64(breadth.TotalStocks)
		score += (float64(breadth.UpCount)/total - 0.5) * breadthWeight
		score += (float64(breadth.LimitUpCount)/total - float64(breadth.LimitDownCount)/total) * limitWeight
	}

	if len(sectors) > 0 {
		upSectors := 0
		for _, s := range sectors {
			if s.ChangePct > 0 {
				upSectors++
			}
		}
		ratio := float64(upSectors) / float64(len(sectors))
		if ratio > sectorHighWater {
			score += sectorAdjust
		} else if ratio < sectorLowWater {
			score -= sectorAdjust
		}
	}

	score = math.Max(0, math.Min(100, score))
	score = math.Round(score*100) / 100

	return MarketEmotion{
		Date:           date.Format("2006-01-02"),
		TotalStocks:    breadth.TotalStocks,
		UpCount:        breadth.UpCount,
		DownCount:      breadth.DownCount,
		FlatCount:      breadth.FlatCount,
		LimitUpCount:   breadth.LimitUpCount,
		LimitDownCount: breadth.LimitDownCount,
		EmotionScore:   score,
		EmotionCycle:   classify(score),
	}
}

// Degraded is the fallback snapshot returned when the upstream data fetch
// fails: neutral score, unknown cycle.
func Degraded(date time.Time) MarketEmotion {
	return MarketEmotion{
		Date:         date.Format("2006-01-02"),
		EmotionScore: baseScore,
		EmotionCycle: CycleUnknown,
	}
}

func classify(score float64) Cycle {
	switch {
	case score >= 75:
		return CycleRising
	case score >= 60:
		return CycleActive
	case score >= 40:
		return CycleChoppy
	case score >= 25:
		return CycleReceding
	default:
		return CycleFreezing
	}
}
