// Package sector turns raw sector table rows into structured records and
// provides the ranking views used by the review surfaces.
package sector

import (
	"math"
	"sort"

	"github.com/hsliang/redboard/internal/domain/numeric"
)

// Record is one industry/theme sector snapshot for a single scrape cycle.
type Record struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	ChangePct      float64 `json:"change_pct"`
	UpCount        int     `json:"up_count"`
	DownCount      int     `json:"down_count"`
	LimitUpCount   int     `json:"limit_up_count"`
	LimitDownCount int     `json:"limit_down_count"`
	TotalStocks    int     `json:"total_stocks"`
	TurnoverRate   float64 `json:"turnover_rate"`
	Volume         float64 `json:"volume"`
	Amount         float64 `json:"amount"`
}

// Raw column layout, matching the sector table scraped from the quote page:
// code, name, change%, up, down, limit-up, limit-down, turnover, volume,
// amount, total. Trailing columns are optional.
const (
	colCode = iota
	colName
	colChangePct
	colUpCount
	colDownCount
	colLimitUp
	colLimitDown
	colTurnover
	colVolume
	colAmount
	colTotal

	minColumns = 3
)

// FromRow builds a Record from ordered column cells. Rows narrower than the
// code/name/change% minimum are rejected with ok=false; optional columns
// default to zero. TotalStocks falls back to up+down when the table carries
// no usable total column.
func FromRow(cells []string) (Record, bool) {
	if len(cells) < minColumns {
		return Record{}, false
	}

	rec := Record{
		Code:      cells[colCode],
		Name:      cells[colName],
		ChangePct: numeric.ParseValue(cells[colChangePct]),
	}
	rec.UpCount = countAt(cells, colUpCount)
	rec.DownCount = countAt(cells, colDownCount)
	rec.LimitUpCount = countAt(cells, colLimitUp)
	rec.LimitDownCount = countAt(cells, colLimitDown)
	rec.TurnoverRate = valueAt(cells, colTurnover)
	rec.Volume = valueAt(cells, colVolume)
	rec.Amount = valueAt(cells, colAmount)

	rec.TotalStocks = rec.UpCount + rec.DownCount
	if total := countAt(cells, colTotal); total > 0 {
		rec.TotalStocks = total
	}
	return rec, true
}

// FromRows aggregates a whole table, skipping unusable rows.
func FromRows(rows [][]string) []Record {
	records := make([]Record, 0, len(rows))
	for _, cells := range rows {
		if rec, ok := FromRow(cells); ok {
			records = append(records, rec)
		}
	}
	return records
}

func countAt(cells []string, idx int) int {
	if idx >= len(cells) {
		return 0
	}
	return numeric.ParseCount(cells[idx])
}

func valueAt(cells []string, idx int) float64 {
	if idx >= len(cells) {
		return 0
	}
	return numeric.ParseValue(cells[idx])
}

// OrderBy names a ranking criterion for sector lists.
type OrderBy string

const (
	OrderByChangePct OrderBy = "change_pct"
	OrderByLimitUp   OrderBy = "limit_up_count"
	OrderByVolume    OrderBy = "volume"
)

// Rank returns the top sectors sorted descending by the given criterion.
// The input slice is not modified; unknown criteria rank by change%.
func Rank(records []Record, by OrderBy, limit int) []Record {
	ranked := make([]Record, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		switch by {
		case OrderByLimitUp:
			return ranked[i].LimitUpCount > ranked[j].LimitUpCount
		case OrderByVolume:
			return ranked[i].Volume > ranked[j].Volume
		default:
			return ranked[i].ChangePct > ranked[j].ChangePct
		}
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// TableRow is the per-sector review table projection with the derived
// breadth ratios the review page displays.
type TableRow struct {
	SectorCode   string  `json:"sector_code"`
	SectorName   string  `json:"sector_name"`
	ChangePct    float64 `json:"change_pct"`
	TotalStocks  int     `json:"total_stocks"`
	UpCount      int     `json:"up_count"`
	DownCount    int     `json:"down_count"`
	LimitUpCount int     `json:"limit_up_count"`
	UpRatio      float64 `json:"up_ratio"`
	LimitUpRatio float64 `json:"limit_up_ratio"`
}

// ReviewTable projects records into display rows sorted descending by
// change%. Ratios are percentages rounded to two decimals, zero when the
// sector reports no stocks.
func ReviewTable(records []Record) []TableRow {
	rows := make([]TableRow, 0, len(records))
	for _, rec := range records {
		row := TableRow{
			SectorCode:   rec.Code,
			SectorName:   rec.Name,
			ChangePct:    round2(rec.ChangePct),
			TotalStocks:  rec.TotalStocks,
			UpCount:      rec.UpCount,
			DownCount:    rec.DownCount,
			LimitUpCount: rec.LimitUpCount,
		}
		if rec.TotalStocks > 0 {
			row.UpRatio = round2(float64(rec.UpCount) / float64(rec.TotalStocks) * 100)
			row.LimitUpRatio = round2(float64(rec.LimitUpCount) / float64(rec.TotalStocks) * 100)
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ChangePct > rows[j].ChangePct })
	return rows
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
