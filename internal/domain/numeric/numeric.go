// Package numeric parses localized numeric text from Chinese market data
// feeds: percent signs, 万/亿 magnitude suffixes, thousand separators.
package numeric

import (
	"strconv"
	"strings"
)

const (
	unitWan = 1e4 // 万
	unitYi  = 1e8 // 亿
)

// ParseValue converts a raw cell into a float64. It never fails: empty,
// dash-only and unparsable input all map to 0. A trailing "%" is stripped
// without rescaling ("3.5%" is 3.5), 万 multiplies by 1e4, 亿 by 1e8.
func ParseValue(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case strings.Contains(s, "%"):
		return parseFloat(strings.ReplaceAll(s, "%", ""))
	case strings.Contains(s, "亿"):
		return parseFloat(strings.ReplaceAll(s, "亿", "")) * unitYi
	case strings.Contains(s, "万"):
		return parseFloat(strings.ReplaceAll(s, "万", "")) * unitWan
	default:
		return parseFloat(s)
	}
}

// ParseCount converts a raw cell into an integer count. Integer text is
// taken as-is; fractional text like "1277.75" is truncated through the
// float path. Anything unparsable is 0.
func ParseCount(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return int(ParseValue(s))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
