// Package eastmoney implements the market row source against the public
// quote aggregator endpoints. All calls are paced by a shared rate limiter
// and guarded by a circuit breaker so a flapping upstream degrades fast
// instead of stalling the review pipeline.
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/hsliang/redboard/internal/source"
)

// Pool entry fields: c code, n name, lbc consecutive boards, zbc burst count.
// Quote list fields: f12 code, f3 change%, f5 volume, f6 amount.
// Board list adds: f14 name, f8 turnover%, f104 up count, f105 down count.
const (
	snapshotFields = "f3,f5,f6,f12"
	boardFields    = "f3,f5,f6,f8,f12,f14,f104,f105"

	snapshotMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
	boardMarkets    = "m:90+t:2"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://quote.eastmoney.com/"

	defaultHTTPTimeout = 10 * time.Second
	defaultRate        = rate.Limit(4)
	defaultBurst       = 2
)

// Client fetches review inputs from the aggregator. It implements
// source.RowSource.
type Client struct {
	eps     Endpoints
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit overrides the request pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client against the given endpoints.
func NewClient(eps Endpoints, opts ...Option) *Client {
	if eps.PageSize <= 0 {
		eps.PageSize = DefaultEndpoints().PageSize
	}
	c := &Client{
		eps:     eps,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	settings := gobreaker.Settings{
		Name:     "eastmoney",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(settings)
	return c
}

// get performs one paced, breaker-guarded request and returns the body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", referer)
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("aggregator request failed")
		return nil, fmt.Errorf("eastmoney get: %w: %w", err, source.ErrUnavailable)
	}
	return body.([]byte), nil
}

// LimitUpPool returns the stocks that closed at their limit-up cap.
func (c *Client) LimitUpPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return c.pool(ctx, c.eps.LimitUpPoolURL, date)
}

// LimitDownPool returns the stocks that closed at their limit-down cap.
func (c *Client) LimitDownPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return c.pool(ctx, c.eps.LimitDownPoolURL, date)
}

// BurstPool returns the stocks that touched limit-up intraday but lost it.
func (c *Client) BurstPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	return c.pool(ctx, c.eps.BurstPoolURL, date)
}

// ConsecutiveBoardPool returns the limit-up pool entries on a streak of two
// or more boards. The aggregator has no dedicated endpoint for streaks, so
// this filters the limit-up pool by its board counter.
func (c *Client) ConsecutiveBoardPool(ctx context.Context, date string) ([]source.PoolRow, error) {
	rows, err := c.LimitUpPool(ctx, date)
	if err != nil {
		return nil, err
	}
	streaks := make([]source.PoolRow, 0, len(rows))
	for _, row := range rows {
		if row.BoardCount >= 2 {
			streaks = append(streaks, row)
		}
	}
	return streaks, nil
}

func (c *Client) pool(ctx context.Context, baseURL, date string) ([]source.PoolRow, error) {
	url := fmt.Sprintf("%s?dpt=wz.ztzt&Pageindex=0&pagesize=%d&sort=fbt:asc&date=%s",
		baseURL, c.eps.PageSize, date)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	pool := gjson.GetBytes(body, "data.pool")
	if !pool.Exists() {
		// The aggregator reports data:null for non-trading dates.
		return nil, nil
	}

	rows := make([]source.PoolRow, 0, int(pool.Get("#").Int()))
	pool.ForEach(func(_, v gjson.Result) bool {
		code := v.Get("c").String()
		if code == "" {
			return true
		}
		rows = append(rows, source.PoolRow{
			Code:       code,
			Name:       v.Get("n").String(),
			BoardCount: int(v.Get("lbc").Int()),
			BurstCount: int(v.Get("zbc").Int()),
		})
		return true
	})
	return rows, nil
}

// FullMarketSnapshot returns the live quote table for the whole market,
// paging through the list endpoint until the reported total is reached.
func (c *Client) FullMarketSnapshot(ctx context.Context) ([]source.SnapshotRow, error) {
	var all []source.SnapshotRow
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&fs=%s&fields=%s",
			c.eps.SnapshotURL, page, c.eps.PageSize, snapshotMarkets, snapshotFields)
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}

		total := int(gjson.GetBytes(body, "data.total").Int())
		count := 0
		gjson.GetBytes(body, "data.diff").ForEach(func(_, v gjson.Result) bool {
			code := v.Get("f12").String()
			if code == "" {
				return true
			}
			all = append(all, source.SnapshotRow{
				Code:           code,
				ChangePct:      v.Get("f3").Float(),
				Volume:         v.Get("f5").Float(),
				TurnoverAmount: v.Get("f6").Float(),
			})
			count++
			return true
		})

		if count == 0 || len(all) >= total || count < c.eps.PageSize {
			break
		}
	}
	c.log.Debug().Int("rows", len(all)).Msg("market snapshot fetched")
	return all, nil
}

// SectorRows returns the industry board list as ordered column cells in the
// review table layout: code, name, change%, up, down, limit-up, limit-down,
// turnover, volume, amount. The board endpoint carries no limit counts, so
// those cells are left empty.
func (c *Client) SectorRows(ctx context.Context) ([][]string, error) {
	var rows [][]string
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?pn=%d&pz=%d&fs=%s&fields=%s",
			c.eps.BoardListURL, page, c.eps.PageSize, boardMarkets, boardFields)
		body, err := c.get(ctx, url)
		if err != nil {
			return nil, err
		}

		total := int(gjson.GetBytes(body, "data.total").Int())
		count := 0
		gjson.GetBytes(body, "data.diff").ForEach(func(_, v gjson.Result) bool {
			code := v.Get("f12").String()
			if code == "" {
				return true
			}
			rows = append(rows, []string{
				code,
				v.Get("f14").String(),
				formatFloat(v.Get("f3").Float()),
				strconv.FormatInt(v.Get("f104").Int(), 10),
				strconv.FormatInt(v.Get("f105").Int(), 10),
				"",
				"",
				formatFloat(v.Get("f8").Float()),
				formatFloat(v.Get("f5").Float()),
				formatFloat(v.Get("f6").Float()),
			})
			count++
			return true
		})

		if count == 0 || len(rows) >= total || count < c.eps.PageSize {
			break
		}
	}
	return rows, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ source.RowSource = (*Client)(nil)
