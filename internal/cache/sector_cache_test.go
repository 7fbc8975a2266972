package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsliang/redboard/internal/metrics"
	"github.com/hsliang/redboard/internal/source"
)

var sampleRows = [][]string{
	{"BK0475", "银行", "2.35", "38", "4"},
	{"BK1036", "半导体", "-1.02", "12", "80"},
}

const sampleJSON = `[["BK0475","银行","2.35","38","4"],["BK1036","半导体","-1.02","12","80"]]`

func newCache(t *testing.T) (*SectorCache, redismock.ClientMock, *metrics.Registry) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	reg := metrics.NewRegistry()
	c := NewSectorCache(rdb, 5*time.Minute, reg, zerolog.Nop())
	return c, mock, reg
}

func TestSectorCache_GetHit(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectGet("redboard:sector:rows").SetVal(sampleJSON)

	rows, ok := c.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, sampleRows, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectorCache_GetMissOnNil(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectGet("redboard:sector:rows").RedisNil()

	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}

func TestSectorCache_GetMissOnGarbage(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectGet("redboard:sector:rows").SetVal("{not json")

	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}

func TestSectorCache_Set(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectSet("redboard:sector:rows", []byte(sampleJSON), 5*time.Minute).SetVal("OK")

	c.Set(context.Background(), sampleRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubRows struct {
	source.RowSource
	rows  [][]string
	calls int
}

func (s *stubRows) SectorRows(ctx context.Context) ([][]string, error) {
	s.calls++
	return s.rows, nil
}

func TestWrapSource_ServesFromCache(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectGet("redboard:sector:rows").SetVal(sampleJSON)

	stub := &stubRows{rows: [][]string{{"live"}}}
	src := WrapSource(stub, c)

	rows, err := src.SectorRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
	assert.Zero(t, stub.calls, "cache hit should not touch the live source")
}

func TestWrapSource_MissFallsThroughAndStores(t *testing.T) {
	c, mock, _ := newCache(t)
	mock.ExpectGet("redboard:sector:rows").RedisNil()
	mock.ExpectSet("redboard:sector:rows", []byte(`[["live"]]`), 5*time.Minute).SetVal("OK")

	stub := &stubRows{rows: [][]string{{"live"}}}
	src := WrapSource(stub, c)

	rows, err := src.SectorRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"live"}}, rows)
	assert.Equal(t, 1, stub.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapSource_NilCachePassthrough(t *testing.T) {
	stub := &stubRows{rows: [][]string{{"live"}}}
	assert.Same(t, source.RowSource(stub), WrapSource(stub, nil))
}
