// Package memory is an in-process ReviewStore used by tests and the
// no-database dev mode. Records round-trip through JSON so list handling
// matches the SQL store's serialized columns.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hsliang/redboard/internal/persistence"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]string // id -> serialized record
	byDate map[string]int64
	now    func() time.Time
}

// NewStore returns an empty in-memory review store.
func NewStore() *Store {
	return &Store{
		nextID: 1,
		byID:   make(map[int64]string),
		byDate: make(map[string]int64),
		now:    time.Now,
	}
}

// WithClock overrides timestamp generation (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Create(ctx context.Context, review *persistence.MarketReview) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDate[review.Date]; exists {
		return 0, persistence.ErrDuplicateDate
	}

	stored := *review
	stored.ID = s.nextID
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt

	raw, err := json.Marshal(&stored)
	if err != nil {
		return 0, err
	}

	s.byID[stored.ID] = string(raw)
	s.byDate[stored.Date] = stored.ID
	s.nextID++
	return stored.ID, nil
}

func (s *Store) GetByDate(ctx context.Context, date string) (*persistence.MarketReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byDate[date]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.decode(id)
}

func (s *Store) GetAll(ctx context.Context, limit, offset int) ([]persistence.MarketReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dates := make([]string, 0, len(s.byDate))
	for date := range s.byDate {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	if offset >= len(dates) {
		return []persistence.MarketReview{}, nil
	}
	dates = dates[offset:]
	if limit > 0 && limit < len(dates) {
		dates = dates[:limit]
	}

	out := make([]persistence.MarketReview, 0, len(dates))
	for _, date := range dates {
		rec, err := s.decode(s.byDate[date])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id int64, update persistence.ReviewUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.decode(id)
	if err != nil {
		return err
	}

	rec.HotSectors = update.HotSectors
	if rec.HotSectors == nil {
		rec.HotSectors = []string{}
	}
	rec.Notes = update.Notes
	rec.UpdatedAt = s.now()

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.byID[id] = string(raw)
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.decode(id)
	if err != nil {
		return err
	}
	delete(s.byID, id)
	delete(s.byDate, rec.Date)
	return nil
}

func (s *Store) decode(id int64) (*persistence.MarketReview, error) {
	raw, ok := s.byID[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	var rec persistence.MarketReview
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ persistence.ReviewStore = (*Store)(nil)
