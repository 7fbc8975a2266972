package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadTime(t *testing.T) {
	for _, at := range []string{"", "25:00", "15:99", "half past"} {
		_, err := New(at, func(context.Context, string) {})
		assert.Error(t, err, at)
	}
}

func TestNextRun(t *testing.T) {
	s, err := New("15:30", func(context.Context, string) {})
	require.NoError(t, err)

	morning := time.Date(2026, 1, 6, 9, 0, 0, 0, time.Local)
	next := s.nextRun(morning)
	assert.Equal(t, time.Date(2026, 1, 6, 15, 30, 0, 0, time.Local), next)

	evening := time.Date(2026, 1, 6, 16, 0, 0, 0, time.Local)
	next = s.nextRun(evening)
	assert.Equal(t, time.Date(2026, 1, 7, 15, 30, 0, 0, time.Local), next)

	// Exactly at the trigger rolls to the next day.
	atTrigger := time.Date(2026, 1, 6, 15, 30, 0, 0, time.Local)
	next = s.nextRun(atTrigger)
	assert.Equal(t, time.Date(2026, 1, 7, 15, 30, 0, 0, time.Local), next)
}

func TestStart_FiresAtTrigger(t *testing.T) {
	// A clock pinned just before the trigger makes the first timer ~instant.
	base := time.Date(2026, 1, 6, 15, 29, 59, int(999 * time.Millisecond), time.Local)
	fired := make(chan string, 1)

	s, err := New("15:30", func(_ context.Context, date string) {
		select {
		case fired <- date:
		default:
		}
	}, WithClock(func() time.Time { return base }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	select {
	case date := <-fired:
		assert.Equal(t, "20260106", date)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire")
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	s, err := New("15:30", func(context.Context, string) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
