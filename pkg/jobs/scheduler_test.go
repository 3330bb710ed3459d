package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/jobs"
)

func TestSchedulerAdd(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 4, 10, 15, 0, 0, time.UTC)
	s := jobs.NewScheduler(jobs.WithClock(func() time.Time { return now }))
	noop := func(context.Context, time.Time) error { return nil }

	require.NoError(t, s.Add("notify", jobs.DailyAt(9, 0), noop))
	require.NoError(t, s.Add("enforce", jobs.HourlyAt(30), noop))
	assert.ErrorIs(t, s.Add("notify", jobs.DailyAt(9, 0), noop), jobs.ErrJobAlreadyRegistered)
	assert.ErrorIs(t, s.Add("", jobs.DailyAt(9, 0), noop), jobs.ErrInvalidJob)
	assert.ErrorIs(t, s.Add("nil", nil, noop), jobs.ErrInvalidJob)

	assert.Equal(t, []string{"enforce", "notify"}, s.List())

	next, ok := s.NextRun("enforce")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 4, 10, 30, 0, 0, time.UTC), next)

	s.Remove("enforce")
	_, ok = s.NextRun("enforce")
	assert.False(t, ok)
}

func TestSchedulerStartWithoutJobs(t *testing.T) {
	t.Parallel()

	err := jobs.NewScheduler().Start(context.Background())
	assert.ErrorIs(t, err, jobs.ErrNoJobs)
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := jobs.NewScheduler(jobs.WithCheckInterval(5 * time.Millisecond))
	require.NoError(t, s.Add("tick", jobs.EveryInterval(time.Millisecond), func(context.Context, time.Time) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	var (
		active  atomic.Int32
		overlap atomic.Bool
		runs    atomic.Int32
	)
	s := jobs.NewScheduler(jobs.WithCheckInterval(2 * time.Millisecond))
	require.NoError(t, s.Add("slow", jobs.EveryInterval(time.Millisecond), func(context.Context, time.Time) error {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.False(t, overlap.Load())
}

func TestSchedulerRunNow(t *testing.T) {
	t.Parallel()

	s := jobs.NewScheduler()
	boom := errors.New("boom")

	require.NoError(t, s.Add("fails", jobs.DailyAt(3, 0), func(context.Context, time.Time) error { return boom }))
	require.NoError(t, s.Add("panics", jobs.DailyAt(3, 0), func(context.Context, time.Time) error { panic("bad tenant") }))

	assert.ErrorIs(t, s.RunNow(context.Background(), "fails"), boom)

	err := s.RunNow(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad tenant")

	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), jobs.ErrJobNotFound)
}
