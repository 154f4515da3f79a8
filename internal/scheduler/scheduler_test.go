package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() zerolog.Logger { return zerolog.New(io.Discard) }

func TestAddValidates(t *testing.T) {
	s := New(quiet())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "a", Schedule: "@hourly", Run: noop}))
	assert.ErrorContains(t, s.Add(Job{Name: "a", Schedule: "@hourly", Run: noop}), "already registered")
	assert.ErrorContains(t, s.Add(Job{Name: "b", Schedule: "every tuesday", Run: noop}), "invalid schedule")
	assert.Error(t, s.Add(Job{Name: "", Schedule: "@daily", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "c", Schedule: "@daily"}))
}

func TestRunNowRecordsStatus(t *testing.T) {
	s := New(quiet())
	var calls int32
	fail := true
	require.NoError(t, s.Add(Job{Name: "flaky", Schedule: "0 3 * * *", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		if fail {
			return errors.New("db locked")
		}
		return nil
	}}))

	assert.Error(t, s.RunNow("flaky"))
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "db locked", jobs[0].LastError)
	assert.Equal(t, 1, jobs[0].Runs)
	assert.False(t, jobs[0].LastRun.IsZero())

	fail = false
	require.NoError(t, s.RunNow("flaky"))
	jobs = s.Jobs()
	assert.Empty(t, jobs[0].LastError)
	assert.Equal(t, 2, jobs[0].Runs)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.ErrorIs(t, s.RunNow("missing"), ErrUnknownJob)
}

func TestScheduledRun(t *testing.T) {
	s := New(quiet())
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add(Job{Name: "tick", Schedule: "@every 1s", Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	assert.False(t, s.Jobs()[0].Next.IsZero())
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run on schedule")
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := New(quiet())
	started := make(chan struct{})
	var once sync.Once
	require.NoError(t, s.Add(Job{Name: "long", Schedule: "@every 1s", Run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestPruneQueryLogJob(t *testing.T) {
	p := &fakePruner{n: 12}
	job := PruneQueryLog("0 3 * * *", 7*24*time.Hour, p, quiet())
	assert.Equal(t, JobPruneQueryLog, job.Name)

	require.NoError(t, job.Run(context.Background()))
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), p.cutoff, time.Minute)

	p.err = errors.New("locked")
	assert.Error(t, job.Run(context.Background()))
}
