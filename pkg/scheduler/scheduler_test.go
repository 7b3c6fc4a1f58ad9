package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler()
	require.NoError(t, err)

	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func TestAddCronAndRunNow(t *testing.T) {
	s := newScheduler(t)

	var runs atomic.Int32

	require.NoError(t, s.AddCron(context.Background(), "sweep", "0 0 1 1 *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	err := s.AddCron(context.Background(), "sweep", "0 0 1 1 *", func(context.Context) error { return nil })
	require.Error(t, err)

	require.NoError(t, s.RunNow("sweep"))

	require.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName("sweep")
		return err == nil && info.Runs == 1
	}, 2*time.Second, 10*time.Millisecond)

	info, err := s.GetJobInfoByName("sweep")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusScheduled, info.Status)
	assert.False(t, info.LastSuccess.IsZero())
	assert.Equal(t, int32(1), runs.Load())
}

func TestJobErrorRecorded(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.AddCron(context.Background(), "broken", "0 0 1 1 *", func(context.Context) error {
		return errors.New("disk gone")
	}))
	require.NoError(t, s.AddCron(context.Background(), "panics", "0 0 1 1 *", func(context.Context) error {
		panic("boom")
	}))

	require.NoError(t, s.RunNow("broken"))
	require.NoError(t, s.RunNow("panics"))

	require.Eventually(t, func() bool {
		infos := s.GetJobInfos()
		return len(infos) == 2 && infos[0].Status == scheduler.StatusError && infos[1].Status == scheduler.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	infos := s.GetJobInfos()
	assert.Equal(t, "broken", infos[0].Name)
	assert.Equal(t, "disk gone", infos[0].Error)
	assert.Contains(t, infos[1].Error, "boom")
}

func TestUnknownJob(t *testing.T) {
	s := newScheduler(t)

	assert.ErrorIs(t, s.RunNow("nope"), scheduler.ErrJobNotFound)
	assert.ErrorIs(t, s.RemoveJobByName("nope"), scheduler.ErrJobNotFound)

	_, err := s.GetJobInfoByName("nope")
	assert.ErrorIs(t, err, scheduler.ErrJobNotFound)
}

func TestRemoveJob(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.AddCron(context.Background(), "x", "*/5 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.RemoveJobByName("x"))
	assert.Empty(t, s.GetJobInfos())
}
