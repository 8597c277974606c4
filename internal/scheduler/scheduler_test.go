package scheduler

import (
	"autofeedr/internal/model"
	"context"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type recordingExecutor struct {
	jobs    []model.Job
	onRun   func(n int)
	failure error
}

func (e *recordingExecutor) Execute(ctx context.Context, job model.Job) error {
	e.jobs = append(e.jobs, job)
	if e.onRun != nil {
		e.onRun(len(e.jobs))
	}
	return e.failure
}

type fakeClock struct {
	current time.Time
	waits   []time.Duration
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.waits = append(c.waits, d)
	c.current = c.current.Add(d)
	return nil
}

func TestRunOnce(t *testing.T) {
	background := context.Background()

	t.Run("first job in weekday order", func(t *testing.T) {
		executor := &recordingExecutor{}
		schedule := model.Schedule{
			time.Sunday:  {job(10, 0, "hard")},
			time.Tuesday: {job(8, 0, "medium"), job(9, 0, "easy")},
		}
		require.NoError(t, New(schedule, time.UTC, executor).RunOnce(background, nil))
		require.Len(t, executor.jobs, 1)
		assert.Equal(t, "medium", executor.jobs[0].Difficulty)
	})

	t.Run("explicit job", func(t *testing.T) {
		executor := &recordingExecutor{}
		explicit := job(23, 0, "hard")
		schedule := model.Schedule{time.Monday: {job(9, 0, "easy")}}
		require.NoError(t, New(schedule, time.UTC, executor).RunOnce(background, &explicit))
		assert.Equal(t, []model.Job{explicit}, executor.jobs)
	})

	t.Run("empty schedule", func(t *testing.T) {
		executor := &recordingExecutor{}
		err := New(model.Schedule{time.Monday: nil}, time.UTC, executor).RunOnce(background, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrorNoJobFound))
		assert.Empty(t, executor.jobs)
	})
}

func TestPickJob(t *testing.T) {
	schedule := model.Schedule{
		time.Wednesday: {job(8, 0, "easy"), job(20, 30, "hard")},
	}

	picked, err := PickJob(schedule, "", "")
	require.NoError(t, err)
	assert.Nil(t, picked)

	picked, err = PickJob(schedule, "Wednesday", "")
	require.NoError(t, err)
	assert.Equal(t, "easy", picked.Difficulty)

	picked, err = PickJob(schedule, "wednesday", "20:30")
	require.NoError(t, err)
	assert.Equal(t, "hard", picked.Difficulty)

	for _, c := range [][2]string{{"thursday", ""}, {"wednesday", "21:00"}, {"someday", ""}, {"wednesday", "25:00"}} {
		_, err = PickJob(schedule, c[0], c[1])
		assert.True(t, errors.Is(err, ErrorNoJobFound), "%v", c)
	}
}

func TestStart(t *testing.T) {
	t.Run("runs jobs in calendar order until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		clock := &fakeClock{current: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
		executor := &recordingExecutor{onRun: func(n int) {
			if n == 3 {
				cancel()
			}
		}}
		schedule := model.Schedule{
			time.Monday:  {job(9, 0, "easy")},
			time.Tuesday: {job(9, 0, "medium")},
		}
		skd := New(schedule, time.UTC, executor)
		skd.now = clock.now
		skd.wait = clock.wait

		require.NoError(t, skd.Start(ctx))
		require.Len(t, executor.jobs, 3)
		assert.Equal(t, "easy", executor.jobs[0].Difficulty)
		assert.Equal(t, "medium", executor.jobs[1].Difficulty)
		assert.Equal(t, "easy", executor.jobs[2].Difficulty)
		assert.Equal(t, []time.Duration{time.Hour, 24 * time.Hour, 6 * 24 * time.Hour}, clock.waits)
	})

	t.Run("past instants do not sleep negative", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		clock := &fakeClock{current: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
		executor := &recordingExecutor{onRun: func(int) { cancel() }}
		skd := New(model.Schedule{time.Monday: {job(9, 0, "easy")}}, time.UTC, executor)
		calls := 0
		skd.now = func() time.Time {
			calls++
			if calls == 1 {
				return clock.current
			}
			// The clock jumped past the target between resolving and sleeping.
			return clock.current.Add(2 * time.Hour)
		}
		skd.wait = clock.wait

		require.NoError(t, skd.Start(ctx))
		assert.Equal(t, []time.Duration{0}, clock.waits)
	})

	t.Run("storage failure stops the loop", func(t *testing.T) {
		clock := &fakeClock{current: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
		executor := &recordingExecutor{failure: model.ErrorStorage}
		skd := New(model.Schedule{time.Monday: {job(9, 0, "easy")}}, time.UTC, executor)
		skd.now = clock.now
		skd.wait = clock.wait

		err := skd.Start(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrorStorage))
	})

	t.Run("invalid schedule stops the loop", func(t *testing.T) {
		skd := New(model.Schedule{}, time.UTC, &recordingExecutor{})
		err := skd.Start(context.Background())
		assert.True(t, errors.Is(err, ErrorInvalidSchedule))
	})
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleep(ctx, time.Hour))
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
