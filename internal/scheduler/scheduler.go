package scheduler

import (
	"autofeedr/internal/model"
	"context"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

var ErrorNoJobFound = errors.New("no job found")

// JobExecutor runs one job to completion. Pipeline failures are absorbed by
// the executor; a returned error means history could not be read or written.
type JobExecutor interface {
	Execute(ctx context.Context, job model.Job) error
}

type Scheduler struct {
	schedule model.Schedule
	location *time.Location
	executor JobExecutor
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
}

func New(schedule model.Schedule, location *time.Location, executor JobExecutor) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		location: location,
		executor: executor,
		now:      time.Now,
		wait:     sleep,
	}
}

// RunOnce executes job immediately, or the first job of the schedule when job is nil.
func (skd *Scheduler) RunOnce(ctx context.Context, job *model.Job) error {
	target := job
	if target == nil {
		first, err := FirstJob(skd.schedule)
		if err != nil {
			return err
		}
		target = &first
	}
	log.WithFields(log.Fields{
		"job": target.String(),
	}).Info("Running single job")
	return skd.executor.Execute(ctx, *target)
}

// Next reports the next scheduled job without running it.
func (skd *Scheduler) Next() (model.Job, time.Time, error) {
	return NextOccurrence(skd.schedule, skd.now(), skd.location)
}

// Start runs the schedule until ctx is cancelled. It only returns early when
// the schedule is unusable or the executor could not touch its state store.
func (skd *Scheduler) Start(ctx context.Context) error {
	log.Info("Starting scheduler loop")
	for {
		job, at, err := skd.Next()
		if err != nil {
			return errors.Wrap(err, "failed computing next job")
		}

		delay := at.Sub(skd.now())
		if delay < 0 {
			delay = 0
		}
		log.WithFields(log.Fields{
			"job":  job.String(),
			"at":   at.Format(time.RFC3339),
			"wait": delay.Round(time.Second).String(),
		}).Info("Waiting for next job")

		if err = skd.wait(ctx, delay); err != nil {
			log.Info("Scheduler loop stopped")
			return nil
		}
		if err = skd.executor.Execute(ctx, job); err != nil {
			return errors.Wrapf(err, "failed executing job %s", job)
		}
	}
}

// FirstJob returns the first entry of the first weekday, monday first, that has jobs.
func FirstJob(schedule model.Schedule) (model.Job, error) {
	for _, day := range model.Weekdays {
		if jobs := schedule[day]; len(jobs) > 0 {
			return jobs[0], nil
		}
	}
	return model.Job{}, errors.Wrap(ErrorNoJobFound, "schedule has no jobs")
}

// PickJob selects a job by weekday and optional HH:MM time. An empty day picks nothing.
func PickJob(schedule model.Schedule, day, at string) (*model.Job, error) {
	if strings.TrimSpace(day) == "" {
		return nil, nil
	}
	weekday, err := model.ParseWeekday(day)
	if err != nil {
		return nil, errors.Mark(err, ErrorNoJobFound)
	}
	jobs := schedule[weekday]
	if len(jobs) == 0 {
		return nil, errors.Wrapf(ErrorNoJobFound, "no job on %s", model.WeekdayName(weekday))
	}
	if strings.TrimSpace(at) == "" {
		return &jobs[0], nil
	}
	timeOfDay, err := model.ParseTimeOfDay(at)
	if err != nil {
		return nil, errors.Mark(err, ErrorNoJobFound)
	}
	for i := range jobs {
		if jobs[i].Time == timeOfDay {
			return &jobs[i], nil
		}
	}
	return nil, errors.Wrapf(ErrorNoJobFound, "no job on %s at %s", model.WeekdayName(weekday), timeOfDay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
