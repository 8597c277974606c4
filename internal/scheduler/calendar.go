package scheduler

import (
	"autofeedr/internal/model"
	"github.com/cockroachdb/errors"
	"time"
)

var ErrorInvalidSchedule = errors.New("invalid schedule")

// NextOccurrence returns the job whose weekday and time of day come first
// strictly after now, evaluated in location. Jobs due at the same instant are
// ordered by weekday (monday first) and then by their position in the day.
// Each job occurs exactly once per calendar week, even across DST changes.
func NextOccurrence(schedule model.Schedule, now time.Time, location *time.Location) (model.Job, time.Time, error) {
	reference := now.In(location)

	var (
		next   model.Job
		nextAt time.Time
		found  bool
	)
	for _, day := range model.Weekdays {
		for _, job := range schedule[day] {
			at := weeklyOccurrence(reference, day, job.Time, location)
			if !found || at.Before(nextAt) {
				next, nextAt, found = job, at, true
			}
		}
	}
	if !found {
		return model.Job{}, time.Time{}, errors.Wrap(ErrorInvalidSchedule, "schedule has no jobs")
	}
	return next, nextAt, nil
}

// weeklyOccurrence is the first day/at strictly after reference. An occurrence
// equal to reference moves to the following week.
func weeklyOccurrence(reference time.Time, day time.Weekday, at model.TimeOfDay, location *time.Location) time.Time {
	daysAhead := (int(day) - int(reference.Weekday()) + 7) % 7
	candidate := wallClock(reference.Year(), reference.Month(), reference.Day()+daysAhead, at, location)
	if !candidate.After(reference) {
		candidate = wallClock(reference.Year(), reference.Month(), reference.Day()+daysAhead+7, at, location)
	}
	return candidate
}

// wallClock resolves at on the given date. Ambiguous times (clocks turned
// back) take the first instant. Times inside a gap (clocks turned forward)
// keep the offset in effect before the gap, so they land after it.
func wallClock(year int, month time.Month, day int, at model.TimeOfDay, location *time.Location) time.Time {
	resolved := time.Date(year, month, day, at.Hour, at.Minute, 0, 0, location)
	if resolved.Hour() == at.Hour && resolved.Minute() == at.Minute {
		return resolved
	}
	// No zone changes offset twice within half a day.
	_, offsetBefore := resolved.Add(-12 * time.Hour).Zone()
	naive := time.Date(year, month, day, at.Hour, at.Minute, 0, 0, time.UTC)
	return naive.Add(-time.Duration(offsetBefore) * time.Second).In(location)
}
