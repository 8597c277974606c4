package model

import (
	"encoding/json"
	"fmt"
	"github.com/cockroachdb/errors"
	"strconv"
	"strings"
	"time"
)

// Weekdays lists the days in canonical order, monday first. Every scan over a
// Schedule that has to be deterministic walks this slice.
var Weekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

func ParseWeekday(name string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, day := range Weekdays {
		if WeekdayName(day) == normalized {
			return day, nil
		}
	}
	return 0, errors.Newf("unknown weekday %q", name)
}

func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// TimeOfDay is a wall clock time on a 24 hour clock, minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, errors.Newf("time %q must be HH:MM", value)
	}
	hour, err := parseClockField(parts[0])
	if err != nil {
		return TimeOfDay{}, errors.Newf("time %q must be HH:MM", value)
	}
	minute, err := parseClockField(parts[1])
	if err != nil {
		return TimeOfDay{}, errors.Newf("time %q must be HH:MM", value)
	}
	if hour > 23 || minute > 59 {
		return TimeOfDay{}, errors.Newf("time %q is not a valid 24-hour clock value", value)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func parseClockField(field string) (int, error) {
	if len(field) == 0 || len(field) > 2 {
		return 0, errors.New("bad clock field")
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, errors.New("bad clock field")
		}
	}
	return strconv.Atoi(field)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RatingRange is an inclusive rating interval, encoded as a two element array.
type RatingRange struct {
	Min int
	Max int
}

func (r RatingRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Min, r.Max})
}

func (r *RatingRange) UnmarshalJSON(data []byte) error {
	var bounds []int
	if err := json.Unmarshal(data, &bounds); err != nil {
		return errors.Wrap(err, "failed decoding rating range")
	}
	if len(bounds) != 2 {
		return errors.Newf("rating range must have exactly two bounds, got %d", len(bounds))
	}
	r.Min, r.Max = bounds[0], bounds[1]
	return nil
}

// Job is one scheduled configuration. It is immutable once the schedule is built.
type Job struct {
	Time                  TimeOfDay    `json:"time"`
	Difficulty            string       `json:"difficulty,omitempty"`
	RatingRange           *RatingRange `json:"rating_range,omitempty"`
	Tags                  []string     `json:"tags,omitempty"`
	Language              string       `json:"language"`
	CommitMessageTemplate string       `json:"commit_message_template,omitempty"`
}

func (j Job) Filter() ProblemFilter {
	return ProblemFilter{
		Difficulty:  j.Difficulty,
		RatingRange: j.RatingRange,
		Tags:        j.Tags,
	}
}

func (j Job) String() string {
	level := j.Difficulty
	if j.RatingRange != nil {
		level = fmt.Sprintf("rating %d-%d", j.RatingRange.Min, j.RatingRange.Max)
	}
	return fmt.Sprintf("%s %s %s", j.Time, level, j.Language)
}

// Schedule maps a weekday to the ordered jobs of that day.
type Schedule map[time.Weekday][]Job

// JobCount reports how many jobs the schedule holds across all days.
func (s Schedule) JobCount() int {
	count := 0
	for _, jobs := range s {
		count += len(jobs)
	}
	return count
}
