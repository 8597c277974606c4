// Package config loads the settings file and turns it into the runtime model.
package config

import (
	"autofeedr/internal/executor"
	"autofeedr/internal/model"
	"autofeedr/internal/provider/codeforces"
	"autofeedr/internal/publisher"
	"autofeedr/internal/validation"
	"autofeedr/internal/verify"
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultPath                 = "settings.json"
	DefaultTimezone             = "America/Sao_Paulo"
	DefaultMaxRetries           = 2
	DefaultBackoffSeconds       = 10
	DefaultLanguage             = "python"
	DefaultVerifyTimeoutSeconds = 600
	DefaultTimeoutSeconds       = 30
	DefaultRequestInterval      = 2
)

var ErrorSettings = errors.New("invalid settings")

type JobSettings struct {
	Time                  string   `json:"time" validate:"required,hhmm"`
	Difficulty            string   `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	RatingRange           []int    `json:"rating_range,omitempty" validate:"omitempty,len=2,dive,gte=0"`
	Tags                  []string `json:"tags,omitempty" validate:"dive,required"`
	Language              string   `json:"language,omitempty"`
	CommitMessageTemplate string   `json:"commit_message_template,omitempty" validate:"omitempty,commit_template"`
}

type StateSettings struct {
	Driver string `json:"driver,omitempty" validate:"oneof=file sqlite postgres"`
	Path   string `json:"path,omitempty"`
	DSN    string `json:"dsn,omitempty" validate:"required_if=Driver postgres"`
}

type CodeforcesSettings struct {
	BaseURL                string `json:"base_url,omitempty" validate:"url"`
	TimeoutSeconds         int    `json:"timeout_seconds,omitempty" validate:"gt=0"`
	RequestIntervalSeconds *int   `json:"request_interval_seconds,omitempty" validate:"omitempty,gte=0"`
}

type Settings struct {
	RepoPath             string                   `json:"repo_path" validate:"required"`
	GitRemote            string                   `json:"git_remote,omitempty"`
	GitBranch            string                   `json:"git_branch,omitempty" validate:"required"`
	GitAuthorName        string                   `json:"git_author_name,omitempty" validate:"required"`
	GitAuthorEmail       string                   `json:"git_author_email,omitempty" validate:"required"`
	Timezone             string                   `json:"timezone,omitempty" validate:"required,timezone"`
	MaxRetries           *int                     `json:"max_retries,omitempty" validate:"omitempty,gte=0"`
	BackoffSeconds       *int                     `json:"backoff_seconds,omitempty" validate:"omitempty,gte=0"`
	VerifyCommand        *string                  `json:"verify_command,omitempty"`
	VerifyTimeoutSeconds *int                     `json:"verify_timeout_seconds,omitempty" validate:"omitempty,gte=0"`
	State                StateSettings            `json:"state"`
	Codeforces           CodeforcesSettings       `json:"codeforces"`
	Schedule             map[string][]JobSettings `json:"schedule" validate:"required,dive,keys,weekday,endkeys,dive"`
}

// Load reads path, applies defaults and validates the result. The format
// follows the extension: .yaml/.yml, .toml, anything else is JSON. Unknown
// fields are rejected for every format.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading settings %s", path)
	}
	settings, err := Parse(path, data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed loading settings %s", path)
	}
	return settings, nil
}

func Parse(path string, data []byte) (*Settings, error) {
	jsonBytes, err := coerceToJSON(path, data)
	if err != nil {
		return nil, errors.Mark(err, ErrorSettings)
	}
	decoder := json.NewDecoder(bytes.NewReader(jsonBytes))
	decoder.DisallowUnknownFields()
	settings := &Settings{}
	if err = decoder.Decode(settings); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed decoding settings"), ErrorSettings)
	}
	settings.applyDefaults()
	if err = settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func coerceToJSON(path string, data []byte) ([]byte, error) {
	var document any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, errors.Wrap(err, "failed parsing yaml")
		}
		document = normalizeYAML(document)
	case ".toml":
		if err := toml.Unmarshal(data, &document); err != nil {
			return nil, errors.Wrap(err, "failed parsing toml")
		}
	default:
		return data, nil
	}
	jsonBytes, err := json.Marshal(document)
	if err != nil {
		return nil, errors.Wrap(err, "failed converting settings to json")
	}
	return jsonBytes, nil
}

// normalizeYAML turns every map key into a string so the tree marshals as JSON.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

func (s *Settings) applyDefaults() {
	s.GitBranch = valueOr(s.GitBranch, publisher.DefaultBranch)
	s.GitAuthorName = valueOr(s.GitAuthorName, publisher.DefaultAuthorName)
	s.GitAuthorEmail = valueOr(s.GitAuthorEmail, publisher.DefaultAuthorEmail)
	s.Timezone = valueOr(s.Timezone, DefaultTimezone)
	if s.MaxRetries == nil {
		s.MaxRetries = intPointer(DefaultMaxRetries)
	}
	if s.BackoffSeconds == nil {
		s.BackoffSeconds = intPointer(DefaultBackoffSeconds)
	}
	if s.VerifyCommand == nil {
		command := verify.DefaultCommand
		s.VerifyCommand = &command
	}
	if s.VerifyTimeoutSeconds == nil {
		s.VerifyTimeoutSeconds = intPointer(DefaultVerifyTimeoutSeconds)
	}

	s.State.Driver = strings.ToLower(valueOr(s.State.Driver, model.DriverFile))
	if s.State.Path == "" && s.RepoPath != "" {
		switch s.State.Driver {
		case model.DriverFile:
			s.State.Path = filepath.Join(s.RepoPath, "state", "state.json")
		case model.DriverSQLite:
			s.State.Path = filepath.Join(s.RepoPath, "state", "state.db")
		}
	}

	s.Codeforces.BaseURL = valueOr(s.Codeforces.BaseURL, codeforces.DefaultBaseURL)
	if s.Codeforces.TimeoutSeconds == 0 {
		s.Codeforces.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if s.Codeforces.RequestIntervalSeconds == nil {
		s.Codeforces.RequestIntervalSeconds = intPointer(DefaultRequestInterval)
	}

	for day, jobs := range s.Schedule {
		for i := range jobs {
			jobs[i].Language = valueOr(jobs[i].Language, DefaultLanguage)
			jobs[i].Difficulty = strings.ToLower(jobs[i].Difficulty)
		}
		s.Schedule[day] = jobs
	}
}

// Validate checks field constraints plus the rules spanning several fields.
func (s *Settings) Validate() error {
	validate, err := validation.NewValidator()
	if err != nil {
		return err
	}
	validate.RegisterStructValidation(jobStructLevel, JobSettings{})
	if err = validate.Struct(s); err != nil {
		return errors.Mark(errors.Newf("settings: %s", validation.Describe(err)), ErrorSettings)
	}

	seen := make(map[time.Weekday]string, len(s.Schedule))
	total := 0
	for name, jobs := range s.Schedule {
		day, _ := model.ParseWeekday(name)
		if other, ok := seen[day]; ok {
			return errors.Mark(errors.Newf("settings: schedule lists %s twice (%q and %q)", model.WeekdayName(day), other, name), ErrorSettings)
		}
		seen[day] = name
		total += len(jobs)
	}
	if total == 0 {
		return errors.Mark(errors.New("settings: schedule must contain at least one job"), ErrorSettings)
	}
	return nil
}

func jobStructLevel(sl validator.StructLevel) {
	job := sl.Current().Interface().(JobSettings)
	if job.Difficulty == "" && len(job.RatingRange) == 0 {
		sl.ReportError(job.Difficulty, "difficulty", "Difficulty", "difficulty_or_rating_range", "")
	}
	if len(job.RatingRange) == 2 && job.RatingRange[0] > job.RatingRange[1] {
		sl.ReportError(job.RatingRange, "rating_range", "RatingRange", "ascending", "")
	}
}

func (s *Settings) Location() (*time.Location, error) {
	location, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed loading timezone %s", s.Timezone), ErrorSettings)
	}
	return location, nil
}

// BuildSchedule converts the validated schedule into the runtime model.
func (s *Settings) BuildSchedule() (model.Schedule, error) {
	schedule := make(model.Schedule, len(s.Schedule))
	for name, jobSettings := range s.Schedule {
		day, err := model.ParseWeekday(name)
		if err != nil {
			return nil, errors.Mark(err, ErrorSettings)
		}
		jobs := make([]model.Job, 0, len(jobSettings))
		for _, js := range jobSettings {
			at, err := model.ParseTimeOfDay(js.Time)
			if err != nil {
				return nil, errors.Mark(err, ErrorSettings)
			}
			job := model.Job{
				Time:                  at,
				Difficulty:            js.Difficulty,
				Tags:                  js.Tags,
				Language:              js.Language,
				CommitMessageTemplate: js.CommitMessageTemplate,
			}
			if len(js.RatingRange) == 2 {
				job.RatingRange = &model.RatingRange{Min: js.RatingRange[0], Max: js.RatingRange[1]}
			}
			jobs = append(jobs, job)
		}
		schedule[day] = jobs
	}
	return schedule, nil
}

func (s *Settings) RetryPolicy() executor.RetryPolicy {
	return executor.RetryPolicy{
		MaxRetries: *s.MaxRetries,
		Backoff:    time.Duration(*s.BackoffSeconds) * time.Second,
	}
}

func (s *Settings) StoreConfig() model.StoreConfig {
	return model.StoreConfig{Driver: s.State.Driver, Path: s.State.Path, DSN: s.State.DSN}
}

func (s *Settings) ProviderConfig() codeforces.Config {
	return codeforces.Config{
		BaseURL:     s.Codeforces.BaseURL,
		Timeout:     time.Duration(s.Codeforces.TimeoutSeconds) * time.Second,
		MinInterval: time.Duration(*s.Codeforces.RequestIntervalSeconds) * time.Second,
	}
}

// PublisherConfig takes the push credential from the environment, never from the file.
func (s *Settings) PublisherConfig(token, username string) publisher.Config {
	return publisher.Config{
		RepoPath:    s.RepoPath,
		Remote:      s.GitRemote,
		Branch:      s.GitBranch,
		AuthorName:  s.GitAuthorName,
		AuthorEmail: s.GitAuthorEmail,
		Token:       token,
		Username:    username,
	}
}

func (s *Settings) VerifyTimeout() time.Duration {
	return time.Duration(*s.VerifyTimeoutSeconds) * time.Second
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intPointer(value int) *int {
	return &value
}
