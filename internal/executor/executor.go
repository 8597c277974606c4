package executor

import (
	"autofeedr/internal/model"
	"context"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"time"
)

// RetryPolicy allows MaxRetries retries after the first attempt. The wait
// before retry n (0-indexed) is Backoff * 2^n, without jitter or cap.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.Backoff << uint(attempt)
}

type Executor struct {
	store         model.StateStore
	collaborators Collaborators
	policy        RetryPolicy
	location      *time.Location
	now           func() time.Time
	wait          func(ctx context.Context, d time.Duration) error
}

func New(store model.StateStore, collaborators Collaborators, policy RetryPolicy, location *time.Location) *Executor {
	return &Executor{
		store:         store,
		collaborators: collaborators,
		policy:        policy,
		location:      location,
		now:           time.Now,
		wait:          sleep,
	}
}

// Execute runs job through fetch, generate, write, verify and publish,
// retrying the whole pipeline with a freshly fetched problem on any failure.
// Pipeline failures end as a Failed record; the returned error is non-nil
// only when the state store could not be loaded or written.
func (e *Executor) Execute(ctx context.Context, job model.Job) error {
	if err := e.store.Load(ctx); err != nil {
		return errors.Wrap(err, "failed loading state")
	}
	usedIDs := e.store.State().CompletedIDs()
	runLog := log.WithFields(log.Fields{
		"run": uuid.NewString(),
		"job": job.String(),
	})

	var lastErr error
	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		attemptLog := runLog.WithField("attempt", attempt+1)
		attemptLog.Info("Starting attempt")

		problem, err := e.runPipeline(ctx, job, usedIDs, attemptLog)
		if err == nil {
			return e.recordCompleted(ctx, problem, attemptLog)
		}
		lastErr = err

		fields := log.Fields{"error": err}
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			fields["stage"] = stepErr.Stage
		}
		if attempt >= e.policy.MaxRetries {
			attemptLog.WithFields(fields).Error("Attempt failed, no retries left")
			break
		}

		delay := e.policy.Delay(attempt)
		fields["retry_in"] = delay.String()
		attemptLog.WithFields(fields).Warn("Attempt failed, retrying")
		if err = e.wait(ctx, delay); err != nil {
			attemptLog.WithField("error", err).Warn("Backoff interrupted")
			break
		}
	}
	return e.recordFailed(ctx, job, lastErr, runLog)
}

func (e *Executor) runPipeline(ctx context.Context, job model.Job, usedIDs []string, attemptLog *log.Entry) (model.Problem, error) {
	problem, err := e.collaborators.Provider.Fetch(ctx, job.Filter(), usedIDs)
	if err != nil {
		return model.Problem{}, stepFailure(StageFetch, err)
	}
	attemptLog = attemptLog.WithField("problem", problem.ID())
	attemptLog.Info("Fetched problem")

	artifacts, err := e.collaborators.Solver.Generate(problem, job.Language)
	if err != nil {
		return problem, stepFailure(StageGenerate, err)
	}

	dir, err := e.collaborators.Writer.Write(problem, artifacts, e.location)
	if err != nil {
		return problem, stepFailure(StageWrite, err)
	}
	attemptLog.WithField("dir", dir).Debug("Wrote artifacts")

	if err = e.collaborators.Verifier.Verify(ctx, dir); err != nil {
		return problem, stepFailure(StageVerify, err)
	}

	message := CommitMessage(job, problem)
	if err = e.collaborators.Publisher.Publish(ctx, message); err != nil {
		return problem, stepFailure(StagePublish, err)
	}
	attemptLog.WithField("message", message).Debug("Published changes")
	return problem, nil
}

func (e *Executor) recordCompleted(ctx context.Context, problem model.Problem, attemptLog *log.Entry) error {
	record := model.CompletedRecord{
		ProblemID: problem.ID(),
		Source:    problem.Source,
		ContestID: problem.ContestID,
		Index:     problem.Index,
		Slug:      problem.Slug(),
		Timestamp: e.now(),
	}
	if err := e.store.MarkCompleted(context.WithoutCancel(ctx), record); err != nil {
		return errors.Wrap(err, "failed recording completed job")
	}
	attemptLog.WithField("problem", record.ProblemID).Info("Job completed")
	return nil
}

func (e *Executor) recordFailed(ctx context.Context, job model.Job, cause error, runLog *log.Entry) error {
	if cause == nil {
		cause = errors.New("job did not run")
	}
	record := model.FailedRecord{
		Timestamp: e.now(),
		Error:     cause.Error(),
		Job:       job,
	}
	if err := e.store.MarkFailed(context.WithoutCancel(ctx), record); err != nil {
		return errors.Wrap(err, "failed recording failed job")
	}
	runLog.WithField("error", cause).Error("Job failed")
	return nil
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
