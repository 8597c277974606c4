package executor

import (
	"autofeedr/internal/model"
	"context"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeProvider struct {
	problems []model.Problem
	calls    int
	excluded [][]string
	err      error
}

func (p *fakeProvider) Fetch(ctx context.Context, filter model.ProblemFilter, excludedIDs []string) (model.Problem, error) {
	p.calls++
	p.excluded = append(p.excluded, excludedIDs)
	if p.err != nil {
		return model.Problem{}, p.err
	}
	for _, problem := range p.problems {
		if !contains(excludedIDs, problem.ID()) {
			if len(p.problems) > 1 {
				p.problems = p.problems[1:]
			}
			return problem, nil
		}
	}
	return model.Problem{}, errors.Wrap(model.ErrorNotFound, "every candidate already used")
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

type fakeSolver struct{ err error }

func (s fakeSolver) Generate(problem model.Problem, language string) (model.Artifacts, error) {
	return model.Artifacts{Language: language, Readme: "# " + problem.Name}, s.err
}

type fakeWriter struct{ written []string }

func (w *fakeWriter) Write(problem model.Problem, artifacts model.Artifacts, location *time.Location) (string, error) {
	dir := "challenges/" + problem.Slug()
	w.written = append(w.written, dir)
	return dir, nil
}

type fakeVerifier struct {
	failures int
	dirs     []string
}

func (v *fakeVerifier) Verify(ctx context.Context, dir string) error {
	v.dirs = append(v.dirs, dir)
	if v.failures > 0 {
		v.failures--
		return errors.New("pytest exited with status 1")
	}
	return nil
}

type fakePublisher struct {
	failures int
	messages []string
}

func (p *fakePublisher) Publish(ctx context.Context, message string) error {
	p.messages = append(p.messages, message)
	if p.failures > 0 {
		p.failures--
		return errors.New("push rejected")
	}
	return nil
}

type harness struct {
	executor  *Executor
	store     model.StateStore
	provider  *fakeProvider
	writer    *fakeWriter
	verifier  *fakeVerifier
	publisher *fakePublisher
	waits     []time.Duration
}

func newHarness(t *testing.T, provider *fakeProvider, policy RetryPolicy) *harness {
	store := model.NewFileStateStore(filepath.Join(t.TempDir(), "state", "state.json"))
	h := &harness{
		store:     store,
		provider:  provider,
		writer:    &fakeWriter{},
		verifier:  &fakeVerifier{},
		publisher: &fakePublisher{},
	}
	h.executor = New(store, Collaborators{
		Provider:  provider,
		Solver:    fakeSolver{},
		Writer:    h.writer,
		Verifier:  h.verifier,
		Publisher: h.publisher,
	}, policy, time.UTC)
	h.executor.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	h.executor.wait = func(ctx context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		return ctx.Err()
	}
	return h
}

func problem(contestID int, index, name string) model.Problem {
	return model.Problem{Source: "codeforces", ContestID: contestID, Index: index, Name: name}
}

var easyJob = model.Job{Time: model.TimeOfDay{Hour: 9}, Difficulty: "easy", Language: "python"}

func TestExecuteSuccess(t *testing.T) {
	provider := &fakeProvider{problems: []model.Problem{problem(4, "A", "Watermelon")}}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 2, Backoff: 10 * time.Second})

	require.NoError(t, h.executor.Execute(context.Background(), easyJob))

	state := h.store.State()
	require.Len(t, state.Completed, 1)
	assert.Equal(t, model.CompletedRecord{
		ProblemID: "codeforces:4:A",
		Source:    "codeforces",
		ContestID: 4,
		Index:     "A",
		Slug:      "watermelon",
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}, state.Completed[0])
	assert.Empty(t, state.Failed)
	assert.Equal(t, []string{"chore(cf): add watermelon"}, h.publisher.messages)
	assert.Equal(t, []string{"challenges/watermelon"}, h.verifier.dirs)
	assert.Empty(t, h.waits)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	provider := &fakeProvider{err: errors.New("codeforces unavailable")}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 2, Backoff: 10 * time.Second})

	require.NoError(t, h.executor.Execute(context.Background(), easyJob))

	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, h.waits)
	state := h.store.State()
	assert.Empty(t, state.Completed)
	require.Len(t, state.Failed, 1)
	assert.Equal(t, "fetch: codeforces unavailable", state.Failed[0].Error)
	assert.Equal(t, easyJob, state.Failed[0].Job)
}

func TestExecuteRetriesPublishWithFreshProblem(t *testing.T) {
	provider := &fakeProvider{problems: []model.Problem{problem(1, "A", "First"), problem(2, "B", "Second")}}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 2, Backoff: 10 * time.Second})
	h.publisher.failures = 1

	require.NoError(t, h.executor.Execute(context.Background(), easyJob))

	assert.Equal(t, 2, provider.calls)
	assert.Len(t, h.publisher.messages, 2)
	assert.Equal(t, []time.Duration{10 * time.Second}, h.waits)
	state := h.store.State()
	require.Len(t, state.Completed, 1)
	assert.Equal(t, "codeforces:2:B", state.Completed[0].ProblemID)
	assert.Empty(t, state.Failed)
}

func TestExecuteVerificationFailureIsRetried(t *testing.T) {
	provider := &fakeProvider{problems: []model.Problem{problem(1, "A", "First"), problem(2, "B", "Second")}}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 1, Backoff: time.Second})
	h.verifier.failures = 2

	require.NoError(t, h.executor.Execute(context.Background(), easyJob))

	assert.Empty(t, h.publisher.messages)
	assert.Equal(t, []time.Duration{time.Second}, h.waits)
	state := h.store.State()
	require.Len(t, state.Failed, 1)
	assert.Equal(t, "verify: pytest exited with status 1", state.Failed[0].Error)
}

func TestExecuteAlreadyUsedProblem(t *testing.T) {
	background := context.Background()
	provider := &fakeProvider{problems: []model.Problem{problem(1, "A", "Only")}}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 2, Backoff: 10 * time.Second})
	require.NoError(t, h.store.Load(background))
	require.NoError(t, h.store.MarkCompleted(background, model.CompletedRecord{ProblemID: "codeforces:1:A"}))

	require.NoError(t, h.executor.Execute(background, easyJob))

	assert.Equal(t, 3, provider.calls)
	for _, excluded := range provider.excluded {
		assert.Equal(t, []string{"codeforces:1:A"}, excluded)
	}
	state := h.store.State()
	assert.Len(t, state.Completed, 1)
	require.Len(t, state.Failed, 1)
	assert.Contains(t, state.Failed[0].Error, model.ErrorNotFound.Error())
}

func TestExecuteCancelledBackoffRecordsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{err: errors.New("timeout")}
	h := newHarness(t, provider, RetryPolicy{MaxRetries: 5, Backoff: time.Minute})
	h.executor.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	require.NoError(t, h.executor.Execute(ctx, easyJob))

	assert.Equal(t, 1, provider.calls)
	require.Len(t, h.store.State().Failed, 1)
}

func TestExecuteStorageFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	provider := &fakeProvider{problems: []model.Problem{problem(1, "A", "Only")}}
	executor := New(model.NewFileStateStore(path), Collaborators{Provider: provider}, RetryPolicy{}, time.UTC)

	err := executor.Execute(context.Background(), easyJob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrorStorage))
	assert.Zero(t, provider.calls)
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, Backoff: 10 * time.Second}
	assert.Equal(t, 10*time.Second, policy.Delay(0))
	assert.Equal(t, 20*time.Second, policy.Delay(1))
	assert.Equal(t, 80*time.Second, policy.Delay(3))
}

func TestStepError(t *testing.T) {
	cause := errors.New("boom")
	err := stepFailure(StageWrite, cause)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StageWrite, stepErr.Stage)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "write: boom", err.Error())
}
