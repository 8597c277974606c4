package executor

import (
	"autofeedr/internal/model"
	"context"
	"github.com/cockroachdb/errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ProblemProvider picks a problem matching filter whose ID is not in excludedIDs.
type ProblemProvider interface {
	Fetch(ctx context.Context, filter model.ProblemFilter, excludedIDs []string) (model.Problem, error)
}

type Solver interface {
	Generate(problem model.Problem, language string) (model.Artifacts, error)
}

// Writer stores the artifacts and returns the directory it created.
type Writer interface {
	Write(problem model.Problem, artifacts model.Artifacts, location *time.Location) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, dir string) error
}

// Publisher stages every pending change, commits it with message and pushes it.
type Publisher interface {
	Publish(ctx context.Context, message string) error
}

type Collaborators struct {
	Provider  ProblemProvider
	Solver    Solver
	Writer    Writer
	Verifier  Verifier
	Publisher Publisher
}

const DefaultCommitMessageTemplate = "chore(cf): add {slug}"

var (
	commitPlaceholder  = regexp.MustCompile(`\{([^{}]*)\}`)
	commitPlaceholders = map[string]bool{
		"slug":       true,
		"difficulty": true,
		"contest_id": true,
		"contestId":  true,
		"index":      true,
		"source":     true,
	}
)

// CheckCommitTemplate rejects templates naming placeholders CommitMessage
// does not know.
func CheckCommitTemplate(template string) error {
	for _, match := range commitPlaceholder.FindAllStringSubmatch(template, -1) {
		if !commitPlaceholders[match[1]] {
			return errors.Newf("unknown commit message placeholder {%s}", match[1])
		}
	}
	return nil
}

// CommitMessage renders the job's commit template for problem. Templates are
// checked with CheckCommitTemplate when settings load.
func CommitMessage(job model.Job, problem model.Problem) string {
	template := job.CommitMessageTemplate
	if template == "" {
		template = DefaultCommitMessageTemplate
	}
	difficulty := job.Difficulty
	if difficulty == "" {
		difficulty = "rating"
	}
	contestID := strconv.Itoa(problem.ContestID)
	return strings.NewReplacer(
		"{slug}", problem.Slug(),
		"{difficulty}", difficulty,
		"{contest_id}", contestID,
		"{contestId}", contestID,
		"{index}", problem.Index,
		"{source}", problem.Source,
	).Replace(template)
}
