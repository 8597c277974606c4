// Package repowriter lays out generated challenge files inside the target repository.
package repowriter

import (
	"autofeedr/internal/model"
	"fmt"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"os"
	"path"
	"path/filepath"
	"time"
)

const (
	ChallengesDir = "challenges"
	IndexFile     = "INDEX.md"
	indexHeader   = "# Challenges\n"
)

var ErrorWrite = errors.New("failed writing challenge")

type RepoWriter struct {
	repoPath string
	now      func() time.Time
}

func NewRepoWriter(repoPath string) *RepoWriter {
	return &RepoWriter{repoPath: repoPath, now: time.Now}
}

// ChallengeDir is the repository relative directory of problem for a run at now.
func ChallengeDir(problem model.Problem, now time.Time) string {
	name := fmt.Sprintf("%s_%d_%s_%s", problem.Source, problem.ContestID, problem.Index, problem.Slug())
	return path.Join(ChallengesDir, now.Format("2006-01"), name)
}

// Write stores artifacts under challenges/<YYYY-MM>/ with the month taken in
// location, then appends the entry to INDEX.md. It returns the absolute
// challenge directory.
func (w *RepoWriter) Write(problem model.Problem, artifacts model.Artifacts, location *time.Location) (string, error) {
	if location == nil {
		location = time.UTC
	}
	relative := ChallengeDir(problem, w.now().In(location))
	dir := filepath.Join(w.repoPath, filepath.FromSlash(relative))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "failed creating %s", relative), ErrorWrite)
	}

	files := []struct {
		name    string
		content string
	}{
		{"README.md", artifacts.Readme},
		{"solution.py", artifacts.Solution},
		{"test_solution.py", artifacts.Tests},
		{"notes.md", artifacts.Notes},
	}
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(dir, file.name), []byte(file.content), 0o644); err != nil {
			return "", errors.Mark(errors.Wrapf(err, "failed writing %s", file.name), ErrorWrite)
		}
	}
	if err := w.appendIndex(problem, relative); err != nil {
		return "", errors.Mark(err, ErrorWrite)
	}

	log.WithFields(log.Fields{
		"problem": problem.ID(),
		"dir":     relative,
	}).Info("Wrote challenge files")
	return dir, nil
}

func (w *RepoWriter) appendIndex(problem model.Problem, relative string) error {
	indexPath := filepath.Join(w.repoPath, IndexFile)
	if _, err := os.Stat(indexPath); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(indexPath, []byte(indexHeader), 0o644); err != nil {
			return errors.Wrap(err, "failed creating index")
		}
	} else if err != nil {
		return errors.Wrap(err, "failed reading index")
	}

	file, err := os.OpenFile(indexPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed opening index")
	}
	if _, err = fmt.Fprintf(file, "- [%s](%s)\n", problem.Name, relative); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "failed appending to index")
	}
	return errors.Wrap(file.Close(), "failed closing index")
}
