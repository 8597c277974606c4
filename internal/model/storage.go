package model

import (
	"context"
	"github.com/cockroachdb/errors"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrorStorage  = errors.New("state storage error")
	ErrorNotFound = errors.New("no matching problem found")
)

type CompletedRecord struct {
	ProblemID string    `json:"problem_id"`
	Source    string    `json:"source"`
	ContestID int       `json:"contest_id"`
	Index     string    `json:"index"`
	Slug      string    `json:"slug"`
	Timestamp time.Time `json:"timestamp"`
}

type FailedRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Job       Job       `json:"job"`
}

// State is the whole execution history. Both sequences only ever grow.
type State struct {
	Completed []CompletedRecord `json:"completed"`
	Failed    []FailedRecord    `json:"failed"`
}

func (s State) CompletedIDs() []string {
	ids := make([]string, 0, len(s.Completed))
	for _, record := range s.Completed {
		ids = append(ids, record.ProblemID)
	}
	return ids
}

func (s State) IsCompleted(problemID string) bool {
	for _, record := range s.Completed {
		if record.ProblemID == problemID {
			return true
		}
	}
	return false
}

func (s State) clone() State {
	return State{
		Completed: append(make([]CompletedRecord, 0, len(s.Completed)+1), s.Completed...),
		Failed:    append(make([]FailedRecord, 0, len(s.Failed)+1), s.Failed...),
	}
}

// StateStore keeps the completed/failed history durable.
//
// Load must be called before the other methods; it creates empty persisted
// state when none exists. MarkCompleted and MarkFailed return only after the
// new record is durable; on error the in-memory state is left unchanged.
type StateStore interface {
	Load(ctx context.Context) error
	State() State
	IsCompleted(problemID string) bool
	MarkCompleted(ctx context.Context, record CompletedRecord) error
	MarkFailed(ctx context.Context, record FailedRecord) error
	Close() error
}

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver string
	Path   string
	DSN    string
}

func OpenStateStore(ctx context.Context, cfg StoreConfig) (StateStore, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return NewFileStateStore(cfg.Path), nil
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, storageError(err, "failed creating state directory")
		}
		return NewSQLStateStore(ctx, DriverSQLite, cfg.Path)
	case DriverPostgres:
		return NewSQLStateStore(ctx, DriverPostgres, cfg.DSN)
	default:
		return nil, errors.Newf("unknown state driver %q", cfg.Driver)
	}
}

func storageError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrorStorage)
}
