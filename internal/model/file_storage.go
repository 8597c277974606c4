package model

import (
	"context"
	"encoding/json"
	"github.com/cockroachdb/errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type fileStateStore struct {
	path   string
	state  State
	rwLock *sync.RWMutex
}

func NewFileStateStore(path string) *fileStateStore {
	return &fileStateStore{path: path, rwLock: &sync.RWMutex{}}
}

func (st *fileStateStore) Load(_ context.Context) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := State{}
		if err = st.persist(empty); err != nil {
			return err
		}
		st.state = empty
		return nil
	}
	if err != nil {
		return storageError(err, "failed reading state file "+st.path)
	}

	var state State
	if err = json.Unmarshal(data, &state); err != nil {
		return storageError(err, "failed decoding state file "+st.path)
	}
	st.state = state
	return nil
}

func (st *fileStateStore) State() State {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()
	return st.state.clone()
}

func (st *fileStateStore) IsCompleted(problemID string) bool {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()
	return st.state.IsCompleted(problemID)
}

func (st *fileStateStore) MarkCompleted(_ context.Context, record CompletedRecord) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	next := st.state.clone()
	next.Completed = append(next.Completed, record)
	if err := st.persist(next); err != nil {
		return errors.Wrapf(err, "failed marking %s completed", record.ProblemID)
	}
	st.state = next
	return nil
}

func (st *fileStateStore) MarkFailed(_ context.Context, record FailedRecord) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	next := st.state.clone()
	next.Failed = append(next.Failed, record)
	if err := st.persist(next); err != nil {
		return errors.Wrap(err, "failed marking job failed")
	}
	st.state = next
	return nil
}

func (st *fileStateStore) Close() error {
	return nil
}

// persist writes the state next to the target and renames it into place, so
// a torn write never replaces the previous durable file.
func (st *fileStateStore) persist(state State) error {
	data, err := json.MarshalIndent(state.clone(), "", "  ")
	if err != nil {
		return storageError(err, "failed encoding state")
	}

	dir := filepath.Dir(st.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return storageError(err, "failed creating state directory "+dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(st.path)+".*.tmp")
	if err != nil {
		return storageError(err, "failed creating temporary state file")
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(append(data, '\n')); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return storageError(err, "failed writing temporary state file")
	}
	if err = os.Rename(tmpName, st.path); err != nil {
		_ = os.Remove(tmpName)
		return storageError(err, "failed replacing state file "+st.path)
	}
	return nil
}
