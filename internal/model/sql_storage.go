package model

import (
	"autofeedr/internal/model/sqlquery"
	"context"
	"database/sql"
	"encoding/json"
	"github.com/cockroachdb/errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

type sqlStateStore struct {
	database *sql.DB
	driver   string
	state    State
	rwLock   *sync.RWMutex
}

func NewSQLStateStore(ctx context.Context, driverName, dataSourceName string) (*sqlStateStore, error) {
	if _, ok := sqlquery.CreateTables[driverName]; !ok {
		return nil, errors.Newf("unsupported sql driver %q", driverName)
	}
	database, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, storageError(err, "failed opening database")
	}
	if driverName == DriverSQLite {
		database.SetMaxOpenConns(1)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, sqlquery.DatabaseOperationTimeout)
	defer cancel()
	if err = database.PingContext(timeoutCtx); err != nil {
		database.Close()
		return nil, storageError(err, "failed checking database availability")
	}
	return newSQLStateStore(database, driverName), nil
}

func newSQLStateStore(database *sql.DB, driver string) *sqlStateStore {
	return &sqlStateStore{database: database, driver: driver, rwLock: &sync.RWMutex{}}
}

func (st *sqlStateStore) Load(ctx context.Context) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	var state State
	transactionFunc := func(ctx context.Context, tx *sql.Tx) error {
		for _, query := range sqlquery.CreateTables[st.driver] {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return errors.Wrap(err, "failed creating state tables")
			}
		}
		completed, err := scanCompleted(ctx, tx)
		if err != nil {
			return err
		}
		failed, err := scanFailed(ctx, tx)
		if err != nil {
			return err
		}
		state = State{Completed: completed, Failed: failed}
		return nil
	}
	if err := st.transact(ctx, transactionFunc); err != nil {
		return storageError(err, "failed loading state")
	}
	st.state = state
	return nil
}

func (st *sqlStateStore) State() State {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()
	return st.state.clone()
}

func (st *sqlStateStore) IsCompleted(problemID string) bool {
	st.rwLock.RLock()
	defer st.rwLock.RUnlock()
	return st.state.IsCompleted(problemID)
}

func (st *sqlStateStore) MarkCompleted(ctx context.Context, record CompletedRecord) error {
	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	transactionFunc := func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			st.rebind(sqlquery.InsertCompleted),
			record.ProblemID,
			record.Source,
			record.ContestID,
			record.Index,
			record.Slug,
			formatTimestamp(record.Timestamp),
		)
		return err
	}
	if err := st.transact(ctx, transactionFunc); err != nil {
		return storageError(err, "failed marking "+record.ProblemID+" completed")
	}
	st.state.Completed = append(st.state.Completed, record)
	return nil
}

func (st *sqlStateStore) MarkFailed(ctx context.Context, record FailedRecord) error {
	job, err := json.Marshal(record.Job)
	if err != nil {
		return storageError(err, "failed encoding failed job")
	}

	st.rwLock.Lock()
	defer st.rwLock.Unlock()

	transactionFunc := func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			st.rebind(sqlquery.InsertFailed),
			formatTimestamp(record.Timestamp),
			record.Error,
			string(job),
		)
		return err
	}
	if err = st.transact(ctx, transactionFunc); err != nil {
		return storageError(err, "failed marking job failed")
	}
	st.state.Failed = append(st.state.Failed, record)
	return nil
}

func (st *sqlStateStore) Close() error {
	return st.database.Close()
}

func scanCompleted(ctx context.Context, tx *sql.Tx) ([]CompletedRecord, error) {
	rows, err := tx.QueryContext(ctx, sqlquery.SelectCompleted)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying completed problems")
	}
	defer rows.Close()

	records := make([]CompletedRecord, 0)
	for rows.Next() {
		var record CompletedRecord
		var completedAt string
		err = rows.Scan(
			&record.ProblemID,
			&record.Source,
			&record.ContestID,
			&record.Index,
			&record.Slug,
			&completedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed scanning completed problem")
		}
		if record.Timestamp, err = parseTimestamp(completedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanFailed(ctx context.Context, tx *sql.Tx) ([]FailedRecord, error) {
	rows, err := tx.QueryContext(ctx, sqlquery.SelectFailed)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying failed jobs")
	}
	defer rows.Close()

	records := make([]FailedRecord, 0)
	for rows.Next() {
		var record FailedRecord
		var failedAt, job string
		if err = rows.Scan(&failedAt, &record.Error, &job); err != nil {
			return nil, errors.Wrap(err, "failed scanning failed job")
		}
		if record.Timestamp, err = parseTimestamp(failedAt); err != nil {
			return nil, err
		}
		if err = json.Unmarshal([]byte(job), &record.Job); err != nil {
			return nil, errors.Wrap(err, "failed decoding failed job")
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// transact runs transactionFunc in one transaction; callers hold rwLock.
func (st *sqlStateStore) transact(ctx context.Context, transactionFunc func(context.Context, *sql.Tx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, sqlquery.DatabaseOperationTimeout)
	defer cancel()

	tx, err := st.database.BeginTx(timeoutCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err = transactionFunc(timeoutCtx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (st *sqlStateStore) rebind(query string) string {
	if st.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteString("$" + strconv.Itoa(n))
	}
	return b.String()
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed parsing timestamp %q", value)
	}
	return t, nil
}
