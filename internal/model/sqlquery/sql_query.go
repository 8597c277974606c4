package sqlquery

import "time"

// Queries use '?' placeholders; the store rebinds them for postgres.
const (
	InsertCompleted = "INSERT INTO completed_problems (problem_id, source, contest_id, problem_index, slug, completed_at) VALUES (?, ?, ?, ?, ?, ?)"
	InsertFailed    = "INSERT INTO failed_jobs (failed_at, error, job) VALUES (?, ?, ?)"
	SelectCompleted = "SELECT problem_id, source, contest_id, problem_index, slug, completed_at FROM completed_problems ORDER BY seq"
	SelectFailed    = "SELECT failed_at, error, job FROM failed_jobs ORDER BY seq"

	DatabaseOperationTimeout = time.Second * 5
)

var CreateTables = map[string][]string{
	"postgres": {
		"CREATE TABLE IF NOT EXISTS completed_problems (seq BIGSERIAL PRIMARY KEY, problem_id TEXT NOT NULL UNIQUE, source TEXT NOT NULL, contest_id INTEGER NOT NULL, problem_index TEXT NOT NULL, slug TEXT NOT NULL, completed_at TEXT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS failed_jobs (seq BIGSERIAL PRIMARY KEY, failed_at TEXT NOT NULL, error TEXT NOT NULL, job TEXT NOT NULL)",
	},
	"sqlite": {
		"CREATE TABLE IF NOT EXISTS completed_problems (seq INTEGER PRIMARY KEY AUTOINCREMENT, problem_id TEXT NOT NULL UNIQUE, source TEXT NOT NULL, contest_id INTEGER NOT NULL, problem_index TEXT NOT NULL, slug TEXT NOT NULL, completed_at TEXT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS failed_jobs (seq INTEGER PRIMARY KEY AUTOINCREMENT, failed_at TEXT NOT NULL, error TEXT NOT NULL, job TEXT NOT NULL)",
	},
}
