package sqlquery

const (
	CountCompleted = "SELECT COUNT(*) FROM completed_problems"
	CountFailed    = "SELECT COUNT(*) FROM failed_jobs"
	LastCompleted  = "SELECT problem_id, slug FROM completed_problems ORDER BY seq DESC LIMIT 1"
)
