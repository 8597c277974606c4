package data

import "encoding/json"

// Settings renders a settings file for an end-to-end run against a fake catalog.
func Settings(repoPath, remote, catalogURL, statePath string) ([]byte, error) {
	settings := map[string]any{
		"repo_path":       repoPath,
		"git_remote":      remote,
		"git_branch":      "main",
		"timezone":        "UTC",
		"max_retries":     1,
		"backoff_seconds": 0,
		"verify_command":  `sh -c 'test -f "$1/solution.py" && test -f "$1/test_solution.py"' verify {dir}`,
		"state":           map[string]any{"driver": "sqlite", "path": statePath},
		"codeforces": map[string]any{
			"base_url":                 catalogURL,
			"timeout_seconds":          5,
			"request_interval_seconds": 0,
		},
		"schedule": map[string]any{
			"monday": []map[string]any{
				{"time": "09:00", "difficulty": "easy", "commit_message_template": "chore(cf): add {slug} [{difficulty}]"},
			},
			"thursday": []map[string]any{
				{"time": "20:30", "rating_range": []int{1400, 1600}, "tags": []string{"dp"}},
			},
		},
	}
	return json.MarshalIndent(settings, "", "  ")
}
