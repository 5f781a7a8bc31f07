package project

import "fmt"

// Redis key patterns
//
// Each project is one JSON document; a single hash indexes summaries for
// listing. Project documents are global (not instance-scoped): every
// Warren instance working a project shares the same record.

// Key returns the Redis key holding a project's JSON document.
// Pattern: warren:project:{project_id}
func Key(projectID string) string {
	return fmt.Sprintf("warren:project:%s", projectID)
}

// IndexKey returns the Redis key of the project summary index hash.
// Field: {project_id}, value: JSON-encoded Summary.
func IndexKey() string {
	return "warren:projects"
}
