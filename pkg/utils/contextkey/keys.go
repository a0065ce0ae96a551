// Package contextkey defines the typed keys for request-scoped context
// values shared between middleware and the logger.
package contextkey

type key string

const (
	TraceID      key = "trace_id"
	UserID       key = "user_id"
	SubmissionID key = "submission_id"
)
