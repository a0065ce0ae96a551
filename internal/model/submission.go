package model

import "time"

// SubmissionStatus is the lifecycle state of a submission. PENDING is the
// only non-terminal state; the processor moves a submission to exactly one
// terminal status and never back.
type SubmissionStatus string

const (
	StatusPending          SubmissionStatus = "PENDING"
	StatusPass             SubmissionStatus = "PASS"
	StatusFail             SubmissionStatus = "FAIL"
	StatusError            SubmissionStatus = "ERROR"
	StatusTimeLimit        SubmissionStatus = "TLE"
	StatusMemoryLimit      SubmissionStatus = "MLE"
	StatusCompilationError SubmissionStatus = "COMPILATION_ERROR"
	StatusRuntimeError     SubmissionStatus = "RUNTIME_ERROR"
)

// IsTerminal reports whether the status ends the submission lifecycle.
func (s SubmissionStatus) IsTerminal() bool {
	return s != StatusPending && s != ""
}

// Submission is the durable record of one judge request.
type Submission struct {
	ID        string           `json:"id"`
	UserID    int64            `json:"user_id"`
	ProblemID int64            `json:"problem_id"`
	ContestID int64            `json:"contest_id,omitempty"` // 0 means practice
	Code      string           `json:"code"`
	Language  string           `json:"language"`
	Status    SubmissionStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	TimeMs    int64            `json:"time_ms"`
	MemoryKB  int64            `json:"memory_kb"`
	CreatedAt time.Time        `json:"created_at"`
}

// SubmissionJob is the queue payload. It is disposable once the processor
// finishes; the Submission row is the durable record.
type SubmissionJob struct {
	SubmissionID string `json:"submission_id"`
	UserID       int64  `json:"user_id"`
	ProblemID    int64  `json:"problem_id"`
	ContestID    int64  `json:"contest_id,omitempty"`
	Code         string `json:"code"`
	Language     string `json:"language"`
}

// Progress is the per-test-case completion fraction reported while judging.
type Progress struct {
	TotalTests int `json:"total_tests"`
	DoneTests  int `json:"done_tests"`
}

// LiveStatus is the in-flight view of a submission exposed to pollers and
// hub subscribers before the terminal verdict lands.
type LiveStatus struct {
	SubmissionID string           `json:"submission_id"`
	Status       SubmissionStatus `json:"status"`
	Message      string           `json:"message,omitempty"`
	Progress     Progress         `json:"progress"`
	TimeMs       int64            `json:"time_ms,omitempty"`
	MemoryKB     int64            `json:"memory_kb,omitempty"`
	ReceivedAt   int64            `json:"received_at"`
	FinishedAt   int64            `json:"finished_at,omitempty"`
}
