package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem module errors
// 13000-13999: Submission & Judge module errors
// 14000-14999: Contest & Ranking module errors
// 15000-15999: Anti-Cheat module errors
// 16000-16999: Admin & Permission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008
	TokenInvalid        ErrorCode = 10009
	TokenExpired        ErrorCode = 10010

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10301

	// Storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// ========== Problem Module Errors (12000-12999) ==========

	ProblemNotFound     ErrorCode = 12000
	ProblemNotPublished ErrorCode = 12001
	TestCaseNotFound    ErrorCode = 12100
	TestCaseInvalid     ErrorCode = 12101

	// ========== Submission & Judge Module Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004

	// Judge (13100-13199)
	JudgeQueueFull      ErrorCode = 13100
	JudgeSystemError    ErrorCode = 13101
	CompilationError    ErrorCode = 13102
	RuntimeError        ErrorCode = 13103
	TimeLimitExceeded   ErrorCode = 13104
	MemoryLimitExceeded ErrorCode = 13105
	SecurityViolation   ErrorCode = 13106
	SandboxProvision    ErrorCode = 13107

	// ========== Contest & Ranking Module Errors (14000-14999) ==========

	ContestNotFound   ErrorCode = 14000
	ContestNotStarted ErrorCode = 14001
	ContestEnded      ErrorCode = 14002
	NotRegistered     ErrorCode = 14100

	RankingNotAvailable ErrorCode = 14200

	// ========== Anti-Cheat Module Errors (15000-15999) ==========

	ViolationTypeInvalid    ErrorCode = 15000
	ViolationWindowClosed   ErrorCode = 15001
	ViolationRecordFailed   ErrorCode = 15002
	ParticipantDisqualified ErrorCode = 15003

	// ========== Admin & Permission Errors (16000-16999) ==========

	PermissionDenied     ErrorCode = 16000
	AdminOperationFailed ErrorCode = 16100
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	TokenInvalid:        "Invalid token",
	TokenExpired:        "Token has expired",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Storage
	StorageError: "Object storage operation failed",

	// Problem
	ProblemNotFound:     "Problem not found",
	ProblemNotPublished: "Problem is not published yet",
	TestCaseNotFound:    "Test case not found",
	TestCaseInvalid:     "Invalid test case format",

	// Submission
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	SubmitTooFrequently:    "Submitting too frequently, please wait",

	// Judge
	JudgeQueueFull:      "Judge queue is full, please try again later",
	JudgeSystemError:    "Judge system error",
	CompilationError:    "Compilation error",
	RuntimeError:        "Runtime error",
	TimeLimitExceeded:   "Time limit exceeded",
	MemoryLimitExceeded: "Memory limit exceeded",
	SecurityViolation:   "Source code contains forbidden constructs",
	SandboxProvision:    "Sandbox provisioning failed",

	// Contest & Ranking
	ContestNotFound:     "Contest not found",
	ContestNotStarted:   "Contest has not started yet",
	ContestEnded:        "Contest has ended",
	NotRegistered:       "Not registered for this contest",
	RankingNotAvailable: "Ranking is not available",

	// Anti-Cheat
	ViolationTypeInvalid:    "Unknown violation type",
	ViolationWindowClosed:   "Contest is not within its active window",
	ViolationRecordFailed:   "Failed to record violation",
	ParticipantDisqualified: "Participant has been disqualified",

	// Admin
	PermissionDenied:     "Permission denied",
	AdminOperationFailed: "Admin operation failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenInvalid, c == TokenExpired:
		return 401
	case c == Forbidden, c >= 16000 && c < 16100:
		return 403
	case c == NotFound, c == ProblemNotFound, c == ContestNotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable, c == JudgeQueueFull:
		return 503
	case c >= 10300 && c < 10400:
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == CodeTooLarge, c == ViolationTypeInvalid:
		return 400
	default:
		return 500
	}
}
