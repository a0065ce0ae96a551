package sandbox

// Verdict tags one test-case execution. Produced once per test case and
// consumed immediately by the verdict engine; never persisted.
type Verdict string

const (
	VerdictOK                Verdict = "OK"
	VerdictWrongOutput       Verdict = "WRONG_OUTPUT"
	VerdictTimeLimit         Verdict = "TIME_LIMIT"
	VerdictMemoryLimit       Verdict = "MEMORY_LIMIT"
	VerdictCompileError      Verdict = "COMPILE_ERROR"
	VerdictRuntimeError      Verdict = "RUNTIME_ERROR"
	VerdictSecurityViolation Verdict = "SECURITY_VIOLATION"
	VerdictSystemError       Verdict = "SYSTEM_ERROR"
)

// ExecutionResult is the raw outcome of running one code/test-case pair.
type ExecutionResult struct {
	Verdict  Verdict
	Output   string
	ErrText  string
	ExitCode int
	TimeMs   int64
	MemoryKB int64
}
