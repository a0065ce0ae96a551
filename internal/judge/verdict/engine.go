// Package verdict turns per-test-case execution results into one terminal
// submission status.
package verdict

import (
	"context"
	"fmt"
	"strings"

	"gavel/internal/judge/languages"
	"gavel/internal/judge/sandbox"
	"gavel/internal/judge/sqlbox"
	"gavel/internal/model"
	appErr "gavel/pkg/errors"
)

// Outcome is the aggregate judging result for one submission.
type Outcome struct {
	Status      model.SubmissionStatus
	Message     string
	TimeMs      int64
	MemoryKB    int64
	PassedTests int
	TotalTests  int
}

// ProgressFunc is invoked after each finished test case.
type ProgressFunc func(done, total int)

// CaseRunner executes one test case for one problem kind.
type CaseRunner interface {
	RunCase(ctx context.Context, sub *model.Submission, problem *model.Problem, spec languages.Spec, tc model.TestCase) (sandbox.ExecutionResult, error)
}

// Engine drives the ordered test-case loop. Cases run sequentially; the
// first case that does not pass ends the loop and fixes the status.
type Engine struct {
	registry *languages.Registry
	code     CaseRunner
	sql      CaseRunner
}

func NewEngine(registry *languages.Registry, code, sql CaseRunner) (*Engine, error) {
	if registry == nil {
		return nil, appErr.ValidationError("registry", "required")
	}
	if code == nil || sql == nil {
		return nil, appErr.ValidationError("case_runner", "required for both problem kinds")
	}
	return &Engine{registry: registry, code: code, sql: sql}, nil
}

// Judge runs every test case in order and returns the aggregated outcome.
// The returned error is reserved for environment faults; anything the
// submitter caused comes back inside the Outcome.
func (e *Engine) Judge(ctx context.Context, sub *model.Submission, problem *model.Problem, cases []model.TestCase, progress ProgressFunc) (Outcome, error) {
	if len(cases) == 0 {
		return Outcome{}, appErr.Newf(appErr.JudgeSystemError, "problem %d has no test cases", problem.ID)
	}

	spec, runner, outcome, err := e.prepare(sub, problem)
	if err != nil {
		return Outcome{}, err
	}
	if outcome != nil {
		outcome.TotalTests = len(cases)
		return *outcome, nil
	}

	out := Outcome{TotalTests: len(cases)}
	for i, tc := range cases {
		res, err := runner.RunCase(ctx, sub, problem, spec, tc)
		if err != nil {
			return Outcome{}, err
		}
		if res.TimeMs > out.TimeMs {
			out.TimeMs = res.TimeMs
		}
		if res.MemoryKB > out.MemoryKB {
			out.MemoryKB = res.MemoryKB
		}

		if res.Verdict == sandbox.VerdictOK {
			out.PassedTests++
			if progress != nil {
				progress(i+1, len(cases))
			}
			continue
		}

		out.Status, out.Message = mapFailure(res, i+1)
		if progress != nil {
			progress(i+1, len(cases))
		}
		return out, nil
	}

	out.Status = model.StatusPass
	out.Message = fmt.Sprintf("passed %d/%d test cases", out.PassedTests, out.TotalTests)
	return out, nil
}

// prepare resolves the language and the kind-specific runner. A non-nil
// Outcome means judging ended before any case ran (forbidden pattern,
// disallowed language).
func (e *Engine) prepare(sub *model.Submission, problem *model.Problem) (languages.Spec, CaseRunner, *Outcome, error) {
	switch problem.Kind {
	case model.ProblemKindSQL:
		return languages.Spec{}, e.sql, nil, nil
	case model.ProblemKindCode:
	default:
		return languages.Spec{}, nil, nil, appErr.Newf(appErr.JudgeSystemError, "problem %d has unknown kind %q", problem.ID, problem.Kind)
	}

	spec, err := e.registry.Get(sub.Language)
	if err != nil {
		return languages.Spec{}, nil, nil, err
	}
	if !problem.AllowsLanguage(sub.Language) {
		return languages.Spec{}, nil, nil, appErr.Newf(appErr.LanguageNotSupported, "problem %d does not accept %s", problem.ID, sub.Language)
	}
	matched, err := e.registry.Validate(sub.Code, sub.Language)
	if err != nil {
		return languages.Spec{}, nil, nil, err
	}
	if matched != "" {
		return languages.Spec{}, nil, &Outcome{
			Status:  model.StatusError,
			Message: fmt.Sprintf("source matches forbidden pattern %s", matched),
		}, nil
	}
	return spec, e.code, nil, nil
}

// mapFailure fixes the terminal status for the first failing case, in
// precedence order. Security and compile faults outrank resource faults,
// resource faults outrank crashes, crashes outrank wrong output.
func mapFailure(res sandbox.ExecutionResult, caseNo int) (model.SubmissionStatus, string) {
	switch res.Verdict {
	case sandbox.VerdictSecurityViolation:
		return model.StatusError, withCase(caseNo, res.ErrText, "security violation")
	case sandbox.VerdictCompileError:
		return model.StatusCompilationError, res.ErrText
	case sandbox.VerdictSystemError:
		return model.StatusError, withCase(caseNo, res.ErrText, "judge system error")
	case sandbox.VerdictTimeLimit:
		return model.StatusTimeLimit, fmt.Sprintf("time limit exceeded on test case %d", caseNo)
	case sandbox.VerdictMemoryLimit:
		return model.StatusMemoryLimit, fmt.Sprintf("memory limit exceeded on test case %d", caseNo)
	case sandbox.VerdictRuntimeError:
		return model.StatusRuntimeError, withCase(caseNo, res.ErrText, "runtime error")
	default:
		return model.StatusFail, fmt.Sprintf("wrong answer on test case %d", caseNo)
	}
}

func withCase(caseNo int, detail, fallback string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = fallback
	}
	return fmt.Sprintf("test case %d: %s", caseNo, detail)
}

// CodeCaseRunner adapts the process sandbox to the per-case contract.
type CodeCaseRunner struct {
	runner *sandbox.Runner
}

func NewCodeCaseRunner(runner *sandbox.Runner) *CodeCaseRunner {
	return &CodeCaseRunner{runner: runner}
}

// RunCase executes one code test case and compares trimmed output exactly.
func (c *CodeCaseRunner) RunCase(ctx context.Context, sub *model.Submission, problem *model.Problem, spec languages.Spec, tc model.TestCase) (sandbox.ExecutionResult, error) {
	res, err := c.runner.Execute(ctx, sub.Code, spec, tc.Input, problem.TimeLimitMs, problem.MemoryMB)
	if err != nil {
		return sandbox.ExecutionResult{}, err
	}
	if res.Verdict == sandbox.VerdictOK && !OutputMatches(res.Output, tc.Expected) {
		res.Verdict = sandbox.VerdictWrongOutput
	}
	return res, nil
}

// OutputMatches compares program output to the expected text exactly after
// trimming trailing whitespace on both sides. Leading and interior
// whitespace are significant.
func OutputMatches(actual, expected string) bool {
	return trimTrailing(actual) == trimTrailing(expected)
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

// SQLCaseRunner adapts the SQL sandbox to the per-case contract.
type SQLCaseRunner struct {
	runner *sqlbox.Runner
}

func NewSQLCaseRunner(runner *sqlbox.Runner) *SQLCaseRunner {
	return &SQLCaseRunner{runner: runner}
}

func (s *SQLCaseRunner) RunCase(ctx context.Context, sub *model.Submission, problem *model.Problem, _ languages.Spec, tc model.TestCase) (sandbox.ExecutionResult, error) {
	return s.runner.Execute(ctx, sqlbox.Task{
		Schema:       problem.Schema,
		SeedData:     problem.SeedData,
		Query:        sub.Code,
		Expected:     tc.ExpectedRows,
		OrderMatters: problem.OrderMatters,
		TimeLimitMs:  problem.TimeLimitMs,
	})
}
