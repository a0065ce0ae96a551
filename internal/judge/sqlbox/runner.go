package sqlbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gavel/internal/judge/sandbox"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

// Task is one SQL judging unit: the fixture to build, the submitted query,
// and the expected result set.
type Task struct {
	Schema       string
	SeedData     string
	Query        string
	Expected     []map[string]interface{}
	OrderMatters bool
	TimeLimitMs  int64
}

// Config holds SQL runner settings.
type Config struct {
	DefaultTimeLimitMs int64 `yaml:"defaultTimeLimitMs"`
	MaxRows            int   `yaml:"maxRows"`
}

// Runner judges SQL submissions. Every Execute provisions a fresh instance,
// so concurrent submissions never share state.
type Runner struct {
	prov Provisioner
	cfg  Config
}

func NewRunner(prov Provisioner, cfg Config) (*Runner, error) {
	if prov == nil {
		return nil, appErr.ValidationError("provisioner", "required")
	}
	if cfg.DefaultTimeLimitMs <= 0 {
		cfg.DefaultTimeLimitMs = 10000
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	return &Runner{prov: prov, cfg: cfg}, nil
}

// Execute judges one task. Dangerous statements are rejected before any
// database exists; after that the fixture is built, the query runs under a
// session execution cap, and the result set is compared normalized.
func (r *Runner) Execute(ctx context.Context, task Task) (sandbox.ExecutionResult, error) {
	if matched := CheckQuery(task.Query); matched != "" {
		return sandbox.ExecutionResult{
			Verdict: sandbox.VerdictSecurityViolation,
			ErrText: fmt.Sprintf("query matches forbidden pattern %s", matched),
		}, nil
	}

	timeLimitMs := task.TimeLimitMs
	if timeLimitMs <= 0 {
		timeLimitMs = r.cfg.DefaultTimeLimitMs
	}

	inst, err := r.prov.Provision(ctx)
	if err != nil {
		return sandbox.ExecutionResult{
			Verdict: sandbox.VerdictSystemError,
			ErrText: err.Error(),
		}, nil
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if terr := inst.Teardown(tctx); terr != nil {
			logger.Warn(ctx, "sql instance teardown failed", zap.Error(terr))
		}
	}()

	if err := r.applyFixture(ctx, inst.DB(), task); err != nil {
		return sandbox.ExecutionResult{
			Verdict: sandbox.VerdictSystemError,
			ErrText: err.Error(),
		}, nil
	}

	start := time.Now()
	rows, err := r.query(ctx, inst.DB(), task.Query, timeLimitMs)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() != nil {
			return sandbox.ExecutionResult{
				Verdict: sandbox.VerdictSystemError,
				ErrText: ctx.Err().Error(),
			}, nil
		}
		if isTimeout(err) {
			return sandbox.ExecutionResult{
				Verdict: sandbox.VerdictTimeLimit,
				TimeMs:  timeLimitMs,
			}, nil
		}
		// A query the server rejects is the submitter's fault.
		return sandbox.ExecutionResult{
			Verdict:  sandbox.VerdictRuntimeError,
			ErrText:  err.Error(),
			TimeMs:   elapsed,
			ExitCode: 1,
		}, nil
	}

	equal, err := CompareRows(task.Expected, rows, task.OrderMatters)
	if err != nil {
		return sandbox.ExecutionResult{}, err
	}
	res := sandbox.ExecutionResult{TimeMs: elapsed}
	normActual, normErr := NormalizeRows(rows, task.OrderMatters)
	if normErr == nil {
		if enc, encErr := CanonicalJSON(normActual); encErr == nil {
			res.Output = string(enc)
		}
	}
	if equal {
		res.Verdict = sandbox.VerdictOK
	} else {
		res.Verdict = sandbox.VerdictWrongOutput
	}
	return res, nil
}

// applyFixture builds the problem schema and seed data. Failures here are
// environment faults, never the submitter's.
func (r *Runner) applyFixture(ctx context.Context, db *sql.DB, task Task) error {
	fixtureCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if strings.TrimSpace(task.Schema) == "" {
		return appErr.Newf(appErr.JudgeSystemError, "sql problem has no schema")
	}
	if _, err := db.ExecContext(fixtureCtx, task.Schema); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "apply schema")
	}
	if strings.TrimSpace(task.SeedData) != "" {
		if _, err := db.ExecContext(fixtureCtx, task.SeedData); err != nil {
			return appErr.Wrapf(err, appErr.JudgeSystemError, "apply seed data")
		}
	}
	return nil
}

func (r *Runner) query(ctx context.Context, db *sql.DB, query string, timeLimitMs int64) ([]map[string]interface{}, error) {
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(timeLimitMs)*time.Millisecond)
	defer cancel()

	conn, err := db.Conn(queryCtx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Server-side cap backs up the context deadline so a runaway query dies
	// even if the client connection hangs around.
	if _, err := conn.ExecContext(queryCtx, fmt.Sprintf("SET SESSION MAX_EXECUTION_TIME=%d", timeLimitMs)); err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(queryCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		if len(out) >= r.cfg.MaxRows {
			return nil, fmt.Errorf("result exceeds %d rows", r.cfg.MaxRows)
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "max_execution_time") ||
		strings.Contains(msg, "query execution was interrupted")
}
