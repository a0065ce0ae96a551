package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gavel/internal/judge/languages"
	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/logger"
)

// Config holds sandbox runner settings.
type Config struct {
	WorkRoot       string `yaml:"workRoot"`
	MaxOutputBytes int64  `yaml:"maxOutputBytes"`
}

// Runner prepares an isolated work directory per execution, drives the
// compile and run steps through an Engine, and maps raw process outcomes to
// verdicts.
type Runner struct {
	eng Engine
	cfg Config
}

// NewRunner creates a runner. WorkRoot must exist and be writable.
func NewRunner(eng Engine, cfg Config) (*Runner, error) {
	if eng == nil {
		return nil, appErr.ValidationError("engine", "required")
	}
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	return &Runner{eng: eng, cfg: cfg}, nil
}

// Execute runs one code/test-case pair and returns an ExecutionResult. The
// returned error is non-nil only for environment faults; judging outcomes,
// compile errors included, come back as verdicts.
func (r *Runner) Execute(ctx context.Context, code string, spec languages.Spec, input string, timeLimitMs, memoryMB int64) (ExecutionResult, error) {
	if timeLimitMs <= 0 {
		timeLimitMs = spec.TimeLimitMs
	}
	if memoryMB <= 0 {
		memoryMB = spec.MemoryMB
	}

	workDir := filepath.Join(r.cfg.WorkRoot, "judge-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return ExecutionResult{}, appErr.Wrapf(err, appErr.SandboxProvision, "create work dir")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn(ctx, "remove work dir failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	srcPath := filepath.Join(workDir, spec.SourceFile)
	if err := os.WriteFile(srcPath, []byte(code), 0o644); err != nil {
		return ExecutionResult{}, appErr.Wrapf(err, appErr.SandboxProvision, "write source file")
	}

	if spec.Compiled() {
		res, err := r.compile(ctx, spec, workDir)
		if err != nil {
			return ExecutionResult{}, err
		}
		if res != nil {
			return *res, nil
		}
	}

	return r.run(ctx, spec, workDir, input, timeLimitMs, memoryMB)
}

// compile returns a non-nil result only when compilation failed in a way the
// submitter owns.
func (r *Runner) compile(ctx context.Context, spec languages.Spec, workDir string) (*ExecutionResult, error) {
	argv, err := expandTemplate(spec.CompileCmdTpl, spec)
	if err != nil {
		return nil, err
	}
	res, err := r.eng.Run(ctx, RunSpec{
		Image:          spec.Image,
		Argv:           argv,
		WorkDir:        workDir,
		TimeLimitMs:    compileTimeLimitMs,
		MemoryMB:       compileMemoryMB,
		MaxOutputBytes: r.cfg.MaxOutputBytes,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxProvision, "compile step")
	}
	if res.TimedOut || res.ExitCode != 0 {
		out := res.Stderr
		if out == "" {
			out = res.Stdout
		}
		return &ExecutionResult{
			Verdict:  VerdictCompileError,
			ErrText:  strings.TrimSpace(out),
			ExitCode: res.ExitCode,
		}, nil
	}
	return nil, nil
}

func (r *Runner) run(ctx context.Context, spec languages.Spec, workDir, input string, timeLimitMs, memoryMB int64) (ExecutionResult, error) {
	argv, err := expandTemplate(spec.RunCmdTpl, spec)
	if err != nil {
		return ExecutionResult{}, err
	}
	res, err := r.eng.Run(ctx, RunSpec{
		Image:          spec.Image,
		Argv:           argv,
		WorkDir:        workDir,
		Stdin:          input,
		TimeLimitMs:    timeLimitMs,
		MemoryMB:       memoryMB,
		MaxOutputBytes: r.cfg.MaxOutputBytes,
	})
	if err != nil {
		return ExecutionResult{}, appErr.Wrapf(err, appErr.SandboxProvision, "run step")
	}

	out := ExecutionResult{
		Output:   res.Stdout,
		ErrText:  strings.TrimSpace(res.Stderr),
		ExitCode: res.ExitCode,
		TimeMs:   res.TimeMs,
	}
	switch {
	case res.TimedOut:
		out.Verdict = VerdictTimeLimit
		out.TimeMs = timeLimitMs
	case res.OomKilled:
		out.Verdict = VerdictMemoryLimit
		out.MemoryKB = memoryMB * 1024
	case res.ExitCode != 0:
		out.Verdict = VerdictRuntimeError
	case out.ErrText != "":
		// A clean exit that still wrote to stderr is treated as a runtime
		// fault; judged programs own stdout only.
		out.Verdict = VerdictRuntimeError
	default:
		out.Verdict = VerdictOK
	}
	return out, nil
}

const (
	compileTimeLimitMs = 30000
	compileMemoryMB    = 1024
)

// expandTemplate splits a command template shell-style and substitutes the
// {src} and {bin} placeholders with in-container paths.
func expandTemplate(tpl string, spec languages.Spec) ([]string, error) {
	parts, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "bad command template %q", tpl)
	}
	if len(parts) == 0 {
		return nil, appErr.Newf(appErr.InvalidParams, "empty command template for language %s", spec.ID)
	}
	argv := make([]string, len(parts))
	for i, p := range parts {
		p = strings.ReplaceAll(p, "{src}", containerWorkDir+"/"+spec.SourceFile)
		if spec.BinaryFile != "" {
			p = strings.ReplaceAll(p, "{bin}", containerWorkDir+"/"+spec.BinaryFile)
		}
		argv[i] = p
	}
	return argv, nil
}
