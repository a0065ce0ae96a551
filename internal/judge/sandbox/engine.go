package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// RunSpec describes one isolated process invocation.
type RunSpec struct {
	Image          string
	Argv           []string
	WorkDir        string
	Stdin          string
	TimeLimitMs    int64
	MemoryMB       int64
	MaxOutputBytes int64
}

// RunResult is the raw process outcome. TimeMs is wall clock measured by the
// engine, never by the sandboxed process.
type RunResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	TimeMs    int64
	TimedOut  bool
	OomKilled bool
}

// Engine runs one RunSpec to completion. Implementations own isolation;
// callers own verdicts.
type Engine interface {
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
}

const (
	containerWorkDir = "/box"
	// Exit code the container runtime reports for an oom-killed process.
	oomExitCode = 137
	// Slack on top of the judged time limit so the runtime's own startup
	// cost is not billed to the submission.
	wallClockGraceMs = 2000
)

// EngineConfig holds container engine settings.
type EngineConfig struct {
	Binary         string  `yaml:"binary"`
	CPUs           float64 `yaml:"cpus"`
	PIDsLimit      int     `yaml:"pidsLimit"`
	MaxOutputBytes int64   `yaml:"maxOutputBytes"`
}

// ContainerEngine executes run specs inside a network-disabled container
// with hard memory and CPU caps.
type ContainerEngine struct {
	cfg EngineConfig
}

// NewContainerEngine creates an engine with defaults applied.
func NewContainerEngine(cfg EngineConfig) *ContainerEngine {
	if cfg.Binary == "" {
		cfg.Binary = "docker"
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = 1.0
	}
	if cfg.PIDsLimit <= 0 {
		cfg.PIDsLimit = 64
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	return &ContainerEngine{cfg: cfg}
}

// Run executes the spec under a hard wall-clock deadline. The deadline is
// enforced at the process level, independent of the judged program.
func (e *ContainerEngine) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if len(spec.Argv) == 0 {
		return RunResult{}, fmt.Errorf("empty command")
	}

	deadline := time.Duration(spec.TimeLimitMs+wallClockGraceMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	argv := e.containerArgv(spec)
	cmd := exec.Command(argv[0], argv[1:]...)
	// New process group so a timeout kill takes the whole container client
	// tree down, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	maxOut := spec.MaxOutputBytes
	if maxOut <= 0 {
		maxOut = e.cfg.MaxOutputBytes
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := newLimitedWriter(&stdoutBuf, maxOut)
	stderr := newLimitedWriter(&stderrBuf, maxOut)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("start sandbox process: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var runErr error
	timedOut := false
	select {
	case runErr = <-done:
	case <-runCtx.Done():
		timedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		runErr = <-done
	}
	elapsed := time.Since(start)

	res := RunResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		TimeMs:   elapsed.Milliseconds(),
		TimedOut: timedOut,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.OomKilled = res.ExitCode == oomExitCode
	if runErr != nil && !timedOut && cmd.ProcessState == nil {
		return res, fmt.Errorf("sandbox process failed: %w", runErr)
	}
	return res, nil
}

func (e *ContainerEngine) containerArgv(spec RunSpec) []string {
	argv := []string{
		e.cfg.Binary, "run", "--rm", "-i",
		"--network", "none",
		"--cpus", fmt.Sprintf("%g", e.cfg.CPUs),
		"--pids-limit", fmt.Sprintf("%d", e.cfg.PIDsLimit),
	}
	if spec.MemoryMB > 0 {
		mem := fmt.Sprintf("%dm", spec.MemoryMB)
		argv = append(argv, "--memory", mem, "--memory-swap", mem)
	}
	argv = append(argv,
		"-v", spec.WorkDir+":"+containerWorkDir,
		"-w", containerWorkDir,
		spec.Image,
	)
	return append(argv, spec.Argv...)
}

// limitedWriter stops writing after limit bytes but keeps draining so the
// child never blocks on a full pipe.
type limitedWriter struct {
	w        io.Writer
	limit    int64
	written  int64
	mu       sync.Mutex
	exceeded bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	remaining := lw.limit - lw.written
	if remaining <= 0 {
		lw.exceeded = true
		return len(p), nil
	}
	writeLen := int64(len(p))
	if writeLen > remaining {
		writeLen = remaining
		lw.exceeded = true
	}
	n, err := lw.w.Write(p[:writeLen])
	lw.written += int64(n)
	if err != nil {
		return n, err
	}
	return len(p), nil
}
