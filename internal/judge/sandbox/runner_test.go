package sandbox

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"gavel/internal/judge/languages"
)

type fakeEngine struct {
	results []RunResult
	errs    []error
	calls   []RunSpec
}

func (f *fakeEngine) Run(_ context.Context, spec RunSpec) (RunResult, error) {
	i := len(f.calls)
	f.calls = append(f.calls, spec)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], err
	}
	return RunResult{}, err
}

func pythonSpec() languages.Spec {
	return languages.Spec{
		ID:          "python",
		Image:       "python:3.12-alpine",
		SourceFile:  "main.py",
		RunCmdTpl:   "python3 {src}",
		TimeLimitMs: 2000,
		MemoryMB:    256,
	}
}

func cppSpec() languages.Spec {
	return languages.Spec{
		ID:            "cpp",
		Image:         "gcc:13",
		SourceFile:    "main.cpp",
		BinaryFile:    "main",
		CompileCmdTpl: "g++ -O2 {src} -o {bin}",
		RunCmdTpl:     "{bin}",
		TimeLimitMs:   2000,
		MemoryMB:      256,
	}
}

func newTestRunner(t *testing.T, eng Engine) *Runner {
	t.Helper()
	r, err := NewRunner(eng, Config{WorkRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestExecuteInterpretedOK(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{ExitCode: 0, Stdout: "42\n", TimeMs: 13}}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "print(42)", pythonSpec(), "in", 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictOK {
		t.Fatalf("verdict = %s, want OK", res.Verdict)
	}
	if res.Output != "42\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(eng.calls))
	}
	call := eng.calls[0]
	if call.Stdin != "in" {
		t.Fatalf("stdin = %q", call.Stdin)
	}
	if got := strings.Join(call.Argv, " "); got != "python3 /box/main.py" {
		t.Fatalf("argv = %q", got)
	}
	if call.TimeLimitMs != 2000 || call.MemoryMB != 256 {
		t.Fatalf("limits = %d/%d, want spec defaults", call.TimeLimitMs, call.MemoryMB)
	}
}

func TestExecuteCompileFailureShortCircuits(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{ExitCode: 1, Stderr: "main.cpp:1: error: expected ';'\n"}}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "int main(){", cppSpec(), "", 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictCompileError {
		t.Fatalf("verdict = %s, want COMPILE_ERROR", res.Verdict)
	}
	if !strings.Contains(res.ErrText, "expected ';'") {
		t.Fatalf("err text = %q", res.ErrText)
	}
	if len(eng.calls) != 1 {
		t.Fatalf("run step executed after compile failure: %d calls", len(eng.calls))
	}
}

func TestExecuteCompiledRunsBinary(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{
		{ExitCode: 0},
		{ExitCode: 0, Stdout: "ok\n", TimeMs: 5},
	}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "int main(){}", cppSpec(), "", 1000, 128)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictOK {
		t.Fatalf("verdict = %s, want OK", res.Verdict)
	}
	if len(eng.calls) != 2 {
		t.Fatalf("engine calls = %d, want compile+run", len(eng.calls))
	}
	if got := strings.Join(eng.calls[1].Argv, " "); got != "/box/main" {
		t.Fatalf("run argv = %q", got)
	}
	if eng.calls[1].TimeLimitMs != 1000 || eng.calls[1].MemoryMB != 128 {
		t.Fatalf("caller limits not honored: %d/%d", eng.calls[1].TimeLimitMs, eng.calls[1].MemoryMB)
	}
}

func TestExecuteTimeoutVerdict(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{TimedOut: true, ExitCode: -1, TimeMs: 4100}}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "while True: pass", pythonSpec(), "", 2000, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictTimeLimit {
		t.Fatalf("verdict = %s, want TIME_LIMIT", res.Verdict)
	}
	if res.TimeMs != 2000 {
		t.Fatalf("reported time = %d, want clamp to limit", res.TimeMs)
	}
}

func TestExecuteOomVerdict(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{ExitCode: 137}}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "x = 'a' * 10**10", pythonSpec(), "", 0, 256)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictMemoryLimit {
		t.Fatalf("verdict = %s, want MEMORY_LIMIT", res.Verdict)
	}
}

func TestExecuteOomVerdictFromOomFlag(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{ExitCode: 137, OomKilled: true}}}
	r := newTestRunner(t, eng)

	res, err := r.Execute(context.Background(), "big", pythonSpec(), "", 0, 64)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != VerdictMemoryLimit {
		t.Fatalf("verdict = %s, want MEMORY_LIMIT", res.Verdict)
	}
	if res.MemoryKB != 64*1024 {
		t.Fatalf("memory = %d KB", res.MemoryKB)
	}
}

func TestExecuteRuntimeErrorVerdicts(t *testing.T) {
	tests := []struct {
		name string
		res  RunResult
	}{
		{"nonzero exit", RunResult{ExitCode: 2, Stderr: "Traceback (most recent call last)"}},
		{"stderr with clean exit", RunResult{ExitCode: 0, Stdout: "1\n", Stderr: "warning: deprecated"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := &fakeEngine{results: []RunResult{tc.res}}
			r := newTestRunner(t, eng)
			res, err := r.Execute(context.Background(), "code", pythonSpec(), "", 0, 0)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Verdict != VerdictRuntimeError {
				t.Fatalf("verdict = %s, want RUNTIME_ERROR", res.Verdict)
			}
		})
	}
}

func TestExecuteCleansWorkDir(t *testing.T) {
	eng := &fakeEngine{results: []RunResult{{ExitCode: 0, Stdout: "ok"}}}
	root := t.TempDir()
	r, err := NewRunner(eng, Config{WorkRoot: root})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if _, err := r.Execute(context.Background(), "print(1)", pythonSpec(), "", 0, 0); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("work dirs left behind: %d entries", len(entries))
	}
}

func TestExpandTemplate(t *testing.T) {
	argv, err := expandTemplate("g++ -O2 {src} -o {bin}", cppSpec())
	if err != nil {
		t.Fatalf("expandTemplate: %v", err)
	}
	want := []string{"g++", "-O2", "/box/main.cpp", "-o", "/box/main"}
	if strings.Join(argv, "\x00") != strings.Join(want, "\x00") {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
}

func TestLimitedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	lw := newLimitedWriter(&buf, 5)

	n, err := lw.Write([]byte("hello world"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 11 {
		t.Fatalf("n = %d, want full consume", n)
	}
	if buf.String() != "hello" {
		t.Fatalf("buffered = %q", buf.String())
	}
	if !lw.exceeded {
		t.Fatal("exceeded flag not set")
	}
}
