package languages

const (
	defaultTimeLimitMs = 2000
	defaultMemoryMB    = 256
)

// Defaults returns the built-in language table. A yaml language section in
// the service config replaces it entirely when present.
func Defaults() []Spec {
	return []Spec{
		{
			ID:            "python",
			Image:         "python:3.12-alpine",
			SourceFile:    "main.py",
			RunCmdTpl:     "python3 {src}",
			TimeLimitMs:   defaultTimeLimitMs,
			MemoryMB:      defaultMemoryMB,
			ForbiddenPatterns: []string{
				`import\s+os\b`,
				`import\s+subprocess\b`,
				`import\s+socket\b`,
				`from\s+os\s+import`,
				`__import__\s*\(`,
				`\beval\s*\(`,
				`\bexec\s*\(`,
				`\bopen\s*\(`,
			},
		},
		{
			ID:            "cpp",
			Image:         "gcc:13",
			SourceFile:    "main.cpp",
			BinaryFile:    "main",
			CompileCmdTpl: "g++ -Wall -O2 -std=c++17 {src} -o {bin}",
			RunCmdTpl:     "{bin}",
			TimeLimitMs:   defaultTimeLimitMs,
			MemoryMB:      defaultMemoryMB,
			ForbiddenPatterns: []string{
				`\bsystem\s*\(`,
				`\bpopen\s*\(`,
				`\bfork\s*\(`,
				`\bexecve?\s*\(`,
				`#include\s*<sys/socket\.h>`,
			},
		},
		{
			ID:            "go",
			Image:         "golang:1.24-alpine",
			SourceFile:    "main.go",
			BinaryFile:    "main",
			CompileCmdTpl: "go build -o {bin} {src}",
			RunCmdTpl:     "{bin}",
			TimeLimitMs:   defaultTimeLimitMs,
			MemoryMB:      defaultMemoryMB,
			ForbiddenPatterns: []string{
				`"os/exec"`,
				`"net"`,
				`"net/http"`,
				`"syscall"`,
				`"unsafe"`,
			},
		},
		{
			ID:            "java",
			Image:         "eclipse-temurin:21-jdk-alpine",
			SourceFile:    "Main.java",
			BinaryFile:    "Main.class",
			CompileCmdTpl: "javac {src}",
			RunCmdTpl:     "java -cp . Main",
			TimeLimitMs:   defaultTimeLimitMs * 2,
			MemoryMB:      defaultMemoryMB * 2,
			ForbiddenPatterns: []string{
				`Runtime\s*\.\s*getRuntime`,
				`ProcessBuilder`,
				`java\.net\.`,
				`java\.io\.File\b`,
			},
		},
		{
			ID:          "javascript",
			Image:       "node:22-alpine",
			SourceFile:  "main.js",
			RunCmdTpl:   "node {src}",
			TimeLimitMs: defaultTimeLimitMs,
			MemoryMB:    defaultMemoryMB,
			ForbiddenPatterns: []string{
				`require\s*\(\s*['"]child_process['"]`,
				`require\s*\(\s*['"]fs['"]`,
				`require\s*\(\s*['"]net['"]`,
				`\beval\s*\(`,
			},
		},
	}
}
