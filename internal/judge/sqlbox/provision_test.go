package sqlbox

import (
	"strings"
	"testing"
)

func TestRunArgsPublishLoopbackOnly(t *testing.T) {
	p := NewMySQLProvisioner(ProvisionerConfig{})
	args := p.runArgs("secret", "judge_db")

	joined := " " + strings.Join(args, " ") + " "
	if !strings.Contains(joined, " -p 127.0.0.1::3306 ") {
		t.Fatalf("args = %q, server port must bind to loopback", joined)
	}
	if strings.Contains(joined, " -P ") {
		t.Fatalf("args = %q, must not publish on all interfaces", joined)
	}
	if !strings.Contains(joined, " --memory 512m ") || !strings.Contains(joined, " --cpus 1 ") {
		t.Fatalf("args = %q, resource caps missing", joined)
	}
	if args[len(args)-1] != "--max-connections=8" {
		t.Fatalf("args = %v, connection cap must follow the image", args)
	}
}

func TestRunArgsHonorConfiguredLimits(t *testing.T) {
	p := NewMySQLProvisioner(ProvisionerConfig{MemoryMB: 256, CPUs: 0.5, MaxConnections: 4})
	args := p.runArgs("secret", "judge_db")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--memory 256m") || !strings.Contains(joined, "--cpus 0.5") {
		t.Fatalf("args = %q", joined)
	}
	if args[len(args)-1] != "--max-connections=4" {
		t.Fatalf("args = %v", args)
	}
}
