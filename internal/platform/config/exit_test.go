package config_test

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/chatdeck/chatdeck/internal/platform/config"
)

// Exitf calls os.Exit, so the assertion runs against a child process
// re-invoking this test binary.
func TestExitf(t *testing.T) {
	if os.Getenv("CHATDECK_EXITF_CHILD") == "1" {
		config.Exitf("startup failed: %s", "missing token secret")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf$")
	cmd.Env = append(os.Environ(), "CHATDECK_EXITF_CHILD=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "startup failed: missing token secret") {
		t.Fatalf("expected message on stderr, got %q", out)
	}
}
