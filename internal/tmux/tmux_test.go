package tmux

import (
	"errors"
	"strings"
	"testing"
)

func TestExitError_IncludesArgsAndStderr(t *testing.T) {
	err := &ExitError{Args: []string{"has-session", "-t", "work"}, Code: 1, Stderr: "can't find session: work\n"}
	msg := err.Error()
	if !strings.Contains(msg, "has-session -t work") {
		t.Fatalf("error message missing args: %q", msg)
	}
	if !strings.Contains(msg, "status 1") {
		t.Fatalf("error message missing exit code: %q", msg)
	}
	if !strings.Contains(msg, "can't find session") {
		t.Fatalf("error message missing stderr: %q", msg)
	}
}

func TestRun_MissingBinaryIsNotFound(t *testing.T) {
	b := &Bridge{bin: "aidermux-definitely-not-a-real-binary"}
	err := b.run("has-session", "-t", "x")
	if !errors.Is(err, ErrTmuxNotFound) {
		t.Fatalf("err = %v, want ErrTmuxNotFound", err)
	}
}
