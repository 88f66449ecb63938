package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// ErrTmuxNotFound reports that the tmux executable is not installed or not
// on PATH. Callers treat it differently from a failing tmux command: there is
// no point retrying any bridge operation without the binary.
var ErrTmuxNotFound = errors.New("tmux executable not found in PATH")

// ExitError carries a failed tmux invocation together with its captured
// stderr.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("tmux %s exited with status %d", strings.Join(e.Args, " "), e.Code)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// Bridge issues control commands to the tmux server. Every operation is a
// synchronous shell-out; there is no structured IPC with tmux.
type Bridge struct {
	bin string
}

func NewBridge() *Bridge {
	return &Bridge{bin: "tmux"}
}

func (b *Bridge) run(args ...string) error {
	_, err := b.output(args...)
	return err
}

func (b *Bridge) output(args ...string) (string, error) {
	cmd := exec.Command(b.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrTmuxNotFound
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &ExitError{Args: args, Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("tmux %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}

// CurrentSession returns the name of the session this process is running
// inside. Only meaningful when invoked from within a tmux client.
func (b *Bridge) CurrentSession() (string, error) {
	out, err := b.output("display-message", "-p", "#S")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SessionExists reports whether a session with the given name exists.
func (b *Bridge) SessionExists(name string) bool {
	err := b.run("has-session", "-t", name)
	return err == nil
}

// NewSession creates a detached session. Width and height, when both
// positive, fix the initial terminal geometry.
func (b *Bridge) NewSession(name, windowName string, width, height int) error {
	args := []string{"new-session", "-d", "-s", name, "-n", windowName}
	if width > 0 && height > 0 {
		args = append(args, "-x", strconv.Itoa(width), "-y", strconv.Itoa(height))
	}
	return b.run(args...)
}

// SplitWindow splits a pane. size is a tmux -l size specifier such as "20%".
func (b *Bridge) SplitWindow(pane string, horizontal bool, size string) error {
	args := []string{"split-window"}
	if horizontal {
		args = append(args, "-h")
	} else {
		args = append(args, "-v")
	}
	if size != "" {
		args = append(args, "-l", size)
	}
	args = append(args, "-t", pane)
	return b.run(args...)
}

func (b *Bridge) SelectPane(pane string) error {
	return b.run("select-pane", "-t", pane)
}

// SelectWindow selects a window and reports whether it existed. A non-zero
// exit is how tmux signals a missing target, so that case is not an error.
func (b *Bridge) SelectWindow(target string) (bool, error) {
	err := b.run("select-window", "-t", target)
	if err == nil {
		return true, nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// CreateWindow creates a window in a session, optionally running a command
// in it and selecting it.
func (b *Bridge) CreateWindow(session, name, command string, selectIt bool) error {
	args := []string{"new-window"}
	if !selectIt {
		args = append(args, "-d")
	}
	args = append(args, "-t", session, "-n", name)
	if command != "" {
		args = append(args, command)
	}
	return b.run(args...)
}

// SendKeys submits literal text to a pane's input stream. This is the only
// mechanism for driving the coding-assistant process.
func (b *Bridge) SendKeys(pane, text string) error {
	return b.run("send-keys", "-t", pane, text)
}

// SendEnter taps the Enter key in a pane.
func (b *Bridge) SendEnter(pane string) error {
	return b.run("send-keys", "-t", pane, "Enter")
}

func (b *Bridge) SetGlobalOption(option, value string) error {
	return b.run("set-option", "-g", option, value)
}

func (b *Bridge) DetachClient(session string) error {
	return b.run("detach-client", "-s", session)
}

func (b *Bridge) KillSession(session string) error {
	return b.run("kill-session", "-t", session)
}

func (b *Bridge) RenameSession(oldName, newName string) error {
	return b.run("rename-session", "-t", oldName, newName)
}

// RunInNewWindowAndWait opens a window running command and blocks until the
// command exits. The command is wrapped so that it signals a uniquely named
// wait-for channel on completion; tmux wait-for then blocks this process
// until the signal arrives. Used for modal external-editor launches.
func (b *Bridge) RunInNewWindowAndWait(session, windowName, command string) error {
	channel := "aidermux-wait-" + uuid.NewString()
	wrapped := fmt.Sprintf("%s; tmux wait-for -S %s", command, channel)
	if err := b.CreateWindow(session, windowName, wrapped, true); err != nil {
		return err
	}
	return b.run("wait-for", channel)
}

// AttachSession replaces the current process image with a tmux client
// attached to the session. It only returns on failure.
func (b *Bridge) AttachSession(name string) error {
	path, err := exec.LookPath(b.bin)
	if err != nil {
		return ErrTmuxNotFound
	}
	return syscall.Exec(path, []string{b.bin, "attach-session", "-t", name}, os.Environ())
}
