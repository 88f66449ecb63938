package planner

import (
	"fmt"
	"os/exec"
	"strings"
)

// RepoMapMethod selects the external tool that produces the repository map.
type RepoMapMethod string

const (
	RepoMapAider   RepoMapMethod = "aider"
	RepoMapRepomix RepoMapMethod = "repomix"
)

// RepomixAvailable reports whether the repomix binary is on PATH.
func RepomixAvailable() bool {
	_, err := exec.LookPath("repomix")
	return err == nil
}

// CaptureRepoMap runs the selected tool and returns its map text. Failures
// come back as an inline error string that lands in the prompt's map slot;
// a broken map tool should degrade the prompt, not abort the generation.
func CaptureRepoMap(method RepoMapMethod) string {
	switch method {
	case RepoMapRepomix:
		out, err := exec.Command("repomix", "--stdout").Output()
		if err != nil {
			return fmt.Sprintf("Error running 'repomix --stdout': %v", err)
		}
		return string(out)
	default:
		out, err := exec.Command("aider", "--show-repo-map").Output()
		if err != nil {
			return fmt.Sprintf("Error running 'aider --show-repo-map': %v", err)
		}
		return afterFirstBlankLine(string(out))
	}
}

// afterFirstBlankLine drops aider's banner: everything up to and including
// the first whitespace-only line. No blank line means no map content.
func afterFirstBlankLine(s string) string {
	offset := 0
	for offset < len(s) {
		end := strings.IndexByte(s[offset:], '\n')
		if end < 0 {
			end = len(s) - offset
		} else {
			end++
		}
		line := s[offset : offset+end]
		if strings.TrimSpace(line) == "" {
			return s[offset+end:]
		}
		offset += end
	}
	return ""
}
