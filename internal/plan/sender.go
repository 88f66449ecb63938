package plan

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"aidermux/internal/logging"
)

// Action is the Aider slash-command family a section is sent with.
type Action string

const (
	ActionAsk       Action = "ask"
	ActionCode      Action = "code"
	ActionArchitect Action = "architect"
)

// ErrSectionOutOfRange reports an ordinal outside the parsed section list.
// When it is returned no keystroke has been sent.
var ErrSectionOutOfRange = errors.New("section index out of range")

// Keystroker is the slice of the tmux bridge the sender needs. Keeping it
// narrow isolates the lossy keystroke-injection transport so a structured
// receiver could replace it without touching the parsing.
type Keystroker interface {
	SendKeys(pane, text string) error
	SendEnter(pane string) error
}

// Progress persists the per-(session, plan) watermark.
type Progress interface {
	SetLastStep(session, plan string, step int)
}

// Sender drives one plan section at a time into a live Aider process running
// in a tmux pane. Keystroke sends are strictly sequential; the only pacing is
// the settle delay before the closing tag, a best-effort heuristic with no
// acknowledgment from the receiving process.
type Sender struct {
	keys     Keystroker
	progress Progress
	log      *logging.Logger

	Pane    string
	Session string
	Delay   time.Duration

	// fileExists and sleep are swapped out by tests.
	fileExists func(path string) bool
	sleep      func(time.Duration)
	tagID      func() int
}

func NewSender(keys Keystroker, progress Progress, log *logging.Logger) *Sender {
	return &Sender{
		keys:     keys,
		progress: progress,
		log:      log,
		Delay:    200 * time.Millisecond,
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.Mode().IsRegular()
		},
		sleep: time.Sleep,
		tagID: func() int { return 10000000 + rand.Intn(90000000) },
	}
}

// SendSection transmits section index of the given working-copy content with
// action, optionally preceded by a /reset. On success the watermark for
// (session, plan) is advanced to index. Any bridge failure aborts the
// remaining steps and leaves the watermark unchanged; there is no retry.
func (s *Sender) SendSection(content, planName string, index int, action Action, reset bool) error {
	sections := ParseSections(content)
	if index < 0 || index >= len(sections) {
		return fmt.Errorf("%w: %d of %d", ErrSectionOutOfRange, index, len(sections))
	}

	body := sections[index].Body(content)
	filesChunk, promptChunk := SplitChunks(body)

	// A section with a single chunk and no bullet paths in it has no files
	// block at all; the chunk is the prompt.
	candidates := ExtractFilePaths(filesChunk)
	if promptChunk == "" && len(candidates) == 0 {
		promptChunk = filesChunk
	}

	if reset {
		if err := s.sendLine("/reset"); err != nil {
			return fmt.Errorf("send /reset: %w", err)
		}
	}

	existing := s.existingFiles(candidates)
	if len(existing) > 0 {
		addCmd := "/add " + strings.Join(existing, " ")
		if err := s.sendLine(addCmd); err != nil {
			return fmt.Errorf("send /add: %w", err)
		}
		s.log.Info("added files to aider", map[string]interface{}{"files": existing})
	}

	prompt := strings.TrimSpace(promptChunk)
	prefix := "/" + string(action)

	if prompt == "" {
		// Nothing multi-line to frame; send the bare directive.
		if err := s.sendLine(prefix); err != nil {
			return fmt.Errorf("send %s: %w", prefix, err)
		}
		s.recordStep(planName, index)
		return nil
	}

	// Aider is line-oriented and cannot tell a multi-line paste from a
	// submission, so the prompt is framed in a randomly tagged delimiter
	// pair with a settle delay before the closing tag. Best effort only:
	// there is no acknowledgment that the block was accepted as one input.
	id := s.tagID()
	openingTag := fmt.Sprintf("{tag%d", id)
	closingTag := fmt.Sprintf("tag%d}", id)

	if err := s.sendLine(openingTag); err != nil {
		return fmt.Errorf("send opening tag: %w", err)
	}
	if err := s.sendLine(prefix + " " + prompt); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	s.sleep(s.Delay)
	if err := s.sendLine(closingTag); err != nil {
		return fmt.Errorf("send closing tag: %w", err)
	}

	s.recordStep(planName, index)
	return nil
}

func (s *Sender) sendLine(text string) error {
	if err := s.keys.SendKeys(s.Pane, text); err != nil {
		return err
	}
	return s.keys.SendEnter(s.Pane)
}

// existingFiles keeps only candidates that are regular files relative to the
// working directory; missing paths are logged and dropped, never blocking
// the action.
func (s *Sender) existingFiles(candidates []string) []string {
	var existing []string
	for _, p := range candidates {
		if s.fileExists(p) {
			existing = append(existing, p)
			continue
		}
		s.log.Warn("file from plan section does not exist, skipping", map[string]interface{}{"path": p})
	}
	return existing
}

func (s *Sender) recordStep(planName string, index int) {
	if s.Session == "" || planName == "" {
		return
	}
	s.progress.SetLastStep(s.Session, planName, index)
	s.log.Info("recorded last sent section", map[string]interface{}{"plan": planName, "section": index})
}
