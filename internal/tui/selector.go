package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbletea"
)

// ValidateSessionName enforces tmux-safe session names: non-empty, only
// letters, digits and hyphens, starting and ending with a letter or digit.
func ValidateSessionName(name string) error {
	if name == "" {
		return errors.New("session name cannot be empty")
	}
	if strings.ContainsAny(name, " \t") {
		return errors.New("session name cannot contain spaces")
	}
	for _, r := range name {
		if !isAlnum(r) && r != '-' {
			return fmt.Errorf("session name contains invalid character %q", r)
		}
	}
	if !isAlnum(rune(name[0])) || !isAlnum(rune(name[len(name)-1])) {
		return errors.New("session name must start and end with a letter or digit")
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

type selectorState int

const (
	selStatePick selectorState = iota
	selStateNew
	selStateRename
)

// SessionSelector is the pre-attach screen: pick a live managed session,
// create a new one, or rename an existing one. Renames are recorded and
// applied to tmux and config by the caller after the program exits.
type SessionSelector struct {
	theme    Theme
	state    selectorState
	sessions []string
	cursor   int
	input    textinput.Model
	notice   string

	renameFrom string
	done       bool
	width      int

	Choice    string
	IsNew     bool
	Cancelled bool
	Renames   map[string]string
}

func NewSessionSelector(theme Theme, sessions []string) *SessionSelector {
	input := textinput.New()
	input.Placeholder = "session-name"
	input.CharLimit = 64
	return &SessionSelector{
		theme:    theme,
		sessions: sessions,
		input:    input,
		Renames:  map[string]string{},
	}
}

func (s *SessionSelector) Init() tea.Cmd {
	return textinput.Blink
}

// newRowIndex is the synthetic "create new session" entry after the list.
func (s *SessionSelector) newRowIndex() int {
	return len(s.sessions)
}

func (s *SessionSelector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		return s, nil
	case tea.KeyMsg:
		switch s.state {
		case selStatePick:
			return s.updatePick(msg)
		case selStateNew, selStateRename:
			return s.updateInput(msg)
		}
	}
	return s, nil
}

func (s *SessionSelector) updatePick(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		s.Cancelled = true
		s.done = true
		return s, tea.Quit
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < s.newRowIndex() {
			s.cursor++
		}
	case "r":
		if s.cursor < len(s.sessions) {
			s.state = selStateRename
			s.renameFrom = s.sessions[s.cursor]
			s.input.SetValue(s.renameFrom)
			s.input.Focus()
			s.notice = ""
		}
	case "n":
		s.beginNew()
	case "enter":
		if s.cursor == s.newRowIndex() {
			s.beginNew()
			break
		}
		s.Choice = s.sessions[s.cursor]
		s.done = true
		return s, tea.Quit
	}
	return s, nil
}

func (s *SessionSelector) beginNew() {
	s.state = selStateNew
	s.input.SetValue("")
	s.input.Focus()
	s.notice = ""
}

func (s *SessionSelector) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		s.Cancelled = true
		s.done = true
		return s, tea.Quit
	case "esc":
		s.state = selStatePick
		s.notice = ""
		return s, nil
	case "enter":
		name := strings.TrimSpace(s.input.Value())
		if err := ValidateSessionName(name); err != nil {
			s.notice = err.Error()
			return s, nil
		}
		if s.hasSession(name) && (s.state == selStateNew || name != s.renameFrom) {
			s.notice = fmt.Sprintf("session %q already exists", name)
			return s, nil
		}
		if s.state == selStateRename {
			if name != s.renameFrom {
				s.Renames[s.renameFrom] = name
				s.sessions[s.cursor] = name
			}
			s.state = selStatePick
			s.notice = ""
			return s, nil
		}
		s.Choice = name
		s.IsNew = true
		s.done = true
		return s, tea.Quit
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *SessionSelector) hasSession(name string) bool {
	for _, existing := range s.sessions {
		if existing == name {
			return true
		}
	}
	return false
}

func (s *SessionSelector) View() string {
	if s.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(s.theme.Title.Render("aidermux sessions"))
	b.WriteString("\n\n")

	switch s.state {
	case selStatePick:
		for i, name := range s.sessions {
			marker := "  "
			style := s.theme.Row
			if i == s.cursor {
				marker = "> "
				style = s.theme.Selected
			}
			b.WriteString(marker + style.Render(name) + "\n")
		}
		marker := "  "
		style := s.theme.Row
		if s.cursor == s.newRowIndex() {
			marker = "> "
			style = s.theme.Selected
		}
		b.WriteString(marker + style.Render("[ create new session ]") + "\n")
		b.WriteString("\n" + s.theme.Footer.Render("enter: select  n: new  r: rename  q: quit"))
	case selStateNew:
		b.WriteString(s.theme.Subtitle.Render("New session name") + "\n")
		b.WriteString(s.theme.InputBox.Render(s.input.View()) + "\n")
		b.WriteString(s.theme.Footer.Render("enter: create  esc: back"))
	case selStateRename:
		b.WriteString(s.theme.Subtitle.Render(fmt.Sprintf("Rename %q", s.renameFrom)) + "\n")
		b.WriteString(s.theme.InputBox.Render(s.input.View()) + "\n")
		b.WriteString(s.theme.Footer.Render("enter: rename  esc: back"))
	}

	if s.notice != "" {
		b.WriteString("\n" + s.theme.Notice.Render(s.notice))
	}
	return b.String()
}
