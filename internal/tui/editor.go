package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbletea"
)

// SectionEditor edits one plan section inline. It is seeded with the exact
// section substring and hands the edited text back for the caller to splice
// into the working copy. Edits that remove the "## " header are accepted.
type SectionEditor struct {
	theme  Theme
	header string
	ta     textarea.Model
	done   bool

	Cancelled bool
	Result    string
}

func NewSectionEditor(theme Theme, header, content string) *SectionEditor {
	ta := textarea.New()
	ta.SetValue(content)
	ta.Focus()
	return &SectionEditor{theme: theme, header: header, ta: ta}
}

func (e *SectionEditor) Init() tea.Cmd {
	return textarea.Blink
}

func (e *SectionEditor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.ta.SetWidth(msg.Width - 4)
		if msg.Height > 6 {
			e.ta.SetHeight(msg.Height - 5)
		}
		return e, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			e.Cancelled = true
			e.done = true
			return e, tea.Quit
		case "ctrl+s":
			e.Result = e.ta.Value()
			e.done = true
			return e, tea.Quit
		}
		var cmd tea.Cmd
		e.ta, cmd = e.ta.Update(msg)
		return e, cmd
	}
	return e, nil
}

func (e *SectionEditor) View() string {
	if e.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.theme.Title.Render("Edit section: "+e.header) + "\n\n")
	b.WriteString(e.ta.View() + "\n\n")
	b.WriteString(e.theme.Footer.Render("ctrl+s: save  esc: cancel"))
	return b.String()
}
