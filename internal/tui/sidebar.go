package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbletea"

	"aidermux/internal/config"
	"aidermux/internal/logging"
	"aidermux/internal/plan"
)

// paneBridge is the slice of the tmux bridge the sidebar drives.
type paneBridge interface {
	SendKeys(pane, text string) error
	SendEnter(pane string) error
	SelectWindow(target string) (bool, error)
	CreateWindow(session, name, command string, selectIt bool) error
	DetachClient(session string) error
	KillSession(session string) error
	RunInNewWindowAndWait(session, window, command string) error
}

const planGenWindow = "aidermux-plan-gen"

type sidebarState int

const (
	sideStateMain sidebarState = iota
	sideStatePlanPick
	sideStateEdit
	sideStateConfirmDestroy
)

type externalEditDoneMsg struct {
	index int
	path  string
	err   error
}

// Sidebar is the control pane rendered next to the Aider pane. It owns plan
// selection, per-section send/edit actions, and session lifecycle buttons.
type Sidebar struct {
	theme  Theme
	cfg    *config.Store
	bridge paneBridge
	store  *plan.Store
	sender *plan.Sender
	log    *logging.Logger

	pane    string
	session string

	state    sidebarState
	planName string
	content  string
	sections []plan.Section

	planNames  []string
	planCursor int
	cursor     int
	useReset   bool
	notice     string

	editor    *SectionEditor
	editIndex int

	width  int
	height int
	done   bool
}

func NewSidebar(theme Theme, cfg *config.Store, bridge paneBridge, store *plan.Store, sender *plan.Sender, log *logging.Logger, session, pane string) *Sidebar {
	s := &Sidebar{
		theme:    theme,
		cfg:      cfg,
		bridge:   bridge,
		store:    store,
		sender:   sender,
		log:      log,
		pane:     pane,
		session:  session,
		useReset: true,
	}
	if active := cfg.ActivePlan(session); active != "" {
		s.selectPlan(active)
	}
	return s
}

func (s *Sidebar) Init() tea.Cmd {
	return nil
}

// selectPlan refreshes the working copy from the immutable original and
// re-parses sections. Called on startup for the remembered active plan and on
// every pick from the plan list.
func (s *Sidebar) selectPlan(name string) {
	content, err := s.store.RefreshWorkingCopy(name)
	if err != nil {
		s.notice = fmt.Sprintf("could not load plan %q: %v", name, err)
		return
	}
	s.planName = name
	s.content = content
	s.sections = plan.ParseSections(content)
	s.cursor = 0
	s.cfg.SetActivePlan(s.session, name)
	s.notice = ""
}

// reload re-reads the working copy without resetting it to the original.
func (s *Sidebar) reload() bool {
	content, err := s.store.ReadWorkingCopy(s.planName)
	if err != nil {
		s.notice = fmt.Sprintf("could not read working copy: %v", err)
		return false
	}
	s.content = content
	s.sections = plan.ParseSections(content)
	return true
}

func (s *Sidebar) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		if s.editor != nil {
			return s.delegateEdit(msg)
		}
		return s, nil

	case externalEditDoneMsg:
		s.finishExternalEdit(msg)
		return s, nil

	case tea.KeyMsg:
		switch s.state {
		case sideStateMain:
			return s.updateMain(msg)
		case sideStatePlanPick:
			return s.updatePlanPick(msg)
		case sideStateEdit:
			return s.delegateEdit(msg)
		case sideStateConfirmDestroy:
			return s.updateConfirmDestroy(msg)
		}
	}

	if s.state == sideStateEdit {
		return s.delegateEdit(msg)
	}
	return s, nil
}

func (s *Sidebar) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		s.done = true
		return s, tea.Quit
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(s.sections)-1 {
			s.cursor++
		}
	case "p":
		s.planNames = s.store.List()
		s.planCursor = 0
		s.state = sideStatePlanPick
	case "r":
		s.useReset = !s.useReset
	case "a":
		s.sendSection(plan.ActionAsk)
	case "c":
		s.sendSection(plan.ActionCode)
	case "t":
		s.sendSection(plan.ActionArchitect)
	case "e":
		s.beginInlineEdit()
	case "E":
		return s, s.beginExternalEdit()
	case "A":
		s.startAider()
	case "g":
		s.openPlanGenerator()
	case "d":
		s.detach()
		s.done = true
		return s, tea.Quit
	case "X":
		s.state = sideStateConfirmDestroy
	}
	return s, nil
}

func (s *Sidebar) updatePlanPick(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Last row is the refresh entry.
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		s.state = sideStateMain
	case "up", "k":
		if s.planCursor > 0 {
			s.planCursor--
		}
	case "down", "j":
		if s.planCursor < len(s.planNames) {
			s.planCursor++
		}
	case "enter":
		if s.planCursor == len(s.planNames) {
			s.planNames = s.store.List()
			s.planCursor = 0
			break
		}
		s.selectPlan(s.planNames[s.planCursor])
		s.state = sideStateMain
	}
	return s, nil
}

func (s *Sidebar) updateConfirmDestroy(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		s.cfg.RemoveSession(s.session)
		if err := s.bridge.KillSession(s.session); err != nil {
			s.log.Error("could not kill session", map[string]interface{}{"session": s.session, "error": err.Error()})
		}
		s.done = true
		return s, tea.Quit
	case "n", "esc":
		s.state = sideStateMain
	}
	return s, nil
}

func (s *Sidebar) delegateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if s.editor == nil {
		s.state = sideStateMain
		return s, nil
	}
	model, cmd := s.editor.Update(msg)
	s.editor = model.(*SectionEditor)
	if !s.editor.done {
		return s, cmd
	}
	if !s.editor.Cancelled {
		s.spliceEdit(s.editIndex, s.editor.Result)
	}
	s.editor = nil
	s.state = sideStateMain
	return s, nil
}

func (s *Sidebar) sendSection(action plan.Action) {
	if s.planName == "" {
		s.notice = "no plan selected"
		return
	}
	if !s.reload() {
		return
	}
	if err := s.sender.SendSection(s.content, s.planName, s.cursor, action, s.useReset); err != nil {
		s.notice = fmt.Sprintf("send failed: %v", err)
		s.log.Error("section send failed", map[string]interface{}{"plan": s.planName, "section": s.cursor, "error": err.Error()})
		return
	}
	s.notice = fmt.Sprintf("sent section %d (%s)", s.cursor, action)
}

func (s *Sidebar) beginInlineEdit() {
	if s.planName == "" || !s.reload() {
		return
	}
	if s.cursor >= len(s.sections) {
		return
	}
	section := s.sections[s.cursor]
	s.editIndex = s.cursor
	s.editor = NewSectionEditor(s.theme, section.Title, section.Span(s.content))
	s.state = sideStateEdit
}

// beginExternalEdit hands the section to the configured editor in a dedicated
// tmux window and splices the file back when the editor exits.
func (s *Sidebar) beginExternalEdit() tea.Cmd {
	editorCmd := s.cfg.TextEditor()
	if editorCmd == "" {
		s.notice = "text_editor is not configured"
		return nil
	}
	if s.planName == "" || !s.reload() {
		return nil
	}
	if s.cursor >= len(s.sections) {
		return nil
	}
	section := s.sections[s.cursor]
	path := filepath.Join(os.TempDir(), fmt.Sprintf("aidermux-section-%d.md", s.cursor))
	if err := os.WriteFile(path, []byte(section.Span(s.content)), 0o644); err != nil {
		s.notice = fmt.Sprintf("could not stage section for editing: %v", err)
		return nil
	}
	index := s.cursor
	session := s.session
	bridge := s.bridge
	command := fmt.Sprintf("%s %s", editorCmd, path)
	return func() tea.Msg {
		return externalEditDoneMsg{index: index, path: path, err: bridge.RunInNewWindowAndWait(session, "aidermux-edit", command)}
	}
}

func (s *Sidebar) finishExternalEdit(msg externalEditDoneMsg) {
	defer os.Remove(msg.path)
	if msg.err != nil {
		s.notice = fmt.Sprintf("external editor failed: %v", msg.err)
		return
	}
	data, err := os.ReadFile(msg.path)
	if err != nil {
		s.notice = fmt.Sprintf("could not read edited section: %v", err)
		return
	}
	s.spliceEdit(msg.index, string(data))
}

// spliceEdit replaces section index's byte range in the working copy with the
// edited text. The range is recomputed against a fresh read; concurrent edits
// of the same working copy are an unguarded race.
func (s *Sidebar) spliceEdit(index int, edited string) {
	if !s.reload() {
		return
	}
	if index >= len(s.sections) {
		s.notice = "section disappeared while editing"
		return
	}
	section := s.sections[index]
	updated := plan.Splice(s.content, section.HeaderStart, section.End, edited)
	if err := s.store.WriteWorkingCopy(s.planName, updated); err != nil {
		s.notice = fmt.Sprintf("could not save edit: %v", err)
		return
	}
	s.content = updated
	s.sections = plan.ParseSections(updated)
	if s.cursor >= len(s.sections) && s.cursor > 0 {
		s.cursor = len(s.sections) - 1
	}
	s.notice = "section updated"
}

// startAider launches Aider in the main pane, preferring a project-local
// aider.sh wrapper.
func (s *Sidebar) startAider() {
	command := "aider"
	if info, err := os.Stat("aider.sh"); err == nil && info.Mode().IsRegular() {
		command = "./aider.sh"
	}
	if err := s.bridge.SendKeys(s.pane, command); err != nil {
		s.notice = fmt.Sprintf("could not start aider: %v", err)
		return
	}
	if err := s.bridge.SendEnter(s.pane); err != nil {
		s.notice = fmt.Sprintf("could not start aider: %v", err)
		return
	}
	s.notice = "started " + command
}

// openPlanGenerator runs the plan flow in its own tmux window, reusing the
// window when it already exists.
func (s *Sidebar) openPlanGenerator() {
	exe, err := os.Executable()
	if err != nil {
		exe = "aidermux"
	}
	command := exe + " plan"
	target := s.session + ":" + planGenWindow

	exists, err := s.bridge.SelectWindow(target)
	if err != nil {
		s.notice = fmt.Sprintf("could not manage plan window: %v", err)
		return
	}
	if exists {
		pane := target + ".0"
		if err := s.bridge.SendKeys(pane, command); err == nil {
			_ = s.bridge.SendEnter(pane)
		}
		return
	}
	if err := s.bridge.CreateWindow(s.session, planGenWindow, command, true); err != nil {
		s.notice = fmt.Sprintf("could not create plan window: %v", err)
	}
}

func (s *Sidebar) detach() {
	if err := s.bridge.DetachClient(s.session); err != nil {
		s.log.Error("could not detach client", map[string]interface{}{"session": s.session, "error": err.Error()})
	}
}

func (s *Sidebar) View() string {
	if s.done {
		return ""
	}
	if s.state == sideStateEdit && s.editor != nil {
		return s.editor.View()
	}

	var b strings.Builder
	b.WriteString(s.theme.Title.Render("aidermux") + "\n")
	b.WriteString(s.theme.Subtitle.Render("session: "+s.session) + "\n\n")

	switch s.state {
	case sideStatePlanPick:
		b.WriteString(s.theme.Subtitle.Render("Load plan") + "\n")
		for i, name := range s.planNames {
			b.WriteString(s.pickRow(name, i == s.planCursor))
		}
		b.WriteString(s.pickRow("[ refresh ]", s.planCursor == len(s.planNames)))
		b.WriteString("\n" + s.theme.Footer.Render("enter: load  esc: back"))
	case sideStateConfirmDestroy:
		b.WriteString(s.theme.ErrorMsg.Render(fmt.Sprintf("Destroy session %q?", s.session)) + "\n\n")
		b.WriteString(s.theme.Footer.Render("y: destroy  n: cancel"))
	default:
		s.renderMain(&b)
	}

	if s.notice != "" {
		b.WriteString("\n" + s.theme.Notice.Render(s.notice))
	}
	return b.String()
}

func (s *Sidebar) pickRow(label string, selected bool) string {
	if selected {
		return "> " + s.theme.Selected.Render(label) + "\n"
	}
	return "  " + s.theme.Row.Render(label) + "\n"
}

func (s *Sidebar) renderMain(b *strings.Builder) {
	reset := "off"
	if s.useReset {
		reset = "on"
	}
	planLabel := s.planName
	if planLabel == "" {
		planLabel = "(none)"
	}
	b.WriteString(s.theme.Row.Render("plan: "+planLabel) + "  " + s.theme.Row.Render("/reset: "+reset) + "\n\n")

	w, hasW := 0, false
	if s.planName != "" {
		w, hasW = s.cfg.LastStep(s.session, s.planName)
	}
	for i, section := range s.sections {
		status := plan.StatusFor(i, w, hasW)
		style := s.theme.StepStyle(status == plan.StepCompleted, status == plan.StepCurrent)
		marker := "  "
		if i == s.cursor {
			marker = "> "
		}
		b.WriteString(marker + style.Render(fmt.Sprintf("%d: %s", i, section.Title)) + "\n")
	}
	if len(s.sections) == 0 && s.planName != "" {
		b.WriteString(s.theme.Footer.Render("plan has no sections") + "\n")
	}

	b.WriteString("\n" + s.theme.Footer.Render("a: ask  c: code  t: architect  e: edit  E: ext edit"))
	b.WriteString("\n" + s.theme.Footer.Render("p: plans  r: reset toggle  A: start aider  g: gen plan"))
	b.WriteString("\n" + s.theme.Footer.Render("d: detach  X: destroy  q: quit"))
}
