package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbletea"

	"aidermux/internal/config"
	"aidermux/internal/logging"
	"aidermux/internal/plan"
	"aidermux/internal/planner"
)

type featureState int

const (
	featStateInput featureState = iota
	featStateLoading
	featStateDisplay
	featStatePromptEdit
)

type planResultMsg struct {
	result planner.Result
}

type elapsedTickMsg time.Time

type editorDoneMsg struct {
	err error
}

// EditorRunner is the slice of the tmux bridge the prompt editor needs to run
// an external editor in a dedicated window and block until it exits.
type EditorRunner interface {
	RunInNewWindowAndWait(session, window, command string) error
}

// FeatureApp is the plan-generation screen: feature description input, busy
// state while the LLM call runs, plan display with save-or-discard, and the
// planner-prompt editing state.
type FeatureApp struct {
	theme Theme
	cfg   *config.Store
	gen   *planner.Generator
	store *plan.Store
	log   *logging.Logger

	// session scopes the prompt override lookup; empty outside tmux.
	session string
	// editor is nil when no tmux session hosts an external editor window.
	editor EditorRunner

	state      featureState
	ta         textarea.Model
	promptTA   textarea.Model
	sp         spinner.Model
	notice     string
	useRepomix bool
	repomixOK  bool

	genCancel  context.CancelFunc
	generating bool
	startTime  time.Time
	elapsed    time.Duration

	feature string
	result  planner.Result

	width  int
	height int
	done   bool

	Cancelled bool
	Saved     bool
	PlanName  string
}

func NewFeatureApp(theme Theme, cfg *config.Store, gen *planner.Generator, store *plan.Store, log *logging.Logger, session string, editor EditorRunner) *FeatureApp {
	ta := textarea.New()
	ta.Placeholder = "Describe the feature to plan..."
	ta.Focus()

	promptTA := textarea.New()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &FeatureApp{
		theme:     theme,
		cfg:       cfg,
		gen:       gen,
		store:     store,
		log:       log,
		session:   session,
		editor:    editor,
		ta:        ta,
		promptTA:  promptTA,
		sp:        sp,
		repomixOK: planner.RepomixAvailable(),
	}
}

func (f *FeatureApp) Init() tea.Cmd {
	return textarea.Blink
}

func (f *FeatureApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		f.width = msg.Width
		f.height = msg.Height
		f.ta.SetWidth(msg.Width - 4)
		f.promptTA.SetWidth(msg.Width - 4)
		if msg.Height > 10 {
			f.ta.SetHeight(msg.Height - 8)
			f.promptTA.SetHeight(msg.Height - 8)
		}
		return f, nil

	case planResultMsg:
		if !f.generating {
			// A cancelled call still delivers its result; drop it.
			return f, nil
		}
		f.generating = false
		f.genCancel = nil
		f.result = msg.result
		f.elapsed = time.Since(f.startTime)
		f.state = featStateDisplay
		return f, nil

	case elapsedTickMsg:
		if f.state != featStateLoading {
			return f, nil
		}
		f.elapsed = time.Since(f.startTime)
		return f, f.tickElapsed()

	case spinner.TickMsg:
		if f.state != featStateLoading {
			return f, nil
		}
		var cmd tea.Cmd
		f.sp, cmd = f.sp.Update(msg)
		return f, cmd

	case editorDoneMsg:
		if msg.err != nil {
			f.notice = fmt.Sprintf("external editor failed: %v", msg.err)
			return f, nil
		}
		data, err := os.ReadFile(planner.LocalPromptPath())
		if err != nil {
			f.notice = fmt.Sprintf("could not reload edited prompt: %v", err)
			return f, nil
		}
		f.promptTA.SetValue(string(data))
		f.notice = "prompt reloaded from external editor"
		return f, nil

	case tea.KeyMsg:
		switch f.state {
		case featStateInput:
			return f.updateInput(msg)
		case featStateLoading:
			return f.updateLoading(msg)
		case featStateDisplay:
			return f.updateDisplay(msg)
		case featStatePromptEdit:
			return f.updatePromptEdit(msg)
		}
	}
	return f, nil
}

func (f *FeatureApp) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		f.Cancelled = true
		f.done = true
		return f, tea.Quit
	case "ctrl+g":
		feature := strings.TrimSpace(f.ta.Value())
		if feature == "" {
			f.notice = "feature description cannot be empty"
			return f, nil
		}
		f.feature = feature
		f.notice = ""
		return f, f.startGeneration()
	case "ctrl+r":
		if !f.repomixOK {
			f.notice = "repomix binary not found on PATH"
			return f, nil
		}
		f.useRepomix = !f.useRepomix
		return f, nil
	case "ctrl+p":
		f.enterPromptEdit()
		return f, nil
	}
	var cmd tea.Cmd
	f.ta, cmd = f.ta.Update(msg)
	return f, cmd
}

func (f *FeatureApp) updateLoading(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		f.cancelGeneration()
		f.Cancelled = true
		f.done = true
		return f, tea.Quit
	case "esc":
		f.cancelGeneration()
		f.state = featStateInput
		f.notice = "plan generation cancelled"
		return f, nil
	}
	return f, nil
}

func (f *FeatureApp) updateDisplay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		f.Cancelled = true
		f.done = true
		return f, tea.Quit
	case "s":
		name, err := f.store.Save(f.result.Markdown, f.feature)
		if err != nil {
			f.notice = fmt.Sprintf("could not save plan: %v", err)
			return f, nil
		}
		f.Saved = true
		f.PlanName = name
		f.done = true
		return f, tea.Quit
	case "d":
		f.state = featStateInput
		f.notice = "plan discarded"
		return f, nil
	}
	return f, nil
}

func (f *FeatureApp) updatePromptEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		f.Cancelled = true
		f.done = true
		return f, tea.Quit
	case "esc":
		f.state = featStateInput
		f.ta.Focus()
		f.notice = ""
		return f, nil
	case "ctrl+s":
		if err := f.savePrompt(f.promptTA.Value()); err != nil {
			f.notice = fmt.Sprintf("could not save prompt: %v", err)
			return f, nil
		}
		f.state = featStateInput
		f.ta.Focus()
		f.notice = "prompt saved"
		return f, nil
	case "ctrl+o":
		return f, f.openExternalEditor()
	}
	var cmd tea.Cmd
	f.promptTA, cmd = f.promptTA.Update(msg)
	return f, cmd
}

func (f *FeatureApp) enterPromptEdit() {
	tpl, source := planner.ResolveTemplate(f.cfg, f.session)
	f.promptTA.SetValue(tpl)
	f.promptTA.Focus()
	f.state = featStatePromptEdit
	f.notice = "editing prompt (" + source + ")"
}

func (f *FeatureApp) savePrompt(content string) error {
	if err := os.MkdirAll(plan.BaseDirName, 0o755); err != nil {
		return err
	}
	return os.WriteFile(planner.LocalPromptPath(), []byte(content), 0o644)
}

// openExternalEditor saves the current prompt buffer and runs the configured
// editor on it in a dedicated tmux window, blocking in a goroutine until the
// editor exits. The wait is not cancellable.
func (f *FeatureApp) openExternalEditor() tea.Cmd {
	editorCmd := f.cfg.TextEditor()
	if editorCmd == "" {
		f.notice = "text_editor is not configured"
		return nil
	}
	if f.editor == nil {
		f.notice = "external editor needs a tmux session"
		return nil
	}
	if err := f.savePrompt(f.promptTA.Value()); err != nil {
		f.notice = fmt.Sprintf("could not save prompt: %v", err)
		return nil
	}
	session := f.session
	runner := f.editor
	command := fmt.Sprintf("%s %s", editorCmd, planner.LocalPromptPath())
	return func() tea.Msg {
		return editorDoneMsg{err: runner.RunInNewWindowAndWait(session, "prompt-editor", command)}
	}
}

func (f *FeatureApp) startGeneration() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	f.genCancel = cancel
	f.generating = true
	f.state = featStateLoading
	f.startTime = time.Now()
	f.elapsed = 0

	method := planner.RepoMapAider
	if f.useRepomix {
		method = planner.RepoMapRepomix
	}
	feature := f.feature
	session := f.session
	gen := f.gen

	call := func() tea.Msg {
		return planResultMsg{result: gen.Generate(ctx, feature, session, method, "")}
	}
	return tea.Batch(call, f.sp.Tick, f.tickElapsed())
}

func (f *FeatureApp) cancelGeneration() {
	if f.genCancel != nil {
		f.genCancel()
		f.genCancel = nil
	}
	f.generating = false
}

func (f *FeatureApp) tickElapsed() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return elapsedTickMsg(t)
	})
}

func (f *FeatureApp) View() string {
	if f.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(f.theme.Title.Render("Generate a plan"))
	b.WriteString("\n\n")

	switch f.state {
	case featStateInput:
		b.WriteString(f.ta.View() + "\n\n")
		mapTool := "aider"
		if f.useRepomix {
			mapTool = "repomix"
		}
		b.WriteString(f.theme.Subtitle.Render("repo map: "+mapTool) + "\n")
		b.WriteString(f.theme.Footer.Render("ctrl+g: generate  ctrl+r: toggle repomix  ctrl+p: edit prompt  esc: quit"))
	case featStateLoading:
		b.WriteString(f.theme.Spinner.Render(f.sp.View()))
		b.WriteString(fmt.Sprintf(" generating plan with %s... %ds\n\n", f.cfg.LLMModel(), int(f.elapsed.Seconds())))
		b.WriteString(f.theme.Footer.Render("esc: cancel"))
	case featStateDisplay:
		b.WriteString(f.resultHeader() + "\n\n")
		b.WriteString(f.result.Markdown + "\n\n")
		b.WriteString(f.theme.Footer.Render("s: save  d: discard  q: quit"))
	case featStatePromptEdit:
		b.WriteString(f.theme.Subtitle.Render("Planner prompt") + "\n")
		b.WriteString(f.promptTA.View() + "\n\n")
		b.WriteString(f.theme.Footer.Render("ctrl+s: save  ctrl+o: external editor  esc: back"))
	}

	if f.notice != "" {
		b.WriteString("\n" + f.theme.Notice.Render(f.notice))
	}
	return b.String()
}

func (f *FeatureApp) resultHeader() string {
	if f.result.IsError() {
		return f.theme.ErrorMsg.Render("Plan generation failed")
	}
	tokens := "tokens: n/a"
	if f.result.Usage.Known {
		tokens = fmt.Sprintf("tokens in: %d, out: %d", f.result.Usage.PromptTokens, f.result.Usage.CompletionTokens)
	}
	return f.theme.Subtitle.Render(fmt.Sprintf("Generated with %s in %ds (%s)", f.result.Model, int(f.elapsed.Seconds()), tokens))
}
