package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"aidermux/internal/config"
	"aidermux/internal/logging"
	"aidermux/internal/plan"
	"aidermux/internal/planner"
	"aidermux/internal/tmux"
	"aidermux/internal/tui"
)

const version = "0.1.0"

func main() {
	log := logging.Default()

	var (
		runInPane   bool
		targetPane  string
		sessionName string
		loadSession string
	)

	root := &cobra.Command{
		Use:     "aidermux",
		Short:   "tmux session manager for Aider with LLM plan generation",
		Version: version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(log)
			if runInPane {
				if targetPane == "" || sessionName == "" {
					return errors.New("--run-in-tmux-pane requires --target-pane and --session-name")
				}
				return runSidebar(cfg, log, sessionName, targetPane)
			}
			return bootstrap(cfg, log, loadSession)
		},
	}
	root.Flags().BoolVar(&runInPane, "run-in-tmux-pane", false, "run the sidebar UI inside an existing tmux pane")
	root.Flags().StringVar(&targetPane, "target-pane", "", "tmux pane the sidebar drives (with --run-in-tmux-pane)")
	root.Flags().StringVar(&sessionName, "session-name", "", "managed session name (with --run-in-tmux-pane)")
	root.Flags().StringVar(&loadSession, "load-session", "", "skip the selector and load this session")

	var (
		planFile   string
		useRepomix bool
		dumpPrompt string
	)
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a development plan from a feature description",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(log)
			if planFile != "" {
				return generateFromFile(cfg, log, planFile, useRepomix, dumpPrompt)
			}
			return generateInteractive(cfg, log)
		},
	}
	planCmd.Flags().StringVar(&planFile, "plan-file", "", "feature description file for non-interactive generation")
	planCmd.Flags().BoolVar(&useRepomix, "use-repomix", false, "use repomix for the repository map instead of aider")
	planCmd.Flags().StringVar(&dumpPrompt, "dump-prompt", "", "write the rendered LLM prompt to this file")
	root.AddCommand(planCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap is the default flow: pick or create a managed session, lay out
// the tmux window with the sidebar split, and attach.
func bootstrap(cfg *config.Store, log *logging.Logger, loadSession string) error {
	bridge := tmux.NewBridge()

	var live []string
	for _, name := range cfg.Sessions() {
		if bridge.SessionExists(name) {
			live = append(live, name)
		}
	}

	name := loadSession
	isNew := false
	if name == "" {
		theme := tui.NewTheme(cfg.Theme())
		selector := tui.NewSessionSelector(theme, live)
		if _, err := tea.NewProgram(selector).Run(); err != nil {
			return fmt.Errorf("session selector: %w", err)
		}
		for old, renamed := range selector.Renames {
			if err := bridge.RenameSession(old, renamed); err != nil {
				log.Error("could not rename tmux session", map[string]interface{}{"from": old, "to": renamed, "error": err.Error()})
				continue
			}
			cfg.RenameSession(old, renamed)
		}
		if selector.Cancelled {
			return nil
		}
		name = selector.Choice
		isNew = selector.IsNew
	}

	if err := tui.ValidateSessionName(name); err != nil {
		return err
	}
	cfg.AddSession(name)

	if isNew || !bridge.SessionExists(name) {
		if err := createSessionLayout(bridge, cfg, name); err != nil {
			return err
		}
	}

	for option, value := range map[string]string{"mouse": "on", "pane-border-lines": "heavy"} {
		if err := bridge.SetGlobalOption(option, value); err != nil {
			log.Warn("could not set tmux option", map[string]interface{}{"option": option, "error": err.Error()})
		}
	}
	return bridge.AttachSession(name)
}

// createSessionLayout builds the detached session with the main Aider pane
// and the sidebar split, and launches the sidebar process in the split.
func createSessionLayout(bridge *tmux.Bridge, cfg *config.Store, name string) error {
	if err := bridge.NewSession(name, "main", 0, 0); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	mainPane := name + ":0.0"
	size := fmt.Sprintf("%d%%", cfg.SidepanePercentWidth())
	if err := bridge.SplitWindow(mainPane, true, size); err != nil {
		return fmt.Errorf("split sidebar pane: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "aidermux"
	}
	sidebarPane := name + ":0.1"
	command := fmt.Sprintf("%s --run-in-tmux-pane --target-pane %s --session-name %s", exe, mainPane, name)
	if err := bridge.SendKeys(sidebarPane, command); err != nil {
		return fmt.Errorf("launch sidebar: %w", err)
	}
	if err := bridge.SendEnter(sidebarPane); err != nil {
		return fmt.Errorf("launch sidebar: %w", err)
	}
	return bridge.SelectPane(mainPane)
}

func runSidebar(cfg *config.Store, log *logging.Logger, session, pane string) error {
	bridge := tmux.NewBridge()
	store := plan.NewStore(".")
	sender := plan.NewSender(bridge, cfg, log)
	sender.Pane = pane
	sender.Session = session
	sender.Delay = cfg.SendDelay()

	theme := tui.NewTheme(cfg.Theme())
	sidebar := tui.NewSidebar(theme, cfg, bridge, store, sender, log, session, pane)
	_, err := tea.NewProgram(sidebar, tea.WithAltScreen()).Run()
	return err
}

// generateFromFile is the non-interactive plan flow. Error documents are
// saved like real plans; the exit code still reports the failure.
func generateFromFile(cfg *config.Store, log *logging.Logger, planFile string, useRepomix bool, dumpPrompt string) error {
	data, err := os.ReadFile(planFile)
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}
	feature := string(data)
	if strings.TrimSpace(feature) == "" {
		return fmt.Errorf("plan file %q is empty", planFile)
	}

	method := planner.RepoMapAider
	if useRepomix {
		method = planner.RepoMapRepomix
	}

	gen := planner.NewGenerator(cfg, log)
	result := gen.Generate(context.Background(), feature, "", method, dumpPrompt)

	store := plan.NewStore(".")
	name, saveErr := store.Save(result.Markdown, feature)
	if saveErr != nil {
		return fmt.Errorf("save plan: %w", saveErr)
	}

	fmt.Println(result.Markdown)
	if result.IsError() {
		return fmt.Errorf("plan generation failed; error document saved to %s", store.OriginalPath(name))
	}
	usage := "usage: n/a"
	if result.Usage.Known {
		usage = fmt.Sprintf("tokens in: %d, out: %d, total: %d", result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)
	}
	fmt.Fprintf(os.Stderr, "Plan saved to %s (%s, %s)\n", store.OriginalPath(name), result.Model, usage)
	return nil
}

func generateInteractive(cfg *config.Store, log *logging.Logger) error {
	store := plan.NewStore(".")
	gen := planner.NewGenerator(cfg, log)
	theme := tui.NewTheme(cfg.Theme())

	var editor tui.EditorRunner
	session := ""
	if os.Getenv("TMUX") != "" {
		bridge := tmux.NewBridge()
		if current, err := bridge.CurrentSession(); err == nil && current != "" {
			session = current
			editor = bridge
		}
	}

	app := tui.NewFeatureApp(theme, cfg, gen, store, log, session, editor)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if app.Saved {
		fmt.Fprintf(os.Stderr, "Plan saved to %s\n", store.OriginalPath(app.PlanName))
	}
	return nil
}
