package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"aidermux/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(io.Discard)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), Filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadPath_MissingFileUsesDefaults(t *testing.T) {
	s := LoadPath("", testLogger())
	if s.SidepanePercentWidth() != DefaultSidepanePercentWidth {
		t.Fatalf("SidepanePercentWidth = %d, want %d", s.SidepanePercentWidth(), DefaultSidepanePercentWidth)
	}
	if s.Theme() != DefaultThemeName {
		t.Fatalf("Theme = %q, want %q", s.Theme(), DefaultThemeName)
	}
	if s.LLMModel() != DefaultLLMModel {
		t.Fatalf("LLMModel = %q, want %q", s.LLMModel(), DefaultLLMModel)
	}
}

func TestLoadPath_WrongTypedWidthFallsBackToDefault(t *testing.T) {
	path := writeConfig(t, "sidepane_percent_width: \"not a number\"\n")
	s := LoadPath(path, testLogger())
	if s.SidepanePercentWidth() != 20 {
		t.Fatalf("SidepanePercentWidth = %d, want 20", s.SidepanePercentWidth())
	}
}

func TestLoadPath_MalformedYAMLDoesNotFail(t *testing.T) {
	path := writeConfig(t, ":\n  - [broken\n")
	s := LoadPath(path, testLogger())
	if s.Theme() != DefaultThemeName {
		t.Fatalf("Theme = %q, want default after parse failure", s.Theme())
	}
}

func TestLoadPath_MigratesLegacySessionList(t *testing.T) {
	path := writeConfig(t, "managed_sessions:\n  - alpha\n  - beta\n")
	s := LoadPath(path, testLogger())
	got := s.Sessions()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("Sessions = %v, want [alpha beta]", got)
	}
	if !s.HasSession("alpha") {
		t.Fatalf("expected migrated session to exist")
	}
}

func TestLoadPath_EmptyModelFallsBack(t *testing.T) {
	path := writeConfig(t, "llm_model: \"   \"\n")
	s := LoadPath(path, testLogger())
	if s.LLMModel() != DefaultLLMModel {
		t.Fatalf("LLMModel = %q, want default", s.LLMModel())
	}
}

func TestLoadPath_SessionProgress(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"managed_sessions:",
		"  work:",
		"    active_plan_name: my-plan",
		"    plan_progress:",
		"      my-plan:",
		"        last_aider_step: 3",
		"      broken-plan: not-a-mapping",
		"",
	}, "\n"))
	s := LoadPath(path, testLogger())
	if got := s.ActivePlan("work"); got != "my-plan" {
		t.Fatalf("ActivePlan = %q, want my-plan", got)
	}
	step, ok := s.LastStep("work", "my-plan")
	if !ok || step != 3 {
		t.Fatalf("LastStep = %d,%v, want 3,true", step, ok)
	}
	if _, ok := s.LastStep("work", "broken-plan"); ok {
		t.Fatalf("expected malformed progress entry to be dropped")
	}
}

func TestLoadPath_WrongTypedStepIsReset(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"managed_sessions:",
		"  work:",
		"    plan_progress:",
		"      my-plan:",
		"        last_aider_step: \"three\"",
		"",
	}, "\n"))
	s := LoadPath(path, testLogger())
	if _, ok := s.LastStep("work", "my-plan"); ok {
		t.Fatalf("expected non-integer step to reset to unset")
	}
}

func TestLoadPath_RelativeOverridePathResolvedAgainstConfigDir(t *testing.T) {
	path := writeConfig(t, "plan_prompt_override_path: prompts/planner.md\n")
	s := LoadPath(path, testLogger())
	want := filepath.Join(filepath.Dir(path), "prompts", "planner.md")
	if got := s.PromptOverridePath(""); got != want {
		t.Fatalf("PromptOverridePath = %q, want %q", got, want)
	}
}

func TestPromptOverridePath_SessionBeatsGlobal(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"plan_prompt_override_path: /global/prompt.md",
		"managed_sessions:",
		"  work:",
		"    plan_prompt_override_path: /session/prompt.md",
		"  other: {}",
		"",
	}, "\n"))
	s := LoadPath(path, testLogger())
	if got := s.PromptOverridePath("work"); got != "/session/prompt.md" {
		t.Fatalf("session override = %q, want /session/prompt.md", got)
	}
	if got := s.PromptOverridePath("other"); got != "/global/prompt.md" {
		t.Fatalf("global fallback = %q, want /global/prompt.md", got)
	}
}

func TestSetLastStep_IdempotentWriteAvoided(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	s := LoadPath(path, testLogger())
	s.path = path

	s.SetLastStep("work", "my-plan", 2)
	writesAfterFirst := s.writes
	s.SetLastStep("work", "my-plan", 2)
	if s.writes != writesAfterFirst {
		t.Fatalf("writes = %d after repeat, want %d (no-op expected)", s.writes, writesAfterFirst)
	}
	s.SetLastStep("work", "my-plan", 3)
	if s.writes != writesAfterFirst+1 {
		t.Fatalf("writes = %d after change, want %d", s.writes, writesAfterFirst+1)
	}
}

func TestMutators_NoopWhenUnchanged(t *testing.T) {
	s := LoadPath("", testLogger())
	s.path = filepath.Join(t.TempDir(), Filename)

	s.SetTheme("dark")
	n := s.writes
	s.SetTheme("dark")
	if s.writes != n {
		t.Fatalf("SetTheme same value wrote again")
	}
	s.SetActivePlan("work", "p1")
	n = s.writes
	s.SetActivePlan("work", "p1")
	if s.writes != n {
		t.Fatalf("SetActivePlan same value wrote again")
	}
}

func TestRenameSession_MovesSettings(t *testing.T) {
	s := LoadPath("", testLogger())
	s.path = filepath.Join(t.TempDir(), Filename)

	s.AddSession("old")
	s.SetActivePlan("old", "p1")
	s.SetLastStep("old", "p1", 4)
	s.RenameSession("old", "new")

	if s.HasSession("old") {
		t.Fatalf("old session still present after rename")
	}
	if got := s.ActivePlan("new"); got != "p1" {
		t.Fatalf("ActivePlan after rename = %q, want p1", got)
	}
	if step, ok := s.LastStep("new", "p1"); !ok || step != 4 {
		t.Fatalf("LastStep after rename = %d,%v, want 4,true", step, ok)
	}
}

func TestSave_RoundTripsThroughDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	s := LoadPath(path, testLogger())
	s.path = path

	s.AddSession("work")
	s.SetActivePlan("work", "my-plan")
	s.SetLastStep("work", "my-plan", 1)
	s.SetTheme("dark")

	reloaded := LoadPath(path, testLogger())
	if reloaded.Theme() != "dark" {
		t.Fatalf("reloaded theme = %q, want dark", reloaded.Theme())
	}
	if step, ok := reloaded.LastStep("work", "my-plan"); !ok || step != 1 {
		t.Fatalf("reloaded LastStep = %d,%v, want 1,true", step, ok)
	}

	// The file must stay a plain YAML mapping other tools can read.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("saved config is not valid yaml: %v", err)
	}
	if _, ok := doc["managed_sessions"]; !ok {
		t.Fatalf("saved config missing managed_sessions")
	}
}
