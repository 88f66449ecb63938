package planner

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aidermux/internal/config"
	"aidermux/internal/logging"
)

func testStore(t *testing.T, yaml string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".aidermux.yml")
	if yaml != "" {
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	return config.LoadPath(path, logging.NewLogger(io.Discard))
}

func TestValidateTemplate(t *testing.T) {
	if err := ValidateTemplate(DefaultTemplate()); err != nil {
		t.Fatalf("builtin template invalid: %v", err)
	}
	if err := ValidateTemplate("no placeholders here"); err == nil {
		t.Fatal("expected error for template without feature placeholder")
	}
}

func TestRenderTemplate(t *testing.T) {
	tpl := "map:\n{repository_map}\nfeature:\n{feature_description}\n"
	got := RenderTemplate(tpl, "THE MAP", "THE FEATURE")
	if !strings.Contains(got, "THE MAP") || !strings.Contains(got, "THE FEATURE") {
		t.Fatalf("placeholders not substituted: %q", got)
	}
	if strings.Contains(got, "{repository_map}") || strings.Contains(got, "{feature_description}") {
		t.Fatalf("placeholders left behind: %q", got)
	}
}

func TestResolveTemplate_BuiltinWhenNothingConfigured(t *testing.T) {
	testChdir(t, t.TempDir())
	cfg := testStore(t, "")
	tpl, source := ResolveTemplate(cfg, "")
	if source != "builtin" {
		t.Fatalf("source = %q, want builtin", source)
	}
	if tpl != DefaultTemplate() {
		t.Fatal("template is not the builtin default")
	}
}

func TestResolveTemplate_LocalPromptWins(t *testing.T) {
	root := t.TempDir()
	testChdir(t, root)
	if err := os.MkdirAll(".aidermux", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	local := "local template {feature_description}"
	if err := os.WriteFile(LocalPromptPath(), []byte(local), 0o644); err != nil {
		t.Fatalf("write local prompt: %v", err)
	}

	overridePath := filepath.Join(root, "override.md")
	if err := os.WriteFile(overridePath, []byte("override {feature_description}"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	cfg := testStore(t, "plan_prompt_override_path: "+overridePath+"\n")

	tpl, source := ResolveTemplate(cfg, "")
	if tpl != local {
		t.Fatalf("template = %q, want local prompt", tpl)
	}
	if source != LocalPromptPath() {
		t.Fatalf("source = %q, want %q", source, LocalPromptPath())
	}
}

func TestResolveTemplate_ConfigOverride(t *testing.T) {
	root := t.TempDir()
	testChdir(t, root)
	overridePath := filepath.Join(root, "override.md")
	override := "override {feature_description}"
	if err := os.WriteFile(overridePath, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	cfg := testStore(t, "plan_prompt_override_path: "+overridePath+"\n")

	tpl, source := ResolveTemplate(cfg, "")
	if tpl != override {
		t.Fatalf("template = %q, want override", tpl)
	}
	if source != overridePath {
		t.Fatalf("source = %q, want %q", source, overridePath)
	}
}

func TestResolveTemplate_UnreadableOverrideFallsThrough(t *testing.T) {
	testChdir(t, t.TempDir())
	cfg := testStore(t, "plan_prompt_override_path: /nonexistent/override.md\n")
	_, source := ResolveTemplate(cfg, "")
	if source != "builtin" {
		t.Fatalf("source = %q, want builtin", source)
	}
}
