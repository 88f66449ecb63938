package planner

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"aidermux/internal/logging"
	"aidermux/internal/plan"
)

func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

type fakeCompleter struct {
	text    string
	usage   Usage
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.usage, f.err
}

func newTestGenerator(t *testing.T, fake *fakeCompleter) *Generator {
	t.Helper()
	g := NewGenerator(testStore(t, ""), logging.NewLogger(io.Discard))
	g.newCompleter = func(apiKey, model, baseURL string) completer { return fake }
	g.captureMap = func(RepoMapMethod) string { return "THE REPO MAP" }
	return g
}

func TestGenerate_Success(t *testing.T) {
	testChdir(t, t.TempDir())
	fake := &fakeCompleter{
		text:  "\n# My Feature\n\n## 1: Step\n\nDo it\n",
		usage: Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12, Known: true},
	}
	g := newTestGenerator(t, fake)

	result := g.Generate(context.Background(), "add a widget", "", RepoMapAider, "")
	if result.IsError() {
		t.Fatalf("unexpected error document: %q", result.Markdown)
	}
	if !strings.HasPrefix(result.Markdown, "# My Feature") {
		t.Fatalf("markdown not trimmed: %q", result.Markdown)
	}
	if result.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", result.Model)
	}
	if !result.Usage.Known || result.Usage.TotalTokens != 12 {
		t.Fatalf("usage = %+v", result.Usage)
	}
	if len(fake.prompts) != 1 {
		t.Fatalf("completer called %d times", len(fake.prompts))
	}
	if !strings.Contains(fake.prompts[0], "add a widget") || !strings.Contains(fake.prompts[0], "THE REPO MAP") {
		t.Fatalf("prompt missing substitutions: %q", fake.prompts[0])
	}
}

func TestGenerate_TimeoutProducesErrorDocument(t *testing.T) {
	testChdir(t, t.TempDir())
	fake := &fakeCompleter{err: context.DeadlineExceeded}
	g := newTestGenerator(t, fake)

	result := g.Generate(context.Background(), "f", "", RepoMapAider, "")
	if !result.IsError() {
		t.Fatalf("expected error document, got %q", result.Markdown)
	}
	if !strings.HasPrefix(result.Markdown, ErrorMarker) {
		t.Fatalf("document does not start with marker: %q", result.Markdown)
	}
	if !strings.Contains(result.Markdown, "timed out") {
		t.Fatalf("timeout document missing 'timed out': %q", result.Markdown)
	}

	// Error documents travel the normal persistence path.
	st := plan.NewStore(".")
	name, err := st.Save(result.Markdown, "f")
	if err != nil {
		t.Fatalf("Save error document: %v", err)
	}
	if name != "error-generating-plan" {
		t.Fatalf("error plan name = %q", name)
	}
	if _, err := os.Stat(st.OriginalPath(name)); err != nil {
		t.Fatalf("error document not saved: %v", err)
	}
}

func TestGenerate_InvalidTemplateSkipsLLMCall(t *testing.T) {
	testChdir(t, t.TempDir())
	if err := os.MkdirAll(".aidermux", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(LocalPromptPath(), []byte("no placeholder at all"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	fake := &fakeCompleter{text: "should not be used"}
	g := newTestGenerator(t, fake)

	result := g.Generate(context.Background(), "f", "", RepoMapAider, "")
	if !result.IsError() {
		t.Fatalf("expected error document, got %q", result.Markdown)
	}
	if len(fake.prompts) != 0 {
		t.Fatalf("llm called despite invalid template: %v", fake.prompts)
	}
}

func TestGenerate_DumpsRenderedPrompt(t *testing.T) {
	testChdir(t, t.TempDir())
	fake := &fakeCompleter{text: "# P"}
	g := newTestGenerator(t, fake)

	dump := "prompt_dump.txt"
	g.Generate(context.Background(), "the feature", "", RepoMapAider, dump)

	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("prompt dump missing: %v", err)
	}
	if !strings.Contains(string(data), "the feature") {
		t.Fatalf("dump missing feature text: %q", data)
	}
}

func TestGenerate_EnvKeyFallback(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "env-key")
	var gotKey string
	fake := &fakeCompleter{text: "# P"}
	g := newTestGenerator(t, fake)
	g.newCompleter = func(apiKey, model, baseURL string) completer {
		gotKey = apiKey
		return fake
	}

	g.Generate(context.Background(), "f", "", RepoMapAider, "")
	if gotKey != "env-key" {
		t.Fatalf("api key = %q, want env fallback", gotKey)
	}
}
