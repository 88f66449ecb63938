package planner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"aidermux/internal/config"
	"aidermux/internal/logging"
)

// ErrorMarker starts every error document. Error documents travel the same
// persistence path as real plans so they can be inspected afterwards.
const ErrorMarker = "# Error Generating Plan"

// Result is the outcome of one generation: either plan markdown or an error
// document, plus whatever usage accounting the provider reported.
type Result struct {
	Markdown string
	Model    string
	Usage    Usage
}

// IsError reports whether Markdown is an error document.
func (r Result) IsError() bool {
	return strings.HasPrefix(r.Markdown, ErrorMarker)
}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, Usage, error)
}

// Generator turns a feature description into plan markdown via one LLM call.
type Generator struct {
	cfg *config.Store
	log *logging.Logger

	// newCompleter and captureMap are swapped out by tests.
	newCompleter func(apiKey, model, baseURL string) completer
	captureMap   func(RepoMapMethod) string
}

func NewGenerator(cfg *config.Store, log *logging.Logger) *Generator {
	return &Generator{
		cfg: cfg,
		log: log,
		newCompleter: func(apiKey, model, baseURL string) completer {
			return NewClient(apiKey, model, baseURL)
		},
		captureMap: CaptureRepoMap,
	}
}

// envKeyVars maps a model-name substring to the provider's conventional
// API key environment variable.
var envKeyVars = []struct {
	substr string
	envVar string
}{
	{"gpt", "OPENAI_API_KEY"},
	{"o1", "OPENAI_API_KEY"},
	{"claude", "ANTHROPIC_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
	{"deepseek", "DEEPSEEK_API_KEY"},
}

// apiKeyFor prefers the configured key and falls back to the provider's
// environment variable inferred from the model name.
func (g *Generator) apiKeyFor(model string) string {
	if key := g.cfg.LLMAPIKey(); key != "" {
		return key
	}
	for _, e := range envKeyVars {
		if strings.Contains(model, e.substr) {
			if key := os.Getenv(e.envVar); key != "" {
				return key
			}
		}
	}
	return ""
}

// Generate produces plan markdown for the feature description. session selects
// a per-session prompt override; promptDumpFile, when non-empty, receives the
// fully rendered prompt before the LLM call. Failures are returned as error
// documents inside the Result, never as a Go error.
func (g *Generator) Generate(ctx context.Context, feature, session string, method RepoMapMethod, promptDumpFile string) Result {
	model := g.cfg.LLMModel()

	tpl, source := ResolveTemplate(g.cfg, session)
	g.log.Info("resolved plan prompt template", map[string]interface{}{"source": source})
	if err := ValidateTemplate(tpl); err != nil {
		return Result{
			Markdown: fmt.Sprintf("%s\n\nInvalid prompt template (%s): %v\n\nFix the template and try again; no LLM call was made.", ErrorMarker, source, err),
			Model:    model,
		}
	}

	repoMap := ""
	if strings.Contains(tpl, PlaceholderRepoMap) {
		repoMap = g.captureMap(method)
	} else {
		g.log.Warn("prompt template has no repository map placeholder", map[string]interface{}{"source": source})
	}

	prompt := RenderTemplate(tpl, repoMap, feature)

	if promptDumpFile != "" {
		if err := os.WriteFile(promptDumpFile, []byte(prompt), 0o644); err != nil {
			g.log.Error("failed to dump rendered prompt", map[string]interface{}{"path": promptDumpFile, "error": err.Error()})
		} else {
			g.log.Info("dumped rendered prompt", map[string]interface{}{"path": promptDumpFile})
		}
	}

	g.log.Info("calling llm for plan generation", map[string]interface{}{"model": model})
	client := g.newCompleter(g.apiKeyFor(model), model, g.cfg.LLMBaseURL())
	text, usage, err := client.Complete(ctx, prompt)
	if err != nil {
		return Result{Markdown: errorDocument(model, err), Model: model}
	}
	return Result{Markdown: strings.TrimSpace(text), Model: model, Usage: usage}
}

// errorDocument wraps a call failure in markdown that starts with ErrorMarker.
// Timeouts are called out explicitly since they are the most common failure.
func errorDocument(model string, err error) string {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		return fmt.Sprintf("%s\n\nLLM API call timed out (%s): %v\n\nThe model took too long to respond. You might try a different model or check the LLM provider status.", ErrorMarker, model, err)
	}
	return fmt.Sprintf("%s\n\nError calling LLM (%s): %v\n\nPlease check your network connection, API key, and model name.", ErrorMarker, model, err)
}
