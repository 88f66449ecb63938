package planner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"aidermux/internal/config"
	"aidermux/internal/plan"
)

const (
	// PlaceholderFeature must appear in every usable template.
	PlaceholderFeature = "{feature_description}"
	// PlaceholderRepoMap is optional; templates without it simply get no map.
	PlaceholderRepoMap = "{repository_map}"

	// LocalPromptFile is the working-directory prompt edited from the TUI. It
	// wins over config overrides so an in-flight edit is what actually runs.
	LocalPromptFile = "planner_prompt.md"
)

// ErrMissingFeaturePlaceholder rejects a template before any external call is
// made on its behalf.
var ErrMissingFeaturePlaceholder = errors.New("prompt template does not contain " + PlaceholderFeature)

const defaultTemplate = `You are an expert software development assistant. Your task is to take a user's feature description
and break it down into a detailed, step-by-step plan. This plan will be used with a coding assistant
like Aider. Each step in the plan should be actionable and largely independent. It is not necessary to
include code in the instructions.

**Important Guidelines for each step:**
- **Independence:** Each step should be as self-contained as possible. Assume Aider's context is reset (e.g., with ` + "`/clear`" + `) before each step, and only the specified files are added for that step.
- **Clarity:** Instructions must be unambiguous.
- **Aider-Friendly:** Phrase instructions as if you are talking to Aider.
- **File Specificity:** Be accurate about filenames and paths. Account for files created in previous steps.

The output MUST be a Markdown document with the following structure:

# [Short feature title from user description]


## 1: [Descriptive Title for Step 1]

- **Files to add to Aider:** List the specific file paths that should be added to Aider for this step (e.g., ` + "`path/to/file.py`" + `). Use a Markdown bullet list.

- **Goal:** Briefly state the objective of this step.

- **Instructions:** Provide clear, concise instructions for the LLM coding assistant (Aider) to implement this step. Be specific about the changes, functions, classes, or logic to be added or modified.

## 2: [Descriptive Title for Step 2]

- **Files to add to Aider:** ...

- **Goal:** ...
- **Instructions:** ...

... (Repeat for as many steps as necessary) ...

User's Repository map:
---
{repository_map}
---

User's Feature Description:
---
{feature_description}
---

Now, generate the plan in Markdown format.
`

// DefaultTemplate returns the built-in plan-generation prompt.
func DefaultTemplate() string { return defaultTemplate }

// LocalPromptPath is where the TUI prompt editor saves its copy.
func LocalPromptPath() string {
	return filepath.Join(plan.BaseDirName, LocalPromptFile)
}

// ResolveTemplate picks the prompt template in priority order: the locally
// edited prompt file, the per-session config override, the global config
// override, then the built-in default. Unreadable candidates are skipped.
// The returned source names the winner for logging.
func ResolveTemplate(cfg *config.Store, session string) (template, source string) {
	if data, err := os.ReadFile(LocalPromptPath()); err == nil {
		return string(data), LocalPromptPath()
	}
	if p := cfg.PromptOverridePath(session); p != "" {
		if data, err := os.ReadFile(p); err == nil {
			return string(data), p
		}
	}
	return defaultTemplate, "builtin"
}

// ValidateTemplate checks the template is usable before spending a repo-map
// run or an API call on it.
func ValidateTemplate(tpl string) error {
	if !strings.Contains(tpl, PlaceholderFeature) {
		return ErrMissingFeaturePlaceholder
	}
	return nil
}

// RenderTemplate substitutes both placeholders.
func RenderTemplate(tpl, repoMap, feature string) string {
	out := strings.ReplaceAll(tpl, PlaceholderRepoMap, repoMap)
	return strings.ReplaceAll(out, PlaceholderFeature, feature)
}
