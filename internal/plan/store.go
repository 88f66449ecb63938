package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// BaseDirName holds all aidermux state inside the working directory.
	BaseDirName  = ".aidermux"
	plansSubdir  = "plans"
	featureFile  = "feature_description.md"
	workingPfx   = "current-"
	untitledSlug = "untitled-plan"
	emptySlug    = "default-plan-title"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	nonSlugRE    = regexp.MustCompile(`[^a-z0-9\-]`)
	hyphenRunRE  = regexp.MustCompile(`-+`)
)

// TitleFromMarkdown extracts the plan title from the first H1 heading.
func TitleFromMarkdown(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(line[2:]); title != "" {
				return title
			}
		}
	}
	return untitledSlug
}

// Slugify converts a title into a filesystem-safe directory name.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = whitespaceRE.ReplaceAllString(s, "-")
	s = nonSlugRE.ReplaceAllString(s, "")
	s = hyphenRunRE.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return emptySlug
	}
	return s
}

// Store manages the on-disk plan directories under <root>/.aidermux/plans.
// Each plan directory holds the immutable original markdown, the mutable
// working copy, and the feature description that produced the plan.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir (usually the working directory).
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (st *Store) plansDir() string {
	return filepath.Join(st.root, BaseDirName, plansSubdir)
}

// Dir returns the directory of a plan by name.
func (st *Store) Dir(name string) string {
	return filepath.Join(st.plansDir(), name)
}

// OriginalPath is the immutable plan markdown saved at generation time.
func (st *Store) OriginalPath(name string) string {
	return filepath.Join(st.Dir(name), name+".md")
}

// WorkingCopyPath is the mutable copy that section edits and sends use.
func (st *Store) WorkingCopyPath(name string) string {
	return filepath.Join(st.Dir(name), workingPfx+name+".md")
}

// Save writes a generated plan and its feature description to a new plan
// directory named after the plan title, and returns the plan name. Error
// documents are saved the same way as successful plans so they can be
// inspected afterwards.
func (st *Store) Save(planContent, featureDescription string) (string, error) {
	name := Slugify(TitleFromMarkdown(planContent))
	dir := st.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plan directory: %w", err)
	}
	if err := os.WriteFile(st.OriginalPath(name), []byte(planContent), 0o644); err != nil {
		return "", fmt.Errorf("save plan: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, featureFile), []byte(featureDescription), 0o644); err != nil {
		return "", fmt.Errorf("save feature description: %w", err)
	}
	return name, nil
}

// List returns the plan names (directory names) in sorted order.
func (st *Store) List() []string {
	entries, err := os.ReadDir(st.plansDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// RefreshWorkingCopy re-derives the working copy from the immutable original
// and returns its content. It is called every time a plan is (re)selected, so
// section edits only ever apply to the working copy.
func (st *Store) RefreshWorkingCopy(name string) (string, error) {
	data, err := os.ReadFile(st.OriginalPath(name))
	if err != nil {
		return "", fmt.Errorf("read original plan: %w", err)
	}
	if err := os.WriteFile(st.WorkingCopyPath(name), data, 0o644); err != nil {
		return "", fmt.Errorf("write working copy: %w", err)
	}
	return string(data), nil
}

// ReadWorkingCopy reads the current working copy without refreshing it.
func (st *Store) ReadWorkingCopy(name string) (string, error) {
	data, err := os.ReadFile(st.WorkingCopyPath(name))
	if err != nil {
		return "", fmt.Errorf("read working copy: %w", err)
	}
	return string(data), nil
}

// WriteWorkingCopy overwrites the working copy, leaving the original intact.
func (st *Store) WriteWorkingCopy(name, content string) error {
	if err := os.WriteFile(st.WorkingCopyPath(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write working copy: %w", err)
	}
	return nil
}
