package plan

import (
	"regexp"
	"sort"
	"strings"
)

var sectionHeaderRE = regexp.MustCompile(`(?m)^## .*$`)

// Section is a contiguous span of a plan's working copy, delimited by a
// "## Title" line and the next such line or EOF. Sections are identified by
// ordinal position only: titles may repeat or change, and any edit that adds
// or removes a "## " line invalidates downstream ordinals, so callers
// re-parse before every ordinal-indexed action.
type Section struct {
	Index int
	Title string
	// HeaderStart..End is the full span including the header line;
	// BodyStart..End is the body after the header line.
	HeaderStart int
	BodyStart   int
	End         int
}

// ParseSections splits markdown into its "## " sections, in document order.
func ParseSections(content string) []Section {
	matches := sectionHeaderRE.FindAllStringIndex(content, -1)
	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		title := strings.TrimSpace(strings.TrimPrefix(content[m[0]:m[1]], "## "))
		sections = append(sections, Section{
			Index:       i,
			Title:       title,
			HeaderStart: m[0],
			BodyStart:   m[1],
			End:         end,
		})
	}
	return sections
}

// SectionTitles returns just the header titles, in order.
func SectionTitles(content string) []string {
	sections := ParseSections(content)
	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = s.Title
	}
	return titles
}

// Body returns the section's content between its header line and the next
// header (or EOF), trimmed of surrounding whitespace.
func (s Section) Body(content string) string {
	return strings.TrimSpace(content[s.BodyStart:s.End])
}

// Span returns the section's exact byte range including its own header line,
// for splice-back editing.
func (s Section) Span(content string) string {
	return content[s.HeaderStart:s.End]
}

// SplitChunks splits a section body on the first blank line into a files
// chunk (expected to be a bullet list of paths) and a prompt chunk (freeform
// instructions). With no blank line the whole body is the files chunk.
func SplitChunks(body string) (filesChunk, promptChunk string) {
	trimmed := strings.TrimSpace(body)
	if idx := strings.Index(trimmed, "\n\n"); idx >= 0 {
		return trimmed[:idx], trimmed[idx+2:]
	}
	return trimmed, ""
}

// ExtractFilePaths pulls path candidates out of a markdown bullet list: one
// per "- " or "* " line, with a single surrounding backtick pair stripped.
// The result is sorted and duplicate-free. Non-bullet lines are ignored.
func ExtractFilePaths(text string) []string {
	seen := map[string]bool{}
	var paths []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
			continue
		}
		candidate := strings.TrimSpace(line[2:])
		if strings.HasPrefix(candidate, "`") && strings.HasSuffix(candidate, "`") && len(candidate) >= 2 {
			candidate = candidate[1 : len(candidate)-1]
		}
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		paths = append(paths, candidate)
	}
	sort.Strings(paths)
	return paths
}

// Splice replaces the byte range start..end with replacement, leaving all
// surrounding content untouched. An edit that removes the section's own
// header is allowed; ordinals simply shift on the next parse.
func Splice(content string, start, end int, replacement string) string {
	return content[:start] + replacement + content[end:]
}

// StepStatus is the projection of a section ordinal against the watermark.
type StepStatus int

const (
	StepUpcoming StepStatus = iota
	StepCurrent
	StepCompleted
)

// StatusFor projects section index idx against watermark w. hasW is false
// when no step has ever been submitted for the plan.
func StatusFor(idx int, w int, hasW bool) StepStatus {
	if !hasW {
		return StepUpcoming
	}
	switch {
	case idx < w:
		return StepCompleted
	case idx == w:
		return StepCurrent
	default:
		return StepUpcoming
	}
}
