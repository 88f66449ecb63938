package tui

import (
	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeLight ThemeName = "light"
	ThemeDark  ThemeName = "dark"
)

type Theme struct {
	Name ThemeName

	// Colors
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	Accent      lipgloss.AdaptiveColor
	Success     lipgloss.AdaptiveColor
	Warn        lipgloss.AdaptiveColor
	Error       lipgloss.AdaptiveColor
	Border      lipgloss.AdaptiveColor

	// Styles
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Footer   lipgloss.Style
	Notice   lipgloss.Style
	ErrorMsg lipgloss.Style
	InputBox lipgloss.Style
	Spinner  lipgloss.Style
	Selected lipgloss.Style
	Row      lipgloss.Style

	// Section status colouring against the watermark.
	StepCompleted lipgloss.Style
	StepCurrent   lipgloss.Style
	StepUpcoming  lipgloss.Style
}

// NewTheme maps the configured theme name onto a palette. Unknown names get
// the light theme.
func NewTheme(name string) Theme {
	switch ThemeName(name) {
	case ThemeDark:
		return newDarkTheme()
	default:
		return newLightTheme()
	}
}

func newLightTheme() Theme {
	t := Theme{
		Name:        ThemeLight,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1d2433", Dark: "#f2f2f2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#4a5568", Dark: "#c7c7c7"},
		Accent:      lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#7aa2ff"},
		Success:     lipgloss.AdaptiveColor{Light: "#0f766e", Dark: "#46d1b7"},
		Warn:        lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f4b27d"},
		Error:       lipgloss.AdaptiveColor{Light: "#b42318", Dark: "#ff7a7a"},
		Border:      lipgloss.AdaptiveColor{Light: "#cbd5e0", Dark: "#3a3a3a"},
	}
	return applyStyles(t)
}

func newDarkTheme() Theme {
	t := Theme{
		Name:        ThemeDark,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#111827", Dark: "#eaeaea"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#374151", Dark: "#b7b7b7"},
		Accent:      lipgloss.AdaptiveColor{Light: "#2563eb", Dark: "#5cc8ff"},
		Success:     lipgloss.AdaptiveColor{Light: "#059669", Dark: "#46d1b7"},
		Warn:        lipgloss.AdaptiveColor{Light: "#d97706", Dark: "#f4b27d"},
		Error:       lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#ff7a7a"},
		Border:      lipgloss.AdaptiveColor{Light: "#9ca3af", Dark: "#2a2a2a"},
	}
	return applyStyles(t)
}

func applyStyles(t Theme) Theme {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.Subtitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextMuted)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.Notice = lipgloss.NewStyle().Foreground(t.Warn)
	t.ErrorMsg = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	t.InputBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.Selected = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.Row = lipgloss.NewStyle().Foreground(t.TextPrimary)

	t.StepCompleted = lipgloss.NewStyle().Foreground(t.Success)
	t.StepCurrent = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	t.StepUpcoming = lipgloss.NewStyle().Foreground(t.TextMuted)
	return t
}

// StepStyle picks the row style for a section's watermark status.
func (t Theme) StepStyle(completed, current bool) lipgloss.Style {
	switch {
	case current:
		return t.StepCurrent
	case completed:
		return t.StepCompleted
	default:
		return t.StepUpcoming
	}
}
