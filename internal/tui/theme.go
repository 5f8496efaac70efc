package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the stats dashboard.
// Inspired by btop and Tokyo Night color scheme.
type Theme struct {
	BgDark      lipgloss.Color
	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	Border      lipgloss.Color
	Accent      lipgloss.Color
	Success     lipgloss.Color
	Warning     lipgloss.Color
	Error       lipgloss.Color
}

// DefaultTheme returns the default dark theme.
var DefaultTheme = Theme{
	BgDark:      lipgloss.Color("#1a1b26"),
	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	Border:      lipgloss.Color("#414868"),
	Accent:      lipgloss.Color("#7aa2f7"),
	Success:     lipgloss.Color("#9ece6a"),
	Warning:     lipgloss.Color("#e0af68"),
	Error:       lipgloss.Color("#f7768e"),
}

// Styles provides pre-configured lipgloss styles using the theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Panel   lipgloss.Style
	KeyHint lipgloss.Style
}

// NewStyles creates a new Styles instance from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Padding(0, 1),
		Label: lipgloss.NewStyle().
			Foreground(t.TextDim).
			Width(18),
		Value: lipgloss.NewStyle().
			Foreground(t.TextPrimary),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(1, 2),
		KeyHint: lipgloss.NewStyle().
			Foreground(t.TextDim),
	}
}

// DefaultStyles returns styles using the default theme.
var DefaultStyles = NewStyles(DefaultTheme)
