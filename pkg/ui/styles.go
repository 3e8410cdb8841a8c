package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// Brand colors
	Primary   = lipgloss.Color("#2D2B6B") // Indigo, matches the default evidence border
	Secondary = lipgloss.Color("#00D4AA") // Teal

	// Severity colors, the standard finding palette
	Critical      = lipgloss.Color("#A60023")
	High          = lipgloss.Color("#FF7E79")
	Medium        = lipgloss.Color("#F4B083")
	Low           = lipgloss.Color("#A8D08D")
	Informational = lipgloss.Color("#8EAADB")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")

	Light = lipgloss.Color("#FAFAFA")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Light).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Light).
			Underline(true)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(Light)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(Light).
			Bold(true)

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	FormatStyle = lipgloss.NewStyle().
			Foreground(Light).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	PathStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Secondary)
)

// SeverityStyle returns the badge style for a finding severity label.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch severity {
	case "Critical":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Critical)
	case "High":
		return base.Foreground(lipgloss.Color("#000000")).Background(High)
	case "Medium":
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case "Low":
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case "Informational", "Info":
		return base.Foreground(lipgloss.Color("#000000")).Background(Informational)
	default:
		return base.Foreground(Muted)
	}
}

// ResultStyle returns the style for a lint result.
func ResultStyle(result string) lipgloss.Style {
	switch result {
	case "success":
		return PassStyle
	case "warning":
		return WarnStyle
	case "failed":
		return FailStyle
	default:
		return StatLabelStyle
	}
}
