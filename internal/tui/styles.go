package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	fgColor        = lipgloss.Color("#F9FAFB") // Light
	dimColor       = lipgloss.Color("#52525B")

	AppStyle    = lipgloss.NewStyle().Padding(1, 2)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	SyncStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	// Shown above the panels when the last refresh failed
	WarnBannerStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	ErrBannerStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	ListPanelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(mutedColor).Padding(0, 1)
	DetailPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primaryColor).Padding(1, 2)
	PanelTitleStyle  = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)

	// Event list rows
	SelectedItemStyle   = lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true).Padding(0, 1)
	NormalItemStyle     = lipgloss.NewStyle().Foreground(fgColor).Padding(0, 1)
	TimeStyle           = lipgloss.NewStyle().Foreground(secondaryColor).Width(6)
	CountdownStyle      = lipgloss.NewStyle().Foreground(mutedColor).Width(10)
	LiveCountdownStyle  = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true).Width(10)
	EmptyStyle          = lipgloss.NewStyle().Foreground(mutedColor)
	NowDividerStyle     = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	InProgressStyle     = lipgloss.NewStyle().Background(secondaryColor).Foreground(fgColor).Bold(true).Padding(0, 1)
	UpcomingStyle       = lipgloss.NewStyle().Foreground(accentColor)
	TitleStyle          = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle          = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Width(14)
	ValueStyle          = lipgloss.NewStyle().Foreground(fgColor)
	LinkStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Underline(true)
	StatusAcceptedStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	StatusPendingStyle  = lipgloss.NewStyle().Foreground(accentColor)
	HintStyle           = lipgloss.NewStyle().Foreground(dimColor).Italic(true)

	HelpStyle    = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
)
