package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary   = lipgloss.Color("#2563EB")
	positive  = lipgloss.Color("#10B981")
	negative  = lipgloss.Color("#EF4444")
	muted     = lipgloss.Color("#6B7280")
	warning   = lipgloss.Color("#F59E0B")
	borderCol = lipgloss.Color("#374151")

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderCol).
			Padding(0, 1).
			MarginTop(1)

	labelStyle    = lipgloss.NewStyle().Foreground(muted).Width(24)
	positiveStyle = lipgloss.NewStyle().Foreground(positive).Bold(true)
	negativeStyle = lipgloss.NewStyle().Foreground(negative).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	noticeStyle   = lipgloss.NewStyle().Foreground(warning)
	errorStyle    = lipgloss.NewStyle().Foreground(negative)
	statusStyle   = lipgloss.NewStyle().Foreground(positive)
)
