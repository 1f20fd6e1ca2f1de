package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorPurple  = lipgloss.Color("#BD93F9")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")
	colorPanel   = lipgloss.Color("#44475A")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPurple).
				Padding(0, 1)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorMagenta)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorGray)
	labelStyle    = lipgloss.NewStyle().Foreground(colorGray)
	valueStyle    = lipgloss.NewStyle().Foreground(colorWhite)
	rankStyle     = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	verifiedStyle = lipgloss.NewStyle().Foreground(colorCyan)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
	loadingStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	longWaitStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(colorGreen)
	selectedStyle = lipgloss.NewStyle().Background(colorPanel).Foreground(colorWhite)
	helpStyle     = lipgloss.NewStyle().Foreground(colorGray)
)

// rankColor highlights accounts in the top of the dataset.
func rankColor(rank float64) lipgloss.Style {
	switch {
	case rank <= 10:
		return okStyle
	case rank <= 50:
		return rankStyle
	default:
		return valueStyle
	}
}
