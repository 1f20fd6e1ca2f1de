package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/influence-explorer/explorer/internal/metrics"
)

const (
	windowTitle                 = "Influence Explorer"
	appSubtitle                 = "Network influence metrics for social accounts"
	searchPrompt                = "Search  "
	analysisPrompt              = "Analyze "
	searchPlaceholder           = "username or user ID"
	analysisPlaceholder         = "username to analyze"
	inputCursor                 = "_"
	rowCursor                   = "> "
	rowIndent                   = "  "
	usernameColumnWidth         = 22
	followerColumnWidth         = 10
	historyChartWidth           = 30
	messageSearching            = "Searching..."
	messageNoResultsFormat      = "No users found matching %q."
	messageManualAnalysisHint   = "This account is not in the dataset yet. Press a to analyze it."
	messageLoadingUser          = "Loading user data..."
	messageAnalyzingFormat      = "Analyzing %s..."
	messageStillAnalyzingFormat = "Still analyzing %s. Collecting followers can take a while."
	messageHistoryLoading       = "Loading history..."
	messageHistoryEmpty         = "No history recorded."
	messageNoFollowers          = "No followers in the dataset."
	verifiedBadge               = "✓ verified"
	sectionTopFollowers         = "Top followers"
	sectionHistory              = "History (oldest first)"
	helpLine                    = "/ search  tab focus  ↑/↓ move  enter select  h history  a analyze  ? help  q quit"
)

var helpEntries = [][2]string{
	{"/", "focus the search input"},
	{"tab", "cycle between search, results, detail and analysis"},
	{"↑/↓ or k/j", "move the cursor in results or top followers"},
	{"enter", "search, select the row under the cursor or start the analysis"},
	{"h", "toggle the metric history of the displayed account"},
	{"a", "analyze an account after a search found nothing"},
	{"esc", "leave an input"},
	{"ctrl+u", "clear the focused input"},
	{"q / ctrl+c", "quit"},
}

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	sections := []string{m.renderHeader(), m.renderSearch()}
	if status := m.renderSearchStatus(); status != "" {
		sections = append(sections, status)
	}
	if len(m.state.Results) > 0 {
		sections = append(sections, m.renderResults())
	}
	if m.analysisVisible() {
		sections = append(sections, m.renderAnalysis())
	}
	if status := m.renderSelectionStatus(); status != "" {
		sections = append(sections, status)
	}
	if m.state.Detail != nil {
		sections = append(sections, m.renderDetail())
	}
	sections = append(sections, helpStyle.Render(helpLine))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width > 0 {
		content = lipgloss.NewStyle().MaxWidth(m.width).Render(content)
	}
	return content
}

func (m Model) renderHeader() string {
	return titleStyle.Render(windowTitle) + "  " + subtitleStyle.Render(appSubtitle)
}

func (m Model) renderSearch() string {
	return m.renderInput(searchPrompt, m.searchInput, searchPlaceholder, m.focus == focusSearch)
}

func (m Model) renderInput(prompt string, value string, placeholder string, focused bool) string {
	text := valueStyle.Render(value)
	if value == "" && !focused {
		text = labelStyle.Render(placeholder)
	}
	if focused {
		text += inputCursor
		return activePanelStyle.Render(labelStyle.Render(prompt) + text)
	}
	return panelStyle.Render(labelStyle.Render(prompt) + text)
}

func (m Model) renderSearchStatus() string {
	switch {
	case m.state.Searching:
		return loadingStyle.Render(messageSearching)
	case m.state.SearchError != nil:
		return errorStyle.Render(m.state.SearchError.Message)
	case m.state.NoResults():
		return labelStyle.Render(fmt.Sprintf(messageNoResultsFormat, m.state.Query))
	default:
		return ""
	}
}

func (m Model) renderResults() string {
	rows := make([]string, 0, len(m.state.Results))
	for index, result := range m.state.Results {
		rows = append(rows, renderSummaryRow(metrics.DeriveSummary(result), m.focus == focusResults && index == m.resultCursor))
	}
	style := panelStyle
	if m.focus == focusResults {
		style = activePanelStyle
	}
	return style.Render(strings.Join(rows, "\n"))
}

func (m Model) analysisVisible() bool {
	return m.state.ManualAnalysisAvailable() || m.focus == focusAnalysis || m.state.Analyzing || m.state.AnalysisError != nil
}

func (m Model) renderAnalysis() string {
	lines := []string{}
	if m.state.ManualAnalysisAvailable() && m.focus != focusAnalysis {
		lines = append(lines, labelStyle.Render(messageManualAnalysisHint))
	}
	lines = append(lines, m.renderInput(analysisPrompt, m.analysisInput, analysisPlaceholder, m.focus == focusAnalysis))
	target := m.state.AnalysisTarget
	if m.state.AnalysisSignals.Quick {
		lines = append(lines, loadingStyle.Render(fmt.Sprintf(messageAnalyzingFormat, target)))
	}
	if m.state.AnalysisSignals.Long {
		lines = append(lines, longWaitStyle.Render(fmt.Sprintf(messageStillAnalyzingFormat, target)))
	}
	if m.state.AnalysisError != nil {
		lines = append(lines, errorStyle.Render(m.state.AnalysisError.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderSelectionStatus() string {
	lines := []string{}
	if m.state.SelectionSignals.Quick {
		lines = append(lines, loadingStyle.Render(messageLoadingUser))
	}
	if m.state.UserError != nil {
		lines = append(lines, errorStyle.Render(m.state.UserError.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	view := metrics.DeriveDetail(*m.state.Detail)
	profile := m.state.Detail.User

	heading := titleStyle.Render(view.Username)
	if view.Verified {
		heading += "  " + verifiedStyle.Render(verifiedBadge)
	}
	lines := []string{heading}
	if view.Description != "" {
		lines = append(lines, subtitleStyle.Render(view.Description))
	}
	lines = append(lines,
		"",
		renderKeyValue("Rank", rankColor(metrics.Rank(profile.PagerankPercentile)).Render(view.RankLabel)),
		renderKeyValue("Percentile", view.PercentileLabel),
		renderKeyValue("Followers", view.TotalFollowers),
		renderKeyValue("Following", view.TotalFollowing),
		renderKeyValue("Followers in dataset", view.FollowersInDataset),
		renderKeyValue("Following in dataset", view.FollowingInDataset),
		renderKeyValue("Reciprocal", view.ReciprocalConnections),
		renderKeyValue("Dataset coverage", view.CoverageLabel),
		"",
		labelStyle.Render(sectionTopFollowers),
	)
	if len(view.TopFollowers) == 0 {
		lines = append(lines, labelStyle.Render(messageNoFollowers))
	}
	for index, follower := range view.TopFollowers {
		lines = append(lines, renderSummaryRow(follower, m.focus == focusDetail && index == m.followerCursor))
	}
	if m.showHistory {
		lines = append(lines, "", m.renderHistory())
	}

	style := panelStyle
	if m.focus == focusDetail {
		style = activePanelStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderHistory() string {
	lines := []string{labelStyle.Render(sectionHistory)}
	switch {
	case m.state.LoadingHistory:
		return strings.Join(append(lines, loadingStyle.Render(messageHistoryLoading)), "\n")
	case m.state.HistoryError != nil:
		return strings.Join(append(lines, errorStyle.Render(m.state.HistoryError.Message)), "\n")
	}

	views := metrics.Chronological(m.state.History)
	if len(views) == 0 {
		return strings.Join(append(lines, labelStyle.Render(messageHistoryEmpty)), "\n")
	}
	percentiles := make([]float64, 0, len(views))
	for _, view := range views {
		percentiles = append(percentiles, view.Percentile)
	}
	lines = append(lines, sparkline(percentiles, historyChartWidth))
	for _, view := range views {
		lines = append(lines, fmt.Sprintf("%s  %s %s  %s %s",
			view.DateLabel,
			labelStyle.Render("score"), valueStyle.Render(fmt.Sprintf("%.6f", view.Score)),
			labelStyle.Render("percentile"), valueStyle.Render(fmt.Sprintf("%.1f%%", view.Percentile)),
		))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	lines := []string{titleStyle.Render(windowTitle), ""}
	for _, entry := range helpEntries {
		lines = append(lines, fmt.Sprintf("%s %s", valueStyle.Render(padRight(entry[0], 12)), labelStyle.Render(entry[1])))
	}
	lines = append(lines, "", helpStyle.Render("press any key to return"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) followerRows() []metrics.SummaryView {
	if m.state.Detail == nil {
		return nil
	}
	return metrics.DeriveDetail(*m.state.Detail).TopFollowers
}

func renderKeyValue(label string, value string) string {
	return labelStyle.Render(padRight(label, usernameColumnWidth)) + valueStyle.Render(value)
}

func renderSummaryRow(view metrics.SummaryView, selected bool) string {
	line := padRight(view.Username, usernameColumnWidth) + padLeft(view.Followers, followerColumnWidth) + " followers"
	if view.HasRank {
		line += "  " + view.RankLabel
	}
	if selected {
		return selectedStyle.Render(rowCursor + line)
	}
	return rowIndent + line
}

func padRight(text string, width int) string {
	runes := []rune(text)
	if len(runes) >= width {
		if width > 3 {
			return string(runes[:width-3]) + "..."
		}
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func padLeft(text string, width int) string {
	runes := []rune(text)
	if len(runes) >= width {
		return text
	}
	return strings.Repeat(" ", width-len(runes)) + text
}

// sparkline renders percentiles in [0,100] as a single line of block characters.
func sparkline(values []float64, width int) string {
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	resampled := values
	if len(values) > width {
		resampled = make([]float64, width)
		for index := range resampled {
			resampled[index] = values[index*len(values)/width]
		}
	}

	var builder strings.Builder
	for _, value := range resampled {
		ratio := value / 100
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		builder.WriteRune(blocks[int(ratio*float64(len(blocks)-1))])
	}
	return rankStyle.Render(builder.String())
}
