package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/influence-explorer/explorer/internal/workflow"
)

// Workflow is the orchestrator surface driven by the terminal UI.
type Workflow interface {
	SubmitSearch(query string) bool
	SelectAccount(identifier string) bool
	SubmitAnalysis(username string) bool
	LoadHistory(identifier string) bool
	State() workflow.State
}

// focusArea identifies the region receiving key presses.
type focusArea int

const (
	focusSearch focusArea = iota
	focusResults
	focusDetail
	focusAnalysis
	focusCount
)

// stateChangedMsg tells the model to re-read the workflow state.
type stateChangedMsg struct{}

// StateChanged returns the message the workflow change notifier delivers to the program.
func StateChanged() tea.Msg {
	return stateChangedMsg{}
}

// Model is the bubbletea model of the explorer.
type Model struct {
	workflow Workflow
	state    workflow.State
	width    int
	height   int

	focus         focusArea
	searchInput   string
	analysisInput string

	resultCursor   int
	followerCursor int
	showHistory    bool
	showHelp       bool

	// renderedRevision is the detail revision the detail region was last reset for.
	renderedRevision uint64
}

// NewModel creates the explorer model with the search input focused.
func NewModel(explorer Workflow) Model {
	state := explorer.State()
	return Model{
		workflow:         explorer,
		state:            state,
		focus:            focusSearch,
		renderedRevision: state.DetailRevision,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle(windowTitle)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case stateChangedMsg:
		m = m.refresh()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// refresh pulls a new snapshot. A new detail revision moves focus to the detail region and resets
// its cursor, the terminal counterpart of scrolling the detail into view.
func (m Model) refresh() Model {
	m.state = m.workflow.State()
	if m.state.DetailRevision != m.renderedRevision {
		m.renderedRevision = m.state.DetailRevision
		m.followerCursor = 0
		m.showHistory = false
		if m.state.Detail != nil && m.focus != focusSearch && m.focus != focusAnalysis {
			m.focus = focusDetail
		}
	}
	m.resultCursor = clampCursor(m.resultCursor, len(m.state.Results))
	m.followerCursor = clampCursor(m.followerCursor, len(m.followerRows()))
	if m.focus == focusAnalysis && !m.state.ManualAnalysisAvailable() && !m.state.Analyzing {
		m.focus = focusSearch
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.focus == focusSearch || m.focus == focusAnalysis {
		return m.handleInputKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "/":
		m.focus = focusSearch
	case "tab":
		m.focus = m.nextFocus()
	case "a":
		if m.state.ManualAnalysisAvailable() {
			m.focus = focusAnalysis
		}
	case "up", "k":
		m = m.moveCursor(-1)
	case "down", "j":
		m = m.moveCursor(1)
	case "enter":
		m = m.selectUnderCursor()
	case "h":
		m = m.toggleHistory()
	case "esc":
		m.focus = focusResults
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := &m.searchInput
	if m.focus == focusAnalysis {
		input = &m.analysisInput
	}

	switch msg.Type {
	case tea.KeyEnter:
		if m.focus == focusAnalysis {
			if m.workflow.SubmitAnalysis(m.analysisInput) {
				m.focus = focusDetail
			}
		} else if m.workflow.SubmitSearch(m.searchInput) {
			m.focus = focusResults
			m.resultCursor = 0
		}
		m = m.refresh()
	case tea.KeyBackspace:
		if runes := []rune(*input); len(runes) > 0 {
			*input = string(runes[:len(runes)-1])
		}
	case tea.KeyCtrlU:
		*input = ""
	case tea.KeyEsc:
		m.focus = focusResults
	case tea.KeyTab:
		m.focus = m.nextFocus()
	case tea.KeySpace:
		*input += " "
	case tea.KeyRunes:
		*input += string(msg.Runes)
	}
	return m, nil
}

func (m Model) nextFocus() focusArea {
	next := m.focus
	for step := focusArea(0); step < focusCount; step++ {
		next = (next + 1) % focusCount
		if m.focusable(next) {
			return next
		}
	}
	return m.focus
}

func (m Model) focusable(area focusArea) bool {
	switch area {
	case focusResults:
		return len(m.state.Results) > 0
	case focusDetail:
		return m.state.Detail != nil
	case focusAnalysis:
		return m.state.ManualAnalysisAvailable()
	default:
		return true
	}
}

func (m Model) moveCursor(delta int) Model {
	switch m.focus {
	case focusResults:
		m.resultCursor = clampCursor(m.resultCursor+delta, len(m.state.Results))
	case focusDetail:
		m.followerCursor = clampCursor(m.followerCursor+delta, len(m.followerRows()))
	}
	return m
}

func (m Model) selectUnderCursor() Model {
	var username string
	switch m.focus {
	case focusResults:
		if len(m.state.Results) == 0 {
			return m
		}
		username = m.state.Results[m.resultCursor].Username
	case focusDetail:
		rows := m.followerRows()
		if len(rows) == 0 {
			return m
		}
		username = rows[m.followerCursor].Username
	default:
		return m
	}
	m.workflow.SelectAccount(username)
	return m.refresh()
}

func (m Model) toggleHistory() Model {
	if m.state.Detail == nil {
		return m
	}
	m.showHistory = !m.showHistory
	if !m.showHistory {
		return m
	}
	profile := m.state.Detail.User
	if m.state.HistoryFor != "" && profile.MatchesIdentifier(m.state.HistoryFor) && m.state.HistoryError == nil {
		return m
	}
	m.workflow.LoadHistory(profile.Username)
	return m.refresh()
}

func clampCursor(cursor int, length int) int {
	if length == 0 || cursor < 0 {
		return 0
	}
	if cursor >= length {
		return length - 1
	}
	return cursor
}
