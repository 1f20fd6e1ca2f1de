package tui_test

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/influence-explorer/explorer/internal/escalation"
	"github.com/influence-explorer/explorer/internal/gateway"
	"github.com/influence-explorer/explorer/internal/tui"
	"github.com/influence-explorer/explorer/internal/workflow"
)

type workflowStub struct {
	mutex sync.Mutex
	state workflow.State
	calls []string
}

func (stub *workflowStub) record(call string) bool {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.calls = append(stub.calls, call)
	return true
}

func (stub *workflowStub) SubmitSearch(query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	return stub.record("search:" + query)
}

func (stub *workflowStub) SelectAccount(identifier string) bool {
	return stub.record("select:" + identifier)
}

func (stub *workflowStub) SubmitAnalysis(username string) bool {
	if strings.TrimSpace(username) == "" {
		return false
	}
	return stub.record("analyze:" + username)
}

func (stub *workflowStub) LoadHistory(identifier string) bool {
	return stub.record("history:" + identifier)
}

func (stub *workflowStub) State() workflow.State {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return stub.state
}

func (stub *workflowStub) setState(state workflow.State) {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	stub.state = state
}

func (stub *workflowStub) recordedCalls() []string {
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	return append([]string{}, stub.calls...)
}

func float64Pointer(value float64) *float64 {
	return &value
}

func int64Pointer(value int64) *int64 {
	return &value
}

func update(t *testing.T, model tui.Model, msg tea.Msg) (tui.Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(msg)
	typed, ok := updated.(tui.Model)
	if !ok {
		t.Fatalf("unexpected model type %T", updated)
	}
	return typed, cmd
}

func typeText(t *testing.T, model tui.Model, text string) tui.Model {
	t.Helper()
	for _, character := range text {
		if character == ' ' {
			model, _ = update(t, model, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{character}})
	}
	return model
}

func pressKey(t *testing.T, model tui.Model, keyType tea.KeyType) tui.Model {
	t.Helper()
	model, _ = update(t, model, tea.KeyMsg{Type: keyType})
	return model
}

func pressRune(t *testing.T, model tui.Model, character rune) tui.Model {
	t.Helper()
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{character}})
	return model
}

func aliceDetail() *gateway.AccountDetail {
	return &gateway.AccountDetail{
		User: gateway.AccountProfile{
			UserID:             "1001",
			Username:           "alice",
			IsVerified:         true,
			FollowerCount:      int64Pointer(1000),
			PagerankPercentile: float64Pointer(87.3),
		},
		NetworkStats: gateway.NetworkStats{FollowersInDataset: int64Pointer(400)},
		TopFollowers: []gateway.AccountSummary{
			{Username: "bob", PagerankPercentile: float64Pointer(97.5)},
			{Username: "carol", PagerankPercentile: float64Pointer(55)},
		},
	}
}

func TestSearchInputSubmitsTypedQuery(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)

	model = typeText(t, model, "quinn alice")
	model = pressKey(t, model, tea.KeyBackspace)
	model = pressKey(t, model, tea.KeyEnter)

	calls := stub.recordedCalls()
	if len(calls) != 1 || calls[0] != "search:quinn alic" {
		t.Fatalf("unexpected calls %v", calls)
	}
	if !strings.Contains(model.View(), "quinn alic") {
		t.Fatalf("expected the typed query to stay visible")
	}
}

func TestBlankSearchDoesNothing(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	model = typeText(t, model, "   ")
	pressKey(t, model, tea.KeyEnter)
	if calls := stub.recordedCalls(); len(calls) != 0 {
		t.Fatalf("expected no calls, got %v", calls)
	}
}

func TestResultsShowRankOnlyWhenScored(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	stub.setState(workflow.State{
		Query:           "ali",
		SearchPerformed: true,
		Results: []gateway.AccountSummary{
			{Username: "alice", FollowerCount: int64Pointer(1000), PagerankScore: float64Pointer(0.004), PagerankPercentile: float64Pointer(87.3)},
			{Username: "alina", FollowerCount: int64Pointer(12), PagerankPercentile: float64Pointer(3)},
		},
	})
	model, _ = update(t, model, tui.StateChanged())

	view := model.View()
	if !strings.Contains(view, "Top 12.7%") || !strings.Contains(view, "1,000 followers") {
		t.Fatalf("expected ranked alice row, got\n%s", view)
	}
	if strings.Contains(view, "Top 97.0%") {
		t.Fatalf("unscored row must not show a rank label\n%s", view)
	}
}

func TestSelectingResultRowSelectsAccount(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	model = typeText(t, model, "a")
	model = pressKey(t, model, tea.KeyEnter)
	stub.setState(workflow.State{
		Query:           "a",
		SearchPerformed: true,
		Results:         []gateway.AccountSummary{{Username: "alice"}, {Username: "dave"}},
	})
	model, _ = update(t, model, tui.StateChanged())

	model = pressKey(t, model, tea.KeyDown)
	model = pressKey(t, model, tea.KeyDown)
	pressKey(t, model, tea.KeyEnter)

	calls := stub.recordedCalls()
	if calls[len(calls)-1] != "select:dave" {
		t.Fatalf("expected dave to be selected, got %v", calls)
	}
}

func TestEmptySearchOffersManualAnalysis(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	model = pressKey(t, model, tea.KeyEsc)
	if strings.Contains(model.View(), "Press a to analyze") {
		t.Fatalf("manual analysis must not be offered before a search")
	}

	stub.setState(workflow.State{Query: "zzz_nonexistent", SearchPerformed: true, Results: []gateway.AccountSummary{}})
	model, _ = update(t, model, tui.StateChanged())
	view := model.View()
	if !strings.Contains(view, `No users found matching "zzz_nonexistent".`) || !strings.Contains(view, "Press a to analyze") {
		t.Fatalf("expected empty-search affordance, got\n%s", view)
	}

	model = pressRune(t, model, 'a')
	model = typeText(t, model, "zzz_nonexistent")
	pressKey(t, model, tea.KeyEnter)

	calls := stub.recordedCalls()
	if calls[len(calls)-1] != "analyze:zzz_nonexistent" {
		t.Fatalf("expected analysis call, got %v", calls)
	}
}

func TestEscalationMessages(t *testing.T) {
	testCases := []struct {
		name      string
		state     workflow.State
		expect    []string
		notExpect []string
	}{
		{
			name:      "analysis quick signal",
			state:     workflow.State{Analyzing: true, AnalysisTarget: "zoe", AnalysisSignals: escalation.Signals{Quick: true}},
			expect:    []string{"Analyzing zoe..."},
			notExpect: []string{"Still analyzing"},
		},
		{
			name:      "analysis long signal",
			state:     workflow.State{Analyzing: true, AnalysisTarget: "zoe", AnalysisSignals: escalation.Signals{Long: true}},
			expect:    []string{"Still analyzing zoe."},
			notExpect: []string{"Analyzing zoe..."},
		},
		{
			name:      "analysis between signals",
			state:     workflow.State{Analyzing: true, AnalysisTarget: "zoe"},
			notExpect: []string{"Analyzing zoe...", "Still analyzing"},
		},
		{
			name:   "selection quick signal",
			state:  workflow.State{LoadingUser: true, SelectionSignals: escalation.Signals{Quick: true}},
			expect: []string{"Loading user data..."},
		},
		{
			name:   "errors per axis",
			state:  workflow.State{SearchPerformed: true, SearchError: &workflow.AxisError{Message: "Failed to search users"}, UserError: &workflow.AxisError{Message: "User not found"}},
			expect: []string{"Failed to search users", "User not found"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			stub := &workflowStub{}
			model := tui.NewModel(stub)
			stub.setState(testCase.state)
			model, _ = update(t, model, tui.StateChanged())
			view := model.View()
			for _, expected := range testCase.expect {
				if !strings.Contains(view, expected) {
					t.Fatalf("expected %q in\n%s", expected, view)
				}
			}
			for _, unexpected := range testCase.notExpect {
				if strings.Contains(view, unexpected) {
					t.Fatalf("unexpected %q in\n%s", unexpected, view)
				}
			}
		})
	}
}

func TestNewDetailFocusesFollowers(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	model = pressKey(t, model, tea.KeyEsc)

	stub.setState(workflow.State{Detail: aliceDetail(), DetailRevision: 1})
	model, _ = update(t, model, tui.StateChanged())

	view := model.View()
	for _, expected := range []string{"alice", "✓ verified", "Top 12.7%", "40.0%", "bob", "Top 2.5%"} {
		if !strings.Contains(view, expected) {
			t.Fatalf("expected %q in detail\n%s", expected, view)
		}
	}

	model = pressKey(t, model, tea.KeyDown)
	pressKey(t, model, tea.KeyEnter)
	calls := stub.recordedCalls()
	if len(calls) != 1 || calls[0] != "select:carol" {
		t.Fatalf("expected follower selection, got %v", calls)
	}
}

func TestHistoryToggleLoadsAndRendersChronologically(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)
	model = pressKey(t, model, tea.KeyEsc)
	stub.setState(workflow.State{Detail: aliceDetail(), DetailRevision: 1})
	model, _ = update(t, model, tui.StateChanged())

	model = pressRune(t, model, 'h')
	if calls := stub.recordedCalls(); len(calls) != 1 || calls[0] != "history:alice" {
		t.Fatalf("expected history load, got %v", calls)
	}

	stub.setState(workflow.State{
		Detail:         aliceDetail(),
		DetailRevision: 1,
		HistoryFor:     "alice",
		History: []gateway.HistoryPoint{
			{Date: "2024-03-01", PagerankPercentile: float64Pointer(87.3)},
			{Date: "2024-01-01", PagerankPercentile: float64Pointer(80.1)},
		},
	})
	model, _ = update(t, model, tui.StateChanged())
	view := model.View()
	older := strings.Index(view, "2024-01-01")
	newer := strings.Index(view, "2024-03-01")
	if older < 0 || newer < 0 || older > newer {
		t.Fatalf("expected chronological history\n%s", view)
	}

	model = pressRune(t, model, 'h')
	model = pressRune(t, model, 'h')
	if calls := stub.recordedCalls(); len(calls) != 1 {
		t.Fatalf("expected loaded history to be reused, got %v", calls)
	}
	if !strings.Contains(model.View(), "History (oldest first)") {
		t.Fatalf("expected history section")
	}
}

func TestQuitKeys(t *testing.T) {
	stub := &workflowStub{}
	model := tui.NewModel(stub)

	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd != nil {
		t.Fatalf("q typed into the search input must not quit")
	}
	_, cmd = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, isQuit := cmd().(tea.QuitMsg); !isQuit {
		t.Fatalf("expected quit message")
	}
}
