package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Notifier forwards workflow change notifications to a running program. Notify never blocks: the
// workflow may call it from inside Update, while the program's event loop is busy.
type Notifier struct {
	mutex   sync.Mutex
	program *tea.Program
}

// Attach routes later notifications to the program.
func (notifier *Notifier) Attach(program *tea.Program) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.program = program
}

// Notify asks the program to re-read the workflow state. It is a no-op before Attach.
func (notifier *Notifier) Notify() {
	notifier.mutex.Lock()
	program := notifier.program
	notifier.mutex.Unlock()
	if program == nil {
		return
	}
	go program.Send(StateChanged())
}

// Run starts the full-screen program and blocks until the user quits or the context ends.
func Run(ctx context.Context, explorer Workflow, notifier *Notifier, options ...tea.ProgramOption) error {
	programOptions := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, options...)
	program := tea.NewProgram(NewModel(explorer), programOptions...)
	if notifier != nil {
		notifier.Attach(program)
	}
	_, err := program.Run()
	return err
}
