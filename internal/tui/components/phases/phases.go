// Package phases sequences full-screen TUI models: onboarding first, then
// the launch screen once the flow is left.
package phases

import (
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// NextPhaseMsg advances the container to the following phase.
type NextPhaseMsg struct{}

// GoToMsg switches the container to the named phase.
type GoToMsg struct {
	Name string
}

// Next returns a command that advances the container.
func Next() tea.Cmd {
	return func() tea.Msg { return NextPhaseMsg{} }
}

// GoTo returns a command that switches to the named phase.
func GoTo(name string) tea.Cmd {
	return func() tea.Msg { return GoToMsg{Name: name} }
}

// Phase is a named screen.
type Phase struct {
	Name string
	mdl  tea.Model
}

// NewPhase names mdl.
func NewPhase(name string, mdl tea.Model) Phase {
	return Phase{Name: name, mdl: mdl}
}

func (p Phase) update(msg tea.Msg) (Phase, tea.Cmd) {
	var cmd tea.Cmd
	p.mdl, cmd = p.mdl.Update(msg)
	return p, cmd
}

// Model shows one phase at a time. Only the shown phase receives messages,
// except window sizes which reach every phase.
type Model struct {
	phases []Phase
	curr   int
}

// New creates a container starting at the first phase.
func New(phases []Phase) Model {
	return Model{phases: phases}
}

func (m Model) Init() tea.Cmd {
	return m.phases[m.curr].mdl.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cmds := make([]tea.Cmd, len(m.phases))
		for i := range m.phases {
			m.phases[i], cmds[i] = m.phases[i].update(msg)
		}
		return m, tea.Batch(cmds...)

	case NextPhaseMsg:
		return m.switchTo(m.curr + 1)

	case GoToMsg:
		return m.switchTo(slices.IndexFunc(m.phases, func(p Phase) bool {
			return p.Name == msg.Name
		}))
	}

	var cmd tea.Cmd
	m.phases[m.curr], cmd = m.phases[m.curr].update(msg)

	return m, cmd
}

// switchTo shows phase idx and initializes it. Out of range is a no-op.
func (m Model) switchTo(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.phases) || idx == m.curr {
		return m, nil
	}

	m.curr = idx

	return m, m.phases[idx].mdl.Init()
}

func (m Model) View() string {
	return m.phases[m.curr].mdl.View()
}

// Index returns the position of the current phase.
func (m Model) Index() int {
	return m.curr
}

// CurrentPhaseName returns the name of the current phase.
func (m Model) CurrentPhaseName() string {
	return m.phases[m.curr].Name
}
