package tui

import (
	"github.com/alkime/onboard/internal/tui/components/labeledspinner"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// launch is shown once the flow is left for another route.
type launch struct {
	nav     *Navigator
	keys    KeyMap
	spinner labeledspinner.Model
}

func newLaunch(nav *Navigator, keys KeyMap) launch {
	return launch{
		nav:  nav,
		keys: keys,
		spinner: labeledspinner.New(spinner.Globe, "",
			"Your onboarding is saved.", "press enter to exit"),
	}
}

func (m launch) Init() tea.Cmd {
	return m.spinner.Init()
}

func (m launch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Submit) {
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m launch) View() string {
	route := "dashboard"
	if m.nav != nil && m.nav.Route() != "" {
		route = m.nav.Route()
	}

	return m.spinner.WithTitle("Opening " + route).View()
}
