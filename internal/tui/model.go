// Package tui is the terminal front end of the onboarding wizard.
package tui

import (
	"context"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/tui/components/phases"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/alkime/onboard/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	phaseOnboarding = "onboarding"
	phaseLaunch     = "launch"
)

// Config wires the TUI to a running wizard.
type Config struct {
	//nolint:containedctx // handlers run on the program's lifetime
	Ctx    context.Context
	Cancel context.CancelFunc

	Flow       flow.Definition
	Wizard     *wizard.Controller
	Dispatcher *voice.Dispatcher
	Navigator  *Navigator

	// Listener is the transcript source. When Typed is set, typed lines are
	// submitted through it; otherwise they are dispatched directly.
	Listener speech.Listener
	Typed    *speech.TypedListener

	// Mic and Levels are nil without a microphone.
	Mic    uictl.Knob
	Levels uictl.Levels[int16]

	Progress <-chan speech.Progress
}

// Model is the root TUI model.
type Model struct {
	cfg    Config
	keys   KeyMap
	phases phases.Model
}

// New creates the root model: onboarding, then the launch screen.
func New(cfg Config) Model {
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}

	keys := DefaultKeyMap()

	return Model{
		cfg:  cfg,
		keys: keys,
		phases: phases.New([]phases.Phase{
			phases.NewPhase(phaseOnboarding, newOnboarding(cfg, keys)),
			phases.NewPhase(phaseLaunch, newLaunch(cfg.Navigator, keys)),
		}),
	}
}

func (m Model) Init() tea.Cmd {
	return m.phases.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Quit) {
		if m.cfg.Cancel != nil {
			m.cfg.Cancel()
		}
		return m, tea.Quit
	}

	mdl, cmd := m.phases.Update(msg)
	m.phases = mdl.(phases.Model) //nolint:forcetypeassert // phases.Update returns its own type

	return m, cmd
}

func (m Model) View() string {
	return m.phases.View()
}

// Phase returns the name of the active screen.
func (m Model) Phase() string {
	return m.phases.CurrentPhaseName()
}
