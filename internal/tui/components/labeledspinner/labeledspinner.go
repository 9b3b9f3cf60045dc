// Package labeledspinner renders a spinner with a title and supporting text.
package labeledspinner

import (
	"strings"

	"github.com/alkime/onboard/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Model displays a spinner with title, subtitle, and help text. The
// onboarding screen shows it inline while a command runs; the launch screen
// shows it in full.
type Model struct {
	Spinner  spinner.Model
	Title    string
	Subtitle string
	Help     string
}

// New creates a new labeled spinner with the given configuration.
func New(s spinner.Spinner, title, subtitle, help string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		Spinner:  sp,
		Title:    title,
		Subtitle: subtitle,
		Help:     help,
	}
}

// Init returns the initial command for the spinner.
func (ls Model) Init() tea.Cmd {
	return ls.Spinner.Tick
}

// Update handles spinner tick messages.
func (ls Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	if tickMsg, ok := teaMsg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		ls.Spinner, cmd = ls.Spinner.Update(tickMsg)

		return ls, cmd
	}

	return ls, nil
}

// WithTitle returns a copy showing title.
func (ls Model) WithTitle(title string) Model {
	ls.Title = title
	return ls
}

// View renders the spinner and title, then the subtitle and help when set.
func (ls Model) View() string {
	var sb strings.Builder

	sb.WriteString(ls.Spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Title.Render(ls.Title))

	for _, line := range []string{style.Subtitle.Render(ls.Subtitle), style.Help.Render(ls.Help)} {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(line)
	}

	return sb.String()
}

// Inline renders the spinner and title on one line.
func (ls Model) Inline() string {
	return ls.Spinner.View() + " " + style.Muted.Render(ls.Title)
}
