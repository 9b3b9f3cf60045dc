package tui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/tui/components/labeledspinner"
	"github.com/alkime/onboard/internal/tui/components/micmeter"
	"github.com/alkime/onboard/internal/tui/components/narration"
	"github.com/alkime/onboard/internal/tui/components/phases"
	"github.com/alkime/onboard/internal/tui/components/steplist"
	"github.com/alkime/onboard/internal/tui/style"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/alkime/onboard/pkg/collections"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const meterWidth = 24

type (
	transcriptMsg string
	progressMsg   speech.Progress
	dispatchedMsg struct {
		transcript string
		outcome    voice.Outcome
		err        error
	}
)

// onboarding is the main screen: the step list, the spoken prompt and the
// command input.
type onboarding struct {
	cfg       Config
	keys      KeyMap
	help      help.Model
	input     textinput.Model
	spinner   labeledspinner.Model
	meter     micmeter.Model
	narration narration.Model
	bar       progress.Model
	details   map[string][]string

	heard  string
	status string
}

func newOnboarding(cfg Config, keys KeyMap) onboarding {
	input := textinput.New()
	input.Placeholder = `say "yes", "continue" or "let's go"`
	input.Prompt = "› "
	input.CharLimit = 256
	input.Focus()

	keys.ToggleMic.SetEnabled(cfg.Mic != nil)

	return onboarding{
		cfg:     cfg,
		keys:    keys,
		help:    help.New(),
		input:   input,
		spinner: labeledspinner.New(spinner.Dot, "Thinking", "", ""),
		meter:   micmeter.New(cfg.Mic, cfg.Levels, meterWidth),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		details: stepDetails(cfg.Flow),
	}
}

func (m onboarding) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Init(),
		m.meter.Init(),
		m.waitForTranscript(),
		m.waitForProgress(),
	)
}

func (m onboarding) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		case key.Matches(msg, m.keys.ToggleMic):
			m.cfg.Mic.Toggle()
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.moveExpanded(-1)
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.moveExpanded(1)
			return m, nil
		case key.Matches(msg, m.keys.Revisit):
			m.revisit()
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case transcriptMsg:
		m.heard = string(msg)
		return m, tea.Batch(m.dispatch(string(msg)), m.waitForTranscript())

	case dispatchedMsg:
		m.status = describe(msg, m.cfg.Flow, m.cfg.Wizard)
		if msg.outcome == voice.OutcomeNavigated && msg.err == nil {
			return m, phases.GoTo(phaseLaunch)
		}
		return m, nil

	case progressMsg:
		m.narration = m.narration.Update(speech.Progress(msg))
		return m, m.waitForProgress()

	case micmeter.TickMsg:
		var cmd tea.Cmd
		m.meter, cmd = m.meter.Update(msg)
		return m, cmd
	}

	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m onboarding) View() string {
	var b strings.Builder

	snap := m.cfg.Wizard.Snapshot()
	done, total := len(snap.CompletedStepIDs), len(snap.Steps)

	b.WriteString(style.Title.Render(m.cfg.Flow.Name))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(float64(done) / float64(max(total, 1))))
	b.WriteString(style.Muted.Render(fmt.Sprintf(" %d/%d", done, total)))
	b.WriteString("\n\n")
	b.WriteString(steplist.View(snap, m.details))
	b.WriteString("\n\n")

	if v := m.narration.View(); v != "" {
		b.WriteString(v)
		b.WriteString("\n\n")
	}

	if m.heard != "" {
		b.WriteString(style.Label.Render("You said: "))
		b.WriteString(m.heard)
		b.WriteString("\n")
	}

	if m.cfg.Dispatcher.IsProcessing() {
		b.WriteString(m.spinner.Inline())
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.meter.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

// submit handles the input line. Lines starting with ":" edit form data;
// anything else is treated as a transcript.
func (m onboarding) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, ":") {
		m.status = m.runCommand(text[1:])
		return m, nil
	}

	if m.cfg.Typed != nil {
		if !m.cfg.Typed.Submit(text) {
			m.status = style.Warning.Render("Still working on the last command")
		}
		return m, nil
	}

	m.heard = text

	return m, m.dispatch(text)
}

// runCommand applies ":set key=value". Comma separated values become a list.
func (m onboarding) runCommand(line string) string {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	if name != "set" {
		return style.Error.Render(fmt.Sprintf("Unknown command %q", name))
	}

	k, v, ok := strings.Cut(strings.TrimSpace(arg), "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return style.Error.Render("Usage: :set key=value[,value]")
	}

	m.cfg.Wizard.UpdateFormData(map[string]any{k: parseValue(v)})

	return style.Success.Render("Updated " + k)
}

func parseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil
	case raw == "true":
		return true
	case raw == "false":
		return false
	case strings.Contains(raw, ","):
		var out []any
		for part := range strings.SplitSeq(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return raw
	}
}

// moveExpanded expands the nearest interactive step in direction delta.
func (m onboarding) moveExpanded(delta int) {
	wiz := m.cfg.Wizard
	steps := wiz.Steps()

	from := wiz.ExpandedStepID()
	if from == "" {
		from = wiz.CurrentStepID()
	}

	idx := slices.IndexFunc(steps, func(s flow.Step) bool { return s.ID == from })
	for i := idx + delta; i >= 0 && i < len(steps); i += delta {
		if wiz.IsInteractive(steps[i].ID) {
			_ = wiz.Expand(steps[i].ID)
			return
		}
	}
}

// revisit makes the expanded completed step current again.
func (m *onboarding) revisit() {
	wiz := m.cfg.Wizard

	id := wiz.ExpandedStepID()
	if id == "" || id == wiz.CurrentStepID() || wiz.StepStatus(id) != wizard.StatusCompleted {
		return
	}

	wiz.GoToStep(id)
	if step, ok := m.cfg.Flow.Step(id); ok {
		m.status = style.Subtitle.Render("Back on " + step.Title)
	}
}

func (m onboarding) dispatch(text string) tea.Cmd {
	ctx := m.cfg.Ctx
	d := m.cfg.Dispatcher

	return func() tea.Msg {
		outcome, err := d.Dispatch(ctx, text)
		return dispatchedMsg{transcript: text, outcome: outcome, err: err}
	}
}

func (m onboarding) waitForTranscript() tea.Cmd {
	if m.cfg.Listener == nil {
		return nil
	}

	ch := m.cfg.Listener.Transcripts()

	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return transcriptMsg(text)
	}
}

func (m onboarding) waitForProgress() tea.Cmd {
	if m.cfg.Progress == nil {
		return nil
	}

	ch := m.cfg.Progress

	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func describe(msg dispatchedMsg, def flow.Definition, wiz *wizard.Controller) string {
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return ""
		}
		return style.Error.Render(msg.err.Error())
	}

	switch msg.outcome {
	case voice.OutcomeAdvanced:
		step, _ := def.Step(wiz.CurrentStepID())
		return style.Success.Render("Saved. Up next: " + step.Title)
	case voice.OutcomeRejected:
		return style.Warning.Render("Waiting on required details")
	case voice.OutcomeDropped:
		return style.Warning.Render("Still working on the last command")
	case voice.OutcomeIgnored:
		return style.Muted.Render(fmt.Sprintf("No command heard in %q", msg.transcript))
	default:
		return ""
	}
}

// stepDetails lists the form data keys shown under each step: what its
// transitions require and set.
func stepDetails(def flow.Definition) map[string][]string {
	details := make(map[string][]string)

	for _, tr := range def.Transitions {
		keys := details[tr.From]
		keys = collections.AppendUnique(keys, collections.Apply(tr.Require, func(r flow.Requirement) string {
			return r.Key
		})...)
		keys = collections.AppendUnique(keys, slices.Sorted(maps.Keys(tr.Set))...)

		if len(keys) > 0 {
			details[tr.From] = keys
		}
	}

	return details
}
