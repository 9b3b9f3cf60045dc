// Package micmeter renders the microphone state with a live loudness strip.
package micmeter

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/onboard/internal/tui/style"
	"github.com/alkime/onboard/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Block characters for amplitude (index 0 = silent, 8 = full).
const blockChars = " ▁▂▃▄▅▆▇█"

// TickMsg triggers a meter redraw.
type TickMsg struct{}

// Model shows whether the microphone is listening and, while it is, the
// recent amplitude as bars (left=older, right=newer).
type Model struct {
	listening uictl.Knob
	levels    uictl.Levels[int16]
	width     int
}

// New creates a meter. Either control may be nil when there is no microphone.
func New(listening uictl.Knob, levels uictl.Levels[int16], width int) Model {
	return Model{
		listening: listening,
		levels:    levels,
		width:     max(width, 1),
	}
}

// Init starts redrawing when there is something to draw.
func (m Model) Init() tea.Cmd {
	if m.levels == nil {
		return nil
	}

	return m.tick()
}

// Update handles tick messages for animation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok && m.levels != nil {
		return m, m.tick()
	}

	return m, nil
}

// View renders the label and, while listening, the bars.
func (m Model) View() string {
	if m.listening == nil {
		return style.Muted.Render("keyboard only")
	}

	if !m.listening.Read() {
		return style.Warning.Render("mic off")
	}

	label := style.Success.Render("listening") + " "
	if m.levels == nil {
		return label
	}

	return label + style.Progress.Render(m.bars(m.levels.Read()))
}

// tick schedules the next redraw at ~20 FPS.
func (m Model) tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) bars(samples []int16) string {
	runes := []rune(blockChars)

	var sb strings.Builder
	bucket := max(1, len(samples)/m.width)
	for col := range m.width {
		start := col * bucket
		if start >= len(samples) {
			sb.WriteRune(runes[0])
			continue
		}

		peak := peakAmplitude(samples[start:min(start+bucket, len(samples))])
		sb.WriteRune(runes[levelFor(peak, len(runes)-1)])
	}

	return sb.String()
}

func peakAmplitude(samples []int16) int {
	var peak int
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}

	return min(peak, math.MaxInt16)
}

// levelFor maps an amplitude onto 0..top on a square-root curve so quiet
// speech is still visible.
func levelFor(amp, top int) int {
	if amp <= 0 {
		return 0
	}

	scaled := math.Sqrt(float64(amp)/math.MaxInt16) * float64(top)

	return min(int(scaled), top)
}
