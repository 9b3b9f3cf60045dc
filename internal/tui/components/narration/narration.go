// Package narration shows the prompt being spoken with the current word
// highlighted.
package narration

import (
	"strings"

	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/tui/style"
)

// Model holds the latest narration progress.
type Model struct {
	progress speech.Progress
	set      bool
}

// Update records p.
func (m Model) Update(p speech.Progress) Model {
	m.progress = p
	m.set = true

	return m
}

// Speaking reports whether an utterance is still in flight.
func (m Model) Speaking() bool {
	return m.set && !m.progress.Done
}

// Text returns the utterance being or last spoken.
func (m Model) Text() string {
	return m.progress.Text
}

// View renders the utterance. While speaking, the current word is highlighted.
func (m Model) View() string {
	if !m.set {
		return ""
	}

	words := strings.Fields(m.progress.Text)
	if m.progress.Done {
		return style.Subtitle.Render(strings.Join(words, " "))
	}

	rendered := make([]string, len(words))
	for i, w := range words {
		switch {
		case i == m.progress.WordIndex:
			rendered[i] = style.Spoken.Render(w)
		case i < m.progress.WordIndex:
			rendered[i] = style.Label.Render(w)
		default:
			rendered[i] = style.Muted.Render(w)
		}
	}

	return strings.Join(rendered, " ")
}
