package speech

import (
	"context"
	"slices"
	"sync"
)

// PromptLog is a Speaker that records what it was asked to say. The HTTP
// surface returns the log to clients, which do their own synthesis.
type PromptLog struct {
	mu    sync.Mutex
	lines []string
}

// Speak records text.
func (l *PromptLog) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, text)

	return nil
}

// Stop is a no-op; recording is instantaneous.
func (l *PromptLog) Stop() {}

// Lines returns everything spoken so far.
func (l *PromptLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.lines)
}

// Last returns the most recent line, or "".
func (l *PromptLog) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.lines) == 0 {
		return ""
	}

	return l.lines[len(l.lines)-1]
}
