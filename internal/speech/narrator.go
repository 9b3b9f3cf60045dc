package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alkime/onboard/pkg/channels"
)

// Narrator paces an utterance word by word and publishes Progress for UI
// highlighting. It produces no audio on its own.
type Narrator struct {
	interval time.Duration
	progress chan<- Progress

	mu   sync.Mutex
	stop context.CancelFunc
}

// NewNarrator creates a narrator advancing one word per interval. progress
// may be nil; sends never block.
func NewNarrator(interval time.Duration, progress chan<- Progress) *Narrator {
	return &Narrator{
		interval: interval,
		progress: progress,
	}
}

// Speak walks the words of text. Starting a new utterance stops the previous one.
func (n *Narrator) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.mu.Lock()
	if n.stop != nil {
		n.stop()
	}
	n.stop = cancel
	n.mu.Unlock()

	words := strings.Fields(text)
	for i := range words {
		n.publish(Progress{Text: text, WordIndex: i})

		if err := sleep(ctx, n.interval); err != nil {
			n.publish(Progress{Text: text, WordIndex: i, Done: true})
			return err
		}
	}

	n.publish(Progress{Text: text, WordIndex: len(words), Done: true})

	return nil
}

// Stop interrupts the utterance in flight, if any.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
}

func (n *Narrator) publish(p Progress) {
	if n.progress == nil {
		return
	}

	_ = channels.SendNonBlock(n.progress, p)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
