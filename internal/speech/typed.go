package speech

import (
	"context"
	"sync/atomic"

	"github.com/alkime/onboard/pkg/channels"
)

// TypedListener is a Listener fed by text the user types or an API client
// posts, standing in for speech recognition.
type TypedListener struct {
	listening   atomic.Bool
	transcripts chan string
}

// NewTypedListener creates a listener that starts out not listening.
func NewTypedListener() *TypedListener {
	return &TypedListener{
		transcripts: make(chan string, 8),
	}
}

// Submit publishes text as the new transcript. It reports false when the
// listener is stopped or its consumer is behind; the text is dropped.
func (l *TypedListener) Submit(text string) bool {
	if !l.listening.Load() {
		return false
	}

	return channels.SendNonBlock(l.transcripts, text) == nil
}

func (l *TypedListener) StartListening(context.Context) error {
	l.listening.Store(true)
	return nil
}

func (l *TypedListener) StopListening() error {
	l.listening.Store(false)
	return nil
}

// ResetTranscript drains transcripts not yet consumed.
func (l *TypedListener) ResetTranscript() {
	for {
		select {
		case <-l.transcripts:
		default:
			return
		}
	}
}

func (l *TypedListener) IsListening() bool          { return l.listening.Load() }
func (l *TypedListener) Transcripts() <-chan string { return l.transcripts }
func (l *TypedListener) Supported() bool            { return true }
func (l *TypedListener) Err() error                 { return nil }
