// Package speech adapts text-to-speech and speech-to-text services to the
// small interfaces the voice dispatcher drives.
package speech

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by listeners that cannot capture on this host.
var ErrUnsupported = errors.New("speech recognition is not supported")

// Speaker speaks text aloud. Speak blocks until the utterance finishes, is
// stopped, or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Listener produces transcripts from speech. Each value on Transcripts is the
// full transcript of the current listening session; it replaces the previous.
type Listener interface {
	StartListening(ctx context.Context) error
	StopListening() error
	ResetTranscript()
	IsListening() bool
	Transcripts() <-chan string
	Supported() bool
	Err() error
}

// Progress reports which word of an utterance is being spoken.
type Progress struct {
	Text      string
	WordIndex int
	Done      bool
}
