package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alkime/onboard/internal/audio"
	"github.com/alkime/onboard/pkg/channels"
)

const (
	// DefaultWindow is how much audio is collected before it is transcribed.
	DefaultWindow = 2 * time.Second
	// DefaultSilenceLevel is the RMS below which a window is not transcribed.
	DefaultSilenceLevel = 0.01
)

// MicListener recognizes speech from a capture stream. Audio is cut into
// fixed windows which are encoded and transcribed in the background; each
// recognized window is appended to a running transcript that is published
// in full.
type MicListener struct {
	capturer    audio.Capturer
	packets     <-chan audio.DataPacket
	transcriber Transcriber
	window      time.Duration
	silence     float64
	meter       *audio.LevelMeter
	transcripts chan string

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	transcript string
	err        error
}

// MicOption configures a MicListener.
type MicOption func(*MicListener)

// WithWindow sets the transcription window.
func WithWindow(d time.Duration) MicOption {
	return func(l *MicListener) { l.window = d }
}

// WithSilenceLevel sets the RMS threshold under which windows are skipped.
func WithSilenceLevel(level float64) MicOption {
	return func(l *MicListener) { l.silence = level }
}

// NewMicListener creates a listener reading packets delivered by capturer.
func NewMicListener(
	capturer audio.Capturer,
	packets <-chan audio.DataPacket,
	transcriber Transcriber,
	opts ...MicOption,
) *MicListener {
	l := &MicListener{
		capturer:    capturer,
		packets:     packets,
		transcriber: transcriber,
		window:      DefaultWindow,
		silence:     DefaultSilenceLevel,
		meter:       audio.NewLevelMeter(audio.DefaultSampleRate / 10),
		transcripts: make(chan string, 4),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Supported reports whether both capture and transcription are available.
func (l *MicListener) Supported() bool {
	return l.capturer != nil && l.packets != nil && l.transcriber != nil
}

// StartListening starts capture. It is a no-op while already listening.
func (l *MicListener) StartListening(ctx context.Context) error {
	if !l.Supported() {
		return ErrUnsupported
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return nil
	}

	if err := l.capturer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	l.err = nil

	go l.run(runCtx, l.done)

	return nil
}

// StopListening stops capture and waits for pending transcription to finish.
func (l *MicListener) StopListening() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	l.meter.Reset()

	if err := l.capturer.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}

	return nil
}

// ResetTranscript clears the running transcript.
func (l *MicListener) ResetTranscript() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.transcript = ""
}

func (l *MicListener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cancel != nil
}

func (l *MicListener) Transcripts() <-chan string { return l.transcripts }

// Err returns the last recognition error.
func (l *MicListener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.err
}

// Level returns the loudness of the most recent audio in [0, 1].
func (l *MicListener) Level() float64 {
	return l.meter.Level()
}

// Recent returns up to n of the latest captured samples, oldest first.
func (l *MicListener) Recent(n int) []int16 {
	return l.meter.Recent(n)
}

func (l *MicListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	windows := make(chan []byte, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.transcribeLoop(ctx, windows)
	}()

	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			close(windows)
			wg.Wait()
			return
		case packet := <-l.packets:
			buf.Write(packet)
			l.meter.WritePCM(packet)
		case <-ticker.C:
			if buf.Len() == 0 {
				continue
			}

			chunk := bytes.Clone(buf.Bytes())
			buf.Reset()

			if rms(chunk) < l.silence {
				continue
			}

			if err := channels.SendNonBlock(windows, chunk); err != nil {
				slog.Debug("dropping audio window, transcription is behind")
			}
		}
	}
}

func (l *MicListener) transcribeLoop(ctx context.Context, windows <-chan []byte) {
	cfg := audio.EncoderConfig{}.WithDefaults()

	for chunk := range windows {
		text, err := l.transcribe(ctx, cfg, chunk)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			slog.Warn("transcription failed", "error", err)
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()

			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		l.mu.Lock()
		if l.transcript == "" {
			l.transcript = text
		} else {
			l.transcript += " " + text
		}
		full := l.transcript
		l.mu.Unlock()

		if err := channels.SendNonBlock(l.transcripts, full); err != nil {
			slog.Debug("dropping transcript, consumer is behind")
		}
	}
}

func (l *MicListener) transcribe(ctx context.Context, cfg audio.EncoderConfig, pcm []byte) (string, error) {
	mp3, err := audio.EncodeMP3Bytes(cfg, pcm)
	if err != nil {
		return "", err
	}

	return l.transcriber.Transcribe(ctx, bytes.NewReader(mp3), "utterance.mp3")
}

func rms(pcm []byte) float64 {
	meter := audio.NewLevelMeter(len(pcm) / 2)
	meter.WritePCM(pcm)

	return meter.Level()
}
