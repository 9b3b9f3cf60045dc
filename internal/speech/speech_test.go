package speech_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alkime/onboard/internal/audio"
	"github.com/alkime/onboard/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrator_PublishesEveryWord(t *testing.T) {
	t.Parallel()

	progress := make(chan speech.Progress, 16)
	n := speech.NewNarrator(0, progress)

	require.NoError(t, n.Speak(context.Background(), "Welcome to onboarding"))
	close(progress)

	var got []speech.Progress
	for p := range progress {
		got = append(got, p)
	}

	require.Len(t, got, 4)
	assert.Equal(t, 0, got[0].WordIndex)
	assert.Equal(t, 2, got[2].WordIndex)
	assert.True(t, got[3].Done)
	assert.Equal(t, 3, got[3].WordIndex)
}

func TestNarrator_StopInterrupts(t *testing.T) {
	t.Parallel()

	n := speech.NewNarrator(time.Hour, nil)

	errC := make(chan error, 1)
	go func() { errC <- n.Speak(context.Background(), "this would take a very long time") }()

	require.Eventually(t, func() bool {
		n.Stop()
		select {
		case err := <-errC:
			return errors.Is(err, context.Canceled)
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestPromptLog(t *testing.T) {
	t.Parallel()

	var log speech.PromptLog
	assert.Empty(t, log.Last())

	require.NoError(t, log.Speak(context.Background(), "first"))
	require.NoError(t, log.Speak(context.Background(), "second"))

	assert.Equal(t, []string{"first", "second"}, log.Lines())
	assert.Equal(t, "second", log.Last())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, log.Speak(ctx, "third"), context.Canceled)
	assert.Len(t, log.Lines(), 2)
}

func TestTypedListener(t *testing.T) {
	t.Parallel()

	l := speech.NewTypedListener()
	assert.True(t, l.Supported())
	assert.False(t, l.IsListening())
	assert.False(t, l.Submit("ignored while stopped"))

	require.NoError(t, l.StartListening(context.Background()))
	assert.True(t, l.IsListening())
	assert.True(t, l.Submit("yes"))
	assert.Equal(t, "yes", <-l.Transcripts())

	assert.True(t, l.Submit("stale"))
	l.ResetTranscript()
	select {
	case got := <-l.Transcripts():
		t.Fatalf("expected drained transcripts, got %q", got)
	default:
	}

	require.NoError(t, l.StopListening())
	assert.False(t, l.Submit("late"))
	assert.NoError(t, l.Err())
}

func TestWhisperTranscriber_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := speech.NewWhisperTranscriber("").Transcribe(context.Background(), nil, "utterance.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestOpenAISpeaker_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	s := speech.NewOpenAISpeaker("", "alloy", nil, nil)
	err := s.Speak(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

type fakeCapturer struct {
	mu      sync.Mutex
	started bool
}

func (c *fakeCapturer) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *fakeCapturer) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

func (c *fakeCapturer) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

type scriptedTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, audio io.Reader, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := io.ReadAll(audio)
	if err != nil || len(data) == 0 || filename != "utterance.mp3" {
		return "", errors.New("unexpected audio")
	}

	text := s.texts[min(s.calls, len(s.texts)-1)]
	s.calls++

	return text, nil
}

func tone(seconds float64) []byte {
	n := int(seconds * audio.DefaultSampleRate)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.DefaultSampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestMicListener_AccumulatesTranscript(t *testing.T) {
	t.Parallel()

	capturer := &fakeCapturer{}
	packets := make(chan audio.DataPacket, 4)
	transcriber := &scriptedTranscriber{texts: []string{"let's", "continue", "yes"}}

	l := speech.NewMicListener(capturer, packets, transcriber, speech.WithWindow(20*time.Millisecond))
	require.True(t, l.Supported())

	require.NoError(t, l.StartListening(context.Background()))
	assert.True(t, capturer.IsStarted())
	assert.True(t, l.IsListening())

	packets <- tone(1)
	assert.Equal(t, "let's", receive(t, l.Transcripts()))
	assert.Greater(t, l.Level(), 0.0)

	packets <- tone(1)
	assert.Equal(t, "let's continue", receive(t, l.Transcripts()))

	l.ResetTranscript()
	packets <- tone(1)
	assert.Equal(t, "yes", receive(t, l.Transcripts()))

	require.NoError(t, l.StopListening())
	assert.False(t, capturer.IsStarted())
	assert.False(t, l.IsListening())
	assert.NoError(t, l.Err())
}

func TestMicListener_SkipsSilence(t *testing.T) {
	t.Parallel()

	packets := make(chan audio.DataPacket, 4)
	transcriber := &scriptedTranscriber{texts: []string{"never"}}

	l := speech.NewMicListener(&fakeCapturer{}, packets, transcriber, speech.WithWindow(10*time.Millisecond))
	require.NoError(t, l.StartListening(context.Background()))

	packets <- make([]byte, audio.BytesPerSecond(audio.DefaultSampleRate))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, l.StopListening())

	transcriber.mu.Lock()
	defer transcriber.mu.Unlock()
	assert.Zero(t, transcriber.calls)
}

func TestMicListener_Unsupported(t *testing.T) {
	t.Parallel()

	l := speech.NewMicListener(nil, nil, nil)
	assert.False(t, l.Supported())
	require.ErrorIs(t, l.StartListening(context.Background()), speech.ErrUnsupported)
	require.NoError(t, l.StopListening())
}

func receive(t *testing.T, c <-chan string) string {
	t.Helper()

	select {
	case s := <-c:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transcript")
		return ""
	}
}
