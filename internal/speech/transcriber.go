package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns an encoded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// WhisperTranscriber handles Whisper API transcription requests.
type WhisperTranscriber struct {
	apiKey string
	opts   []option.RequestOption
}

// NewWhisperTranscriber creates a new transcription client.
func NewWhisperTranscriber(apiKey string, opts ...option.RequestOption) *WhisperTranscriber {
	return &WhisperTranscriber{
		apiKey: apiKey,
		opts:   opts,
	}
}

// Transcribe transcribes an audio clip using Whisper API. filename carries the
// clip's extension so the API can detect its format.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	// Validate API key
	if t.apiKey == "" {
		return "", errors.New("API key required: set OPENAI_API_KEY or run 'onboard config set-key openai'")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(t.apiKey)}, t.opts...)...)

	params := openai.AudioTranscriptionNewParams{
		File:     openai.File(audio, filename, "audio/mpeg"),
		Model:    openai.AudioModelWhisper1,
		Language: openai.String("en"),
	}

	resp, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	return resp.Text, nil
}
