package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Player plays raw mono S16LE PCM.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// OpenAISpeaker synthesizes speech with the OpenAI TTS endpoint and plays it,
// while a Narrator paces word progress alongside the audio.
type OpenAISpeaker struct {
	apiKey   string
	voice    openai.AudioSpeechNewParamsVoice
	player   Player
	narrator *Narrator
	opts     []option.RequestOption
}

// NewOpenAISpeaker creates a speaker. narrator may be nil.
func NewOpenAISpeaker(
	apiKey, voice string,
	player Player,
	narrator *Narrator,
	opts ...option.RequestOption,
) *OpenAISpeaker {
	return &OpenAISpeaker{
		apiKey:   apiKey,
		voice:    openai.AudioSpeechNewParamsVoice(voice),
		player:   player,
		narrator: narrator,
		opts:     opts,
	}
}

// Synthesize returns 24kHz mono S16LE PCM for text.
func (s *OpenAISpeaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, errors.New("API key required: set OPENAI_API_KEY or run 'onboard config set-key openai'")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(s.apiKey)}, s.opts...)...)

	resp, err := client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModelTTS1,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech via OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized speech: %w", err)
	}

	return pcm, nil
}

// Speak synthesizes and plays text, narrating progress concurrently.
func (s *OpenAISpeaker) Speak(ctx context.Context, text string) error {
	pcm, err := s.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	if s.narrator == nil {
		return s.player.Play(ctx, pcm)
	}

	narrated := make(chan error, 1)
	go func() { narrated <- s.narrator.Speak(ctx, text) }()

	playErr := s.player.Play(ctx, pcm)
	s.narrator.Stop()
	<-narrated

	return playErr
}

// Stop interrupts narration. Playback is bounded by the Speak context.
func (s *OpenAISpeaker) Stop() {
	if s.narrator != nil {
		s.narrator.Stop()
	}
}
