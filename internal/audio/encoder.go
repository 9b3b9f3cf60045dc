package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// EncoderConfig configures MP3 encoding of captured utterances.
type EncoderConfig struct {
	// SampleRate is the audio sample rate in Hz (default: 16000 for Whisper).
	SampleRate int

	// Channels is the number of audio channels (default: 1 for mono).
	// Note: Internally converted to stereo for shine-mp3 encoder workaround.
	Channels int
}

// Validate returns an error if the config is invalid.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	return nil
}

// WithDefaults returns a config with default values applied to zero fields.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	return c
}

// EncodeMP3 encodes mono S16LE pcm as MP3 frames written to w.
func EncodeMP3(config EncoderConfig, pcm []byte, w io.Writer) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid encoder config: %w", err)
	}

	if w == nil {
		return errors.New("output writer cannot be nil")
	}

	monoSamples := BytesToInt16(pcm)
	if len(monoSamples) == 0 {
		return errors.New("no samples to encode")
	}

	// WORKAROUND: shine-mp3 Write() has a bug for mono (always increments by samples_per_pass * 2)
	// Convert mono to stereo by duplicating samples (L=R)
	stereoSamples := make([]int16, len(monoSamples)*2)
	for i, sample := range monoSamples {
		stereoSamples[i*2] = sample
		stereoSamples[i*2+1] = sample
	}

	encoder := mp3encoder.NewEncoder(config.SampleRate, 2)
	if err := encoder.Write(w, stereoSamples); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	return nil
}

// EncodeMP3Bytes is EncodeMP3 into a fresh buffer.
func EncodeMP3Bytes(config EncoderConfig, pcm []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMP3(config, pcm, &buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
