package audio

import (
	"github.com/gen2brain/malgo"
)

const (
	// DefaultSampleRate is 16kHz, the native sample rate for Whisper.
	DefaultSampleRate = 16000
	// DefaultChannels is mono (1 channel).
	DefaultChannels = 1
	// SpeechSampleRate is the rate of raw PCM returned by the TTS endpoint.
	SpeechSampleRate = 24000
)

// DeviceConfig configures a capture or playback device. Only signed 16-bit
// little-endian samples are used throughout.
type DeviceConfig struct {
	Format           malgo.FormatType
	CaptureChannels  int
	PlaybackChannels int
	SampleRate       int
}

// CaptureConfig returns the device config used for microphone capture.
func CaptureConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
	}
}

// PlaybackConfig returns the device config used to play synthesized speech.
func PlaybackConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:           malgo.FormatS16,
		PlaybackChannels: DefaultChannels,
		SampleRate:       SpeechSampleRate,
	}
}

// BytesPerSecond returns the PCM byte rate for mono S16 audio at sampleRate.
func BytesPerSecond(sampleRate int) int {
	return sampleRate * 2
}
