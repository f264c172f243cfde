package types

import (
	"fmt"
	"time"
)

// MediaChunk is one fixed-duration frame of captured audio, ready to be
// forwarded into a streaming session. Data is base64-encoded mono PCM.
type MediaChunk struct {
	// Data is the base64-encoded audio payload.
	Data string `json:"data"`

	// MimeType describes the payload, e.g. "audio/pcm;rate=24000".
	MimeType string `json:"mime_type"`

	// SequenceNum orders chunks within a capture run (starts at 0).
	SequenceNum int64 `json:"sequence_num"`

	// Timestamp is when the frame was sliced from the capture buffer.
	Timestamp time.Time `json:"timestamp"`
}

// StreamChunk is one incremental message received from the provider's
// streaming session.
type StreamChunk struct {
	// Text is the incremental response text, if any.
	Text string `json:"text,omitempty"`

	// Thought marks internal chain-of-thought fragments that must not be
	// shown to the user or accumulated into the response.
	Thought bool `json:"thought,omitempty"`

	// InputTranscription carries transcribed speech attributed to a speaker.
	// Empty when the chunk is a response fragment.
	InputTranscription string `json:"input_transcription,omitempty"`

	// Speaker tags the transcription source ("self" for the primary speaker,
	// "them" otherwise). Only set alongside InputTranscription.
	Speaker string `json:"speaker,omitempty"`

	// TurnComplete signals that the model finished its turn.
	TurnComplete bool `json:"turn_complete,omitempty"`

	// Interrupted signals that generation was cut off by new input.
	Interrupted bool `json:"interrupted,omitempty"`

	// Err carries a terminal stream error; the channel closes after it.
	Err error `json:"-"`
}

// AudioConfig describes the raw capture format feeding the pipeline.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100.
	SampleRate int `json:"sample_rate"`

	// Channels in the raw source. 2 (stereo) is downmixed to mono.
	Channels int `json:"channels"`

	// BitDepth per sample. Only 16 is supported.
	BitDepth int `json:"bit_depth"`

	// FrameDuration is the duration of each forwarded frame.
	FrameDuration time.Duration `json:"frame_duration"`
}

// Validate checks the capture format.
func (c *AudioConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got: %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got: %d", c.Channels)
	}
	if c.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got: %d", c.BitDepth)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame duration must be positive, got: %v", c.FrameDuration)
	}
	return nil
}

// BytesPerFrame returns the raw byte length of one frame at this format.
func (c *AudioConfig) BytesPerFrame() int {
	samples := c.SampleRate * int(c.FrameDuration) / int(time.Second)
	return samples * c.Channels * (c.BitDepth / 8)
}
