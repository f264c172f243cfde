package gemini

import (
	"encoding/json"
	"fmt"
)

// Client → server messages for the Gemini Live API.

// clientSetup is the first message on a new connection.
type clientSetup struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`

	// InputAudioTranscription enables speech transcription of inbound audio.
	InputAudioTranscription *struct{} `json:"inputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"` // base64
}

// clientRealtimeInput streams captured audio frames. Realtime input does
// not terminate the turn; the server segments it with its own VAD.
type clientRealtimeInput struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

// clientContent sends turn-based text. TurnComplete false delivers context
// without triggering a visible reply.
type clientContent struct {
	ClientContent clientContentPayload `json:"clientContent"`
}

type clientContentPayload struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// Server → client messages.

type serverMessage struct {
	SetupComplete *setupComplete `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type setupComplete struct{}

type serverContent struct {
	ModelTurn          *content       `json:"modelTurn,omitempty"`
	TurnComplete       bool           `json:"turnComplete,omitempty"`
	GenerationComplete bool           `json:"generationComplete,omitempty"`
	Interrupted        bool           `json:"interrupted,omitempty"`
	InputTranscription *transcription `json:"inputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

// newAudioMessage wraps one base64 PCM frame as realtime input.
func newAudioMessage(mimeType, data string) clientRealtimeInput {
	return clientRealtimeInput{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MimeType: mimeType, Data: data}},
		},
	}
}

// unmarshalServerMessage decodes one server frame.
func unmarshalServerMessage(data []byte, msg *serverMessage) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal server message: %w", err)
	}
	return nil
}

// newTextMessage wraps user text as a client turn.
func newTextMessage(text string, turnComplete bool) clientContent {
	return clientContent{
		ClientContent: clientContentPayload{
			Turns: []content{{
				Role:  "user",
				Parts: []part{{Text: text}},
			}},
			TurnComplete: turnComplete,
		},
	}
}
