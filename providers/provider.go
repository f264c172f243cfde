// Package providers defines the abstract provider surface the session core
// is built on: bidirectional streaming sessions, text embeddings, and
// translation. Concrete implementations live in subpackages.
package providers

import (
	"context"

	"github.com/sidenote-ai/sidenote/types"
)

// StreamSession is a live bidirectional streaming session with a
// conversational AI provider. The session accepts audio frames and text
// while streaming back incremental response chunks.
type StreamSession interface {
	// SendAudio forwards one captured audio frame to the provider.
	// Safe to call from multiple goroutines.
	SendAudio(ctx context.Context, chunk *types.MediaChunk) error

	// SendText sends a user text message. This completes the current turn
	// and triggers a model response.
	SendText(ctx context.Context, text string) error

	// SendContext sends text as background context without completing the
	// turn, so the model gains the context without producing a visible
	// reply. Used for retrieval injection and catch-up replay.
	SendContext(ctx context.Context, text string) error

	// Response returns the receive-only channel of streaming chunks.
	// The channel is closed when the session ends or fails.
	Response() <-chan types.StreamChunk

	// Close ends the session and releases resources. Safe to call twice.
	Close() error

	// Error returns the error that ended the session, or nil.
	Error() error

	// Done returns a channel closed when the session ends for any reason.
	Done() <-chan struct{}
}

// SessionConfig configures a new streaming session.
type SessionConfig struct {
	// SystemInstruction is the assembled system prompt (profile plus any
	// preparation/context data).
	SystemInstruction string

	// Language is the BCP-47 conversation language.
	Language string

	// Audio describes the inbound audio format.
	Audio types.AudioConfig
}

// StreamProvider opens bidirectional streaming sessions.
type StreamProvider interface {
	// OpenSession opens a new streaming session. The session stays active
	// until Close is called or a transport error occurs.
	OpenSession(ctx context.Context, cfg *SessionConfig) (StreamSession, error)

	// ID returns the provider identifier, e.g. "gemini-live".
	ID() string
}
