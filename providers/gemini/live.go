// Package gemini implements the Gemini providers used by the session core:
// the Live API streaming session, text embeddings, and the prompt-based
// fallback translator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/providers/internal/streaming"
	"github.com/sidenote-ai/sidenote/types"
)

const (
	// DefaultLiveModel is the default model for live sessions.
	DefaultLiveModel = "gemini-2.0-flash-exp"

	defaultLiveURL = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	liveDialTimeout     = 45 * time.Second
	liveSetupTimeout    = 10 * time.Second
	liveHeartbeatPeriod = 30 * time.Second
	liveResponseBuffer  = 16
	maxLiveMessageSize  = 16 * 1024 * 1024
)

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// LiveProvider opens Gemini Live streaming sessions.
type LiveProvider struct {
	apiKey string
	model  string
	wsURL  string
}

// LiveOption configures the LiveProvider.
type LiveOption func(*LiveProvider)

// WithLiveModel sets the live model.
func WithLiveModel(model string) LiveOption {
	return func(p *LiveProvider) { p.model = model }
}

// WithLiveURL sets a custom WebSocket endpoint (used in tests).
func WithLiveURL(url string) LiveOption {
	return func(p *LiveProvider) { p.wsURL = url }
}

// NewLiveProvider creates a Gemini Live provider.
func NewLiveProvider(apiKey string, opts ...LiveOption) (*LiveProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	p := &LiveProvider{
		apiKey: apiKey,
		model:  DefaultLiveModel,
		wsURL:  defaultLiveURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the provider identifier.
func (p *LiveProvider) ID() string { return "gemini-live" }

// OpenSession dials the Live API, performs setup, and returns a running
// session. The session's Response channel closes when the server ends the
// stream or the transport fails.
func (p *LiveProvider) OpenSession(ctx context.Context, cfg *providers.SessionConfig) (providers.StreamSession, error) {
	sessionCtx, cancel := context.WithCancel(ctx)

	headers := http.Header{}
	headers.Set("x-goog-api-key", p.apiKey)

	conn := streaming.NewConn(&streaming.ConnConfig{
		URL:            p.wsURL,
		Headers:        headers,
		DialTimeout:    liveDialTimeout,
		MaxMessageSize: maxLiveMessageSize,
		Logger:         &logAdapter{},
	})

	if err := conn.ConnectWithRetry(sessionCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &LiveSession{
		conn:       conn,
		model:      p.model,
		ctx:        sessionCtx,
		cancel:     cancel,
		responseCh: make(chan types.StreamChunk, liveResponseBuffer),
		errCh:      make(chan error, 1),
	}

	if err := s.setup(cfg); err != nil {
		_ = conn.Close()
		cancel()
		return nil, err
	}

	conn.StartHeartbeat(sessionCtx, liveHeartbeatPeriod)
	go s.receiveLoop()

	return s, nil
}

// LiveSession implements providers.StreamSession over the Gemini Live API.
type LiveSession struct {
	conn       *streaming.Conn
	model      string
	ctx        context.Context
	cancel     context.CancelFunc
	responseCh chan types.StreamChunk
	errCh      chan error

	mu     sync.Mutex
	closed bool
}

// setup sends the mandatory first message and waits for setupComplete.
func (s *LiveSession) setup(cfg *providers.SessionConfig) error {
	payload := setupPayload{
		Model: "models/" + s.model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT"},
		},
		InputAudioTranscription: &struct{}{},
	}
	if cfg != nil && cfg.SystemInstruction != "" {
		payload.SystemInstruction = &content{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}

	if err := s.conn.Send(clientSetup{Setup: payload}); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(s.ctx, liveSetupTimeout)
	defer cancel()

	data, err := s.conn.Receive(setupCtx)
	if err != nil {
		return fmt.Errorf("failed to receive setup response: %w", err)
	}

	var msg serverMessage
	if err := unmarshalServerMessage(data, &msg); err != nil {
		return err
	}
	if msg.SetupComplete == nil {
		return fmt.Errorf("invalid setup response: setup_complete not received")
	}
	return nil
}

// SendAudio forwards one captured audio frame as realtime input.
func (s *LiveSession) SendAudio(ctx context.Context, chunk *types.MediaChunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.conn.Send(newAudioMessage(chunk.MimeType, chunk.Data))
}

// SendText sends a user text message, completing the turn.
func (s *LiveSession) SendText(ctx context.Context, text string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.conn.Send(newTextMessage(text, true))
}

// SendContext sends text without completing the turn, so the model gains
// the context without producing a visible reply.
func (s *LiveSession) SendContext(ctx context.Context, text string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.conn.Send(newTextMessage(text, false))
}

// Response returns the channel of streaming chunks.
func (s *LiveSession) Response() <-chan types.StreamChunk {
	return s.responseCh
}

// Done returns a channel closed when the session ends.
func (s *LiveSession) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close ends the session. Safe to call multiple times.
func (s *LiveSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close()
}

// Error returns the error that ended the session, or nil.
func (s *LiveSession) Error() error {
	select {
	case err := <-s.errCh:
		return err
	default:
		return nil
	}
}

func (s *LiveSession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// receiveLoop reads server messages until the session ends.
func (s *LiveSession) receiveLoop() {
	defer close(s.responseCh)
	defer s.cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		data, err := s.conn.Receive(s.ctx)
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				select {
				case s.errCh <- err:
				default:
				}
			}
			return
		}

		var msg serverMessage
		if err := unmarshalServerMessage(data, &msg); err != nil {
			logger.Warn("dropping unparseable server message", "error", err)
			continue
		}

		for _, chunk := range chunksFromServerMessage(&msg) {
			select {
			case s.responseCh <- chunk:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// chunksFromServerMessage converts one server message into stream chunks.
func chunksFromServerMessage(msg *serverMessage) []types.StreamChunk {
	if msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent

	var chunks []types.StreamChunk

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		chunks = append(chunks, types.StreamChunk{
			InputTranscription: sc.InputTranscription.Text,
			Speaker:            "them",
		})
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.Text == "" {
				continue
			}
			chunks = append(chunks, types.StreamChunk{
				Text:    p.Text,
				Thought: p.Thought,
			})
		}
	}

	if sc.TurnComplete || sc.GenerationComplete || sc.Interrupted {
		chunks = append(chunks, types.StreamChunk{
			TurnComplete: sc.TurnComplete || sc.GenerationComplete,
			Interrupted:  sc.Interrupted,
		})
	}

	return chunks
}

// logAdapter adapts the core logger to the streaming.Logger interface.
type logAdapter struct{}

func (logAdapter) Debug(msg string, kv ...interface{}) {
	logger.Debug(msg, append([]interface{}{"component", "gemini-live"}, kv...)...)
}

func (logAdapter) Info(msg string, kv ...interface{}) {
	logger.Info(msg, append([]interface{}{"component", "gemini-live"}, kv...)...)
}

func (logAdapter) Warn(msg string, kv ...interface{}) {
	logger.Warn(msg, append([]interface{}{"component", "gemini-live"}, kv...)...)
}

func (logAdapter) Error(msg string, kv ...interface{}) {
	logger.Error(msg, append([]interface{}{"component", "gemini-live"}, kv...)...)
}

// Verify interface compliance.
var (
	_ providers.StreamProvider = (*LiveProvider)(nil)
	_ providers.StreamSession  = (*LiveSession)(nil)
)
