// Package session implements the session manager: the connect/reconnect
// state machine that owns the live streaming session and wires the audio,
// assembly, translation, and retrieval components to it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidenote-ai/sidenote/assemble"
	"github.com/sidenote-ai/sidenote/audio"
	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/retrieval"
	"github.com/sidenote-ai/sidenote/statestore"
	"github.com/sidenote-ai/sidenote/translate"
	"github.com/sidenote-ai/sidenote/types"
)

const (
	// DefaultReconnectDelay is the fixed wait before each reconnect attempt.
	DefaultReconnectDelay = 2 * time.Second

	// maxReconnectAttempts bounds automatic reconnection; exhaustion is a
	// terminal, user-visible failure.
	maxReconnectAttempts = 3

	// catchUpTurns caps how many turns the reconnect replay carries.
	catchUpTurns = 20

	persistTimeout       = 10 * time.Second
	retrieveTimeout      = 20 * time.Second
	reconnectOpenTimeout = 30 * time.Second
)

// ConnectParams are the user-supplied parameters for one session.
type ConnectParams struct {
	// Profile selects the assistant customization ("interview", "meeting", ...).
	Profile string

	// Language is the BCP-47 conversation language.
	Language string

	// PrepData is optional preparation/context text folded into the
	// system instruction.
	PrepData string
}

// Manager owns exactly one live session at a time. All component wiring
// and all Session mutation happens here.
type Manager struct {
	provider       providers.StreamProvider
	bus            *events.Bus
	store          statestore.Store
	docStore       statestore.DocumentStore
	embedder       providers.EmbeddingProvider
	primaryTr      providers.Translator
	fallbackTr     providers.Translator
	audioCfg       types.AudioConfig
	audioSource    audio.SourceFactory
	reconnectDelay time.Duration

	mu                sync.Mutex
	state             State
	generation        uint64
	params            ConnectParams
	attempts          int
	userClosed        bool
	translationCfg    translate.Config
	sess              *types.Session
	stream            providers.StreamSession
	emitter           *events.Emitter
	assembler         *assemble.Assembler
	pipeline          *translate.Pipeline
	engine            *retrieval.Engine
	index             *retrieval.Index
	capture           *audio.Capture
	suppressFragments bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore enables session-record persistence.
func WithStore(store statestore.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithDocumentStore enables document-index persistence.
func WithDocumentStore(store statestore.DocumentStore) Option {
	return func(m *Manager) { m.docStore = store }
}

// WithEmbedding enables retrieval-augmented context injection.
func WithEmbedding(embedder providers.EmbeddingProvider) Option {
	return func(m *Manager) { m.embedder = embedder }
}

// WithTranslators enables the translation pipeline. primary is the
// low-latency bulk provider, fallback the conversational model; either
// may be nil.
func WithTranslators(primary, fallback providers.Translator) Option {
	return func(m *Manager) {
		m.primaryTr = primary
		m.fallbackTr = fallback
	}
}

// WithAudio configures the capture pipeline.
func WithAudio(cfg types.AudioConfig, source audio.SourceFactory) Option {
	return func(m *Manager) {
		m.audioCfg = cfg
		m.audioSource = source
	}
}

// WithReconnectDelay overrides the fixed reconnect delay (used in tests).
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) { m.reconnectDelay = d }
}

// NewManager creates a session manager.
func NewManager(provider providers.StreamProvider, bus *events.Bus, opts ...Option) *Manager {
	m := &Manager{
		provider:       provider,
		bus:            bus,
		audioCfg:       audio.DefaultConfig(),
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens a streaming session. A call made while a connect is
// already in flight, or while a session is active, is rejected
// immediately rather than racing.
func (m *Manager) Connect(ctx context.Context, params ConnectParams) (*types.Session, error) {
	m.mu.Lock()
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("connect rejected: session is %s", state)
	}
	m.state = StateConnecting
	m.params = params
	m.attempts = 0
	m.userClosed = false

	sessionID := uuid.New().String()
	m.emitter = events.NewEmitter(m.bus, sessionID)
	emitter := m.emitter
	m.mu.Unlock()

	emitter.Initializing(true)
	emitter.Status(StateConnecting.String())
	defer emitter.Initializing(false)

	stream, err := m.provider.OpenSession(ctx, m.sessionConfig(params))
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		emitter.Status(StateDisconnected.String())
		return nil, fmt.Errorf("failed to open streaming session: %w", err)
	}

	index := m.loadIndex(ctx)

	m.mu.Lock()
	// A Close issued while the open was in flight must win: adopt nothing
	// and drop the freshly opened stream.
	if m.userClosed || m.state != StateConnecting {
		m.mu.Unlock()
		_ = stream.Close()
		logger.Info("connect aborted: session closed while connecting")
		return nil, fmt.Errorf("connect aborted: session closed while connecting")
	}
	m.sess = &types.Session{
		ID:        sessionID,
		CreatedAt: time.Now(),
		Profile:   params.Profile,
		Language:  params.Language,
	}
	m.assembler = assemble.New(emitter, m.onTurn)
	m.pipeline = translate.New(emitter, m.primaryTr, m.fallbackTr)
	if err := m.pipeline.SetConfig(m.translationCfg); err != nil {
		logger.Warn("saved translation config rejected", "error", err)
	}
	if index != nil && index.Len() > 0 {
		m.index = index
	}
	if m.embedder != nil && m.index != nil {
		m.engine = retrieval.NewEngine(m.embedder, m.index)
	}
	m.adoptStreamLocked(stream)
	m.mu.Unlock()

	emitter.Status(StateOpen.String())
	logger.Info("session connected", "session_id", sessionID, "profile", params.Profile)
	return m.Snapshot(), nil
}

// Close ends the session at the user's request, suppressing reconnection.
// Safe to call when already disconnected.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.userClosed = true
	m.state = StateClosing
	m.generation++ // invalidates the stream's read and monitor goroutines
	stream := m.stream
	m.stream = nil
	capture := m.capture
	m.capture = nil
	assembler := m.assembler
	pipeline := m.pipeline
	emitter := m.emitter
	m.mu.Unlock()

	emitter.Status(StateClosing.String())
	if capture != nil {
		capture.Stop()
	}
	if assembler != nil {
		assembler.Cancel()
	}
	if pipeline != nil {
		pipeline.Reset()
	}

	var err error
	if stream != nil {
		err = stream.Close()
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.params = ConnectParams{}
	m.attempts = 0
	m.mu.Unlock()

	emitter.Status(StateDisconnected.String())
	logger.Info("session closed by user")
	return err
}

// SendText sends a free-text user message into the open session,
// completing the current turn.
func (m *Manager) SendText(ctx context.Context, text string) error {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("no active session")
	}
	return stream.SendText(ctx, text)
}

// CancelResponse drops the in-progress response. Late fragments of the
// cancelled response are ignored until the provider signals turn end.
func (m *Manager) CancelResponse() {
	m.mu.Lock()
	m.suppressFragments = true
	assembler := m.assembler
	m.mu.Unlock()
	if assembler != nil {
		assembler.Cancel()
	}
}

// SetTranslationConfig applies translation configuration, now and for
// future sessions. Invalid configs are rejected and the prior one kept.
func (m *Manager) SetTranslationConfig(cfg translate.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pipeline != nil {
		if err := m.pipeline.SetConfig(cfg); err != nil {
			return err
		}
	}
	m.translationCfg = cfg
	return nil
}

// Snapshot returns a deep copy of the current session, or nil when no
// session has been connected.
func (m *Manager) Snapshot() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	out := *m.sess
	out.Turns = append([]types.ConversationTurn(nil), m.sess.Turns...)
	out.ScreenAnalyses = append([]types.ScreenAnalysis(nil), m.sess.ScreenAnalyses...)
	return &out
}

// StartCapture begins forwarding captured audio into the session.
func (m *Manager) StartCapture(ctx context.Context) error {
	m.mu.Lock()
	if m.audioSource == nil {
		m.mu.Unlock()
		return fmt.Errorf("no audio source configured")
	}
	if m.stream == nil {
		m.mu.Unlock()
		return fmt.Errorf("no active session")
	}
	if m.capture == nil {
		capture, err := audio.NewCapture(m.audioCfg, m.audioSource, m.forwardAudio)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.capture = capture
	}
	capture := m.capture
	m.mu.Unlock()

	return capture.Start(ctx)
}

// StopCapture stops audio capture, discarding buffered frames.
func (m *Manager) StopCapture() {
	m.mu.Lock()
	capture := m.capture
	m.mu.Unlock()
	if capture != nil {
		capture.Stop()
	}
}

// UploadDocument chunks, embeds, persists, and indexes a document for
// retrieval. Works before or during a session.
func (m *Manager) UploadDocument(ctx context.Context, docName, text string) error {
	m.mu.Lock()
	embedder := m.embedder
	emitter := m.emitter
	m.mu.Unlock()
	if embedder == nil {
		return fmt.Errorf("no embedding provider configured")
	}
	if emitter == nil {
		emitter = events.NewEmitter(m.bus, "")
	}

	builder := retrieval.NewBuilder(embedder, m.docStore, emitter)
	built, err := builder.BuildIndex(ctx, docName, text)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.index = retrieval.Merge(m.index, built)
	if m.engine != nil {
		m.engine.SetIndex(m.index)
	} else if m.sess != nil {
		m.engine = retrieval.NewEngine(m.embedder, m.index)
	}
	m.mu.Unlock()
	return nil
}

// forwardAudio is the capture pipeline's per-frame sink.
func (m *Manager) forwardAudio(ctx context.Context, chunk *types.MediaChunk) error {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("no active session")
	}
	return stream.SendAudio(ctx, chunk)
}

func (m *Manager) sessionConfig(params ConnectParams) *providers.SessionConfig {
	return &providers.SessionConfig{
		SystemInstruction: buildSystemInstruction(params.Profile, params.Language, params.PrepData),
		Language:          params.Language,
		Audio:             m.audioCfg,
	}
}

// loadIndex rebuilds the retrieval index from stored documents.
func (m *Manager) loadIndex(ctx context.Context) *retrieval.Index {
	if m.docStore == nil || m.embedder == nil {
		return nil
	}
	index, err := retrieval.LoadIndexes(ctx, m.docStore)
	if err != nil {
		logger.Warn("failed to load document indexes", "error", err)
		return nil
	}
	return index
}
