package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
	"github.com/sidenote-ai/sidenote/retrieval"
	"github.com/sidenote-ai/sidenote/types"
)

// adoptStreamLocked installs a newly opened stream: bumps the generation
// so goroutines of the previous stream become stale, resets per-session
// retrieval and translation state, and starts the read and monitor loops.
func (m *Manager) adoptStreamLocked(stream providers.StreamSession) {
	m.generation++
	gen := m.generation
	m.stream = stream
	m.state = StateOpen
	m.suppressFragments = false
	if m.pipeline != nil {
		m.pipeline.Reset()
	}
	if m.engine != nil {
		m.engine.Reset()
	}

	go m.readLoop(stream, gen)
	go m.monitor(stream, gen)
}

func (m *Manager) currentGen(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// readLoop consumes the stream's response channel until it closes or the
// stream is superseded.
func (m *Manager) readLoop(stream providers.StreamSession, gen uint64) {
	for chunk := range stream.Response() {
		if !m.currentGen(gen) {
			return
		}
		m.handleChunk(chunk)
	}
}

func (m *Manager) handleChunk(chunk types.StreamChunk) {
	m.mu.Lock()
	assembler := m.assembler
	pipeline := m.pipeline
	emitter := m.emitter
	suppressed := m.suppressFragments
	if chunk.TurnComplete {
		m.suppressFragments = false
	}
	m.mu.Unlock()

	switch {
	case chunk.Err != nil:
		logger.Warn("stream error", "error", chunk.Err)
		emitter.Status(fmt.Sprintf("stream error: %v", chunk.Err))

	case chunk.InputTranscription != "":
		assembler.AddTranscription(chunk.InputTranscription)
		pipeline.Ingest(chunk.InputTranscription, chunk.Speaker)

	case chunk.Interrupted:
		assembler.Cancel()
		emitter.Status("interrupted")

	case chunk.TurnComplete:
		assembler.TurnComplete()

	case chunk.Text != "":
		if !suppressed {
			assembler.AddFragment(chunk.Text, chunk.Thought)
		}
	}
}

// monitor waits for the stream to end and hands off to close handling.
func (m *Manager) monitor(stream providers.StreamSession, gen uint64) {
	<-stream.Done()
	m.handleStreamClosed(gen, stream.Error())
}

// handleStreamClosed decides between a clean shutdown and reconnection.
// Reconnection only happens when the close was not user-initiated.
func (m *Manager) handleStreamClosed(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	if m.userClosed || m.state == StateClosing || m.state == StateDisconnected {
		m.state = StateDisconnected
		m.mu.Unlock()
		return
	}
	if m.state == StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.stream = nil
	emitter := m.emitter
	m.mu.Unlock()

	if cause != nil {
		emitter.Status(fmt.Sprintf("connection lost: %v", cause))
	} else {
		emitter.Status("connection lost")
	}
	go m.reconnectLoop()
}

// reconnectLoop retries with a fixed delay and identical parameters. The
// attempt counter persists across reconnected streams that die again, so
// exhaustion emits reconnect-failed exactly once and stops for good.
func (m *Manager) reconnectLoop() {
	for {
		m.mu.Lock()
		if m.userClosed {
			m.state = StateDisconnected
			m.mu.Unlock()
			return
		}
		if m.attempts >= maxReconnectAttempts {
			m.state = StateDisconnected
			m.params = ConnectParams{}
			emitter := m.emitter
			m.mu.Unlock()

			emitter.ReconnectFailed(fmt.Sprintf(
				"connection could not be restored after %d attempts", maxReconnectAttempts))
			emitter.Status(StateDisconnected.String())
			logger.Error("reconnection exhausted", "attempts", maxReconnectAttempts)
			return
		}
		m.attempts++
		attempt := m.attempts
		params := m.params
		emitter := m.emitter
		m.mu.Unlock()

		emitter.Status(fmt.Sprintf("%s (attempt %d/%d)",
			StateReconnecting, attempt, maxReconnectAttempts))
		time.Sleep(m.reconnectDelay)

		ctx, cancel := context.WithTimeout(context.Background(), reconnectOpenTimeout)
		stream, err := m.provider.OpenSession(ctx, m.sessionConfig(params))
		cancel()
		if err != nil {
			logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		m.mu.Lock()
		if m.userClosed {
			m.mu.Unlock()
			_ = stream.Close()
			return
		}
		m.adoptStreamLocked(stream)
		turns := lastTurns(m.sess.Turns, catchUpTurns)
		m.mu.Unlock()

		m.replayCatchUp(stream, turns)
		emitter.Status(StateOpen.String())
		logger.Info("session reconnected", "attempt", attempt, "replayed_turns", len(turns))
		return
	}
}

// replayCatchUp sends the recent conversation as one synthetic context
// message so the restored session resumes with history.
func (m *Manager) replayCatchUp(stream providers.StreamSession, turns []types.ConversationTurn) {
	if len(turns) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), reconnectOpenTimeout)
	defer cancel()
	if err := stream.SendContext(ctx, catchUpMessage(turns)); err != nil {
		logger.Warn("catch-up replay failed", "error", err)
	}
}

func catchUpMessage(turns []types.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("The session was interrupted and restored. Conversation so far:\n")
	for _, turn := range turns {
		if turn.Transcription != "" {
			b.WriteString("User: ")
			b.WriteString(turn.Transcription)
			b.WriteString("\n")
		}
		if turn.Response != "" {
			b.WriteString("Assistant: ")
			b.WriteString(turn.Response)
			b.WriteString("\n")
		}
	}
	b.WriteString("Continue from this point without acknowledging the interruption.")
	return b.String()
}

func lastTurns(turns []types.ConversationTurn, n int) []types.ConversationTurn {
	if len(turns) <= n {
		return append([]types.ConversationTurn(nil), turns...)
	}
	return append([]types.ConversationTurn(nil), turns[len(turns)-n:]...)
}

// onTurn is the assembler's sink: it appends the finalized turn to the
// session, persists the record, and gives the retrieval engine a chance
// to inject context into the still-open turn.
func (m *Manager) onTurn(turn types.ConversationTurn) {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return
	}
	m.sess.Turns = append(m.sess.Turns, turn)
	record := m.recordLocked()
	turns := lastTurns(m.sess.Turns, catchUpTurns)
	engine := m.engine
	stream := m.stream
	emitter := m.emitter
	m.mu.Unlock()

	if m.store != nil {
		go m.persist(record)
	}

	if engine != nil && stream != nil && engine.CanRetrieve() {
		go m.injectContext(engine, stream, emitter, turns)
	}
}

func (m *Manager) recordLocked() *types.SessionRecord {
	return &types.SessionRecord{
		SessionID:      m.sess.ID,
		CreatedAt:      m.sess.CreatedAt,
		Profile:        m.sess.Profile,
		Language:       m.sess.Language,
		Turns:          append([]types.ConversationTurn(nil), m.sess.Turns...),
		ScreenAnalyses: append([]types.ScreenAnalysis(nil), m.sess.ScreenAnalyses...),
	}
}

func (m *Manager) persist(record *types.SessionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, record); err != nil {
		logger.Warn("failed to persist session record", "session_id", record.SessionID, "error", err)
	}
}

// injectContext retrieves chunks for the recent turns and sends them into
// the open session without ending the current turn. Failures degrade to
// "no chunks found."
func (m *Manager) injectContext(engine *retrieval.Engine, stream providers.StreamSession, emitter *events.Emitter, turns []types.ConversationTurn) {
	ctx, cancel := context.WithTimeout(context.Background(), retrieveTimeout)
	defer cancel()

	chunks, err := engine.Retrieve(ctx, turns)
	if err != nil {
		logger.Warn("retrieval failed", "error", err)
		return
	}
	if len(chunks) == 0 {
		return
	}
	if err := stream.SendContext(ctx, retrieval.FormatContext(chunks)); err != nil {
		logger.Warn("context injection failed", "error", err)
		return
	}
	emitter.ContextInjected(len(chunks))
}
