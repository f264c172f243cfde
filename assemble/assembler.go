// Package assemble accumulates streamed response fragments into finalized
// conversation turns. A turn finalizes on an explicit turn-complete signal
// or when no fragment has arrived for the inactivity window.
package assemble

import (
	"strings"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/events"
	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/types"
)

// DefaultInactivityTimeout finalizes a turn when the model stops streaming
// without sending an explicit completion signal.
const DefaultInactivityTimeout = 500 * time.Millisecond

// TurnSink receives each finalized non-empty turn. The Session Manager uses
// it to persist the turn and to give the retrieval engine a chance to inject
// context into the still-open session.
type TurnSink func(turn types.ConversationTurn)

// Assembler builds one response at a time from incremental fragments.
//
// The buffer is non-empty exactly while a turn is in progress: the first
// fragment opens the turn (response.new), later fragments re-emit the whole
// accumulated buffer (response.update), and finalization clears everything
// and emits exactly one response.complete.
type Assembler struct {
	emitter    *events.Emitter
	onTurn     TurnSink
	inactivity time.Duration

	mu            sync.Mutex
	buf           strings.Builder
	transcription strings.Builder
	started       bool
	timer         *time.Timer
	timerGen      uint64
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithInactivityTimeout overrides the silence window (used in tests).
func WithInactivityTimeout(d time.Duration) Option {
	return func(a *Assembler) { a.inactivity = d }
}

// New creates an assembler. onTurn may be nil.
func New(emitter *events.Emitter, onTurn TurnSink, opts ...Option) *Assembler {
	a := &Assembler{
		emitter:    emitter,
		onTurn:     onTurn,
		inactivity: DefaultInactivityTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddFragment appends one streamed text fragment. Thought fragments are
// model-internal and never accumulated. Every accepted fragment restarts
// the inactivity timer.
func (a *Assembler) AddFragment(text string, thought bool) {
	if thought || text == "" {
		return
	}

	a.mu.Lock()
	a.buf.WriteString(text)
	first := !a.started
	a.started = true
	full := a.buf.String()
	a.rescheduleLocked()
	a.mu.Unlock()

	if first {
		a.emitter.ResponseNew(full)
	} else {
		a.emitter.ResponseUpdate(full)
	}
}

// AddTranscription accumulates the transcribed user input paired with the
// turn being assembled.
func (a *Assembler) AddTranscription(text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transcription.Len() > 0 && !strings.HasSuffix(a.transcription.String(), " ") &&
		!strings.HasPrefix(text, " ") {
		a.transcription.WriteString(" ")
	}
	a.transcription.WriteString(text)
}

// TurnComplete finalizes the turn immediately.
func (a *Assembler) TurnComplete() {
	a.finalize()
}

// Cancel drops the in-progress buffer without emitting a completion.
func (a *Assembler) Cancel() {
	a.mu.Lock()
	a.clearLocked()
	a.mu.Unlock()
}

// InProgress reports whether a turn is currently being assembled.
func (a *Assembler) InProgress() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// rescheduleLocked restarts the inactivity timer. The generation counter
// invalidates a timer that already fired and is waiting on the lock.
func (a *Assembler) rescheduleLocked() {
	a.timerGen++
	gen := a.timerGen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.inactivity, func() {
		a.mu.Lock()
		stale := gen != a.timerGen || !a.started
		a.mu.Unlock()
		if stale {
			return
		}
		logger.Debug("finalizing response on inactivity")
		a.finalize()
	})
}

// clearLocked resets all turn state and disarms the timer.
func (a *Assembler) clearLocked() {
	a.buf.Reset()
	a.transcription.Reset()
	a.started = false
	a.timerGen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// finalize snapshots and clears the buffer, then emits completion events.
// An empty buffer still emits exactly one response.complete (the UI treats
// it as a status reset) but persists nothing.
func (a *Assembler) finalize() {
	a.mu.Lock()
	response := strings.TrimSpace(a.buf.String())
	transcription := strings.TrimSpace(a.transcription.String())
	a.clearLocked()
	a.mu.Unlock()

	a.emitter.ResponseComplete(response)
	if response == "" {
		return
	}

	turn := types.ConversationTurn{
		Timestamp:     time.Now(),
		Transcription: transcription,
		Response:      response,
	}
	a.emitter.TurnComplete(turn.Transcription, turn.Response, turn.Timestamp)
	if a.onTurn != nil {
		a.onTurn(turn)
	}
}
