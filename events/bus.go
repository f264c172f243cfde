// Package events provides the typed pub/sub event bus connecting the core
// to the UI layer.
package events

import (
	"sync"
	"time"
)

// Listener is a function that handles events.
type Listener func(*Event)

// Bus manages event distribution to listeners.
//
// Publish delivers events synchronously and in publish order, so results
// for the same translation id are never reordered. Listeners must not
// block; anything slow belongs on the listener's own goroutine.
type Bus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[EventType][]Listener),
	}
}

// Subscribe registers a listener for a specific event type.
func (b *Bus) Subscribe(eventType EventType, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (b *Bus) SubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalListeners = append(b.globalListeners, listener)
}

// Publish delivers an event to all registered listeners.
// A panicking listener is isolated and does not affect the others.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	typeListeners := make([]Listener, len(b.listeners[event.Type]))
	copy(typeListeners, b.listeners[event.Type])
	globalListeners := make([]Listener, len(b.globalListeners))
	copy(globalListeners, b.globalListeners)
	b.mu.RUnlock()

	for _, listener := range typeListeners {
		safeInvoke(listener, event)
	}
	for _, listener := range globalListeners {
		safeInvoke(listener, event)
	}
}

// Clear removes all listeners (primarily for tests).
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[EventType][]Listener)
	b.globalListeners = nil
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}

// Emitter publishes core events with shared session metadata.
type Emitter struct {
	bus       *Bus
	sessionID string
}

// NewEmitter creates an emitter bound to a session id.
func NewEmitter(bus *Bus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// ResponseNew emits the response.new event with the first fragment.
func (e *Emitter) ResponseNew(text string) {
	e.emit(EventResponseNew, ResponseData{Text: text})
}

// ResponseUpdate emits the response.update event with the whole buffer.
func (e *Emitter) ResponseUpdate(text string) {
	e.emit(EventResponseUpdate, ResponseData{Text: text})
}

// ResponseComplete emits the response.complete event.
func (e *Emitter) ResponseComplete(text string) {
	e.emit(EventResponseComplete, ResponseData{Text: text})
}

// TurnComplete emits the turn.complete event for a persisted turn.
func (e *Emitter) TurnComplete(transcription, response string, ts time.Time) {
	e.emit(EventTurnComplete, TurnCompleteData{
		Transcription: transcription,
		Response:      response,
		Timestamp:     ts,
	})
}

// Status emits the session.status event.
func (e *Emitter) Status(status string) {
	e.emit(EventStatus, StatusData{Status: status})
}

// Initializing emits the session.initializing event.
func (e *Emitter) Initializing(on bool) {
	e.emit(EventSessionInitializing, InitializingData{Initializing: on})
}

// ReconnectFailed emits the session.reconnect_failed event.
func (e *Emitter) ReconnectFailed(message string) {
	e.emit(EventReconnectFailed, ReconnectFailedData{Message: message})
}

// TranslationLive emits the translation.live_update event.
func (e *Emitter) TranslationLive(data TranslationLiveData) {
	e.emit(EventTranslationLive, data)
}

// TranslationResult emits the translation.result event.
func (e *Emitter) TranslationResult(data TranslationResultData) {
	e.emit(EventTranslationResult, data)
}

// ContextInjected emits the retrieval.context_injected event.
func (e *Emitter) ContextInjected(chunkCount int) {
	e.emit(EventContextInjected, ContextInjectedData{ChunkCount: chunkCount})
}

// UploadProgress emits the document.upload_progress event.
func (e *Emitter) UploadProgress(docName, stage, errMsg string) {
	e.emit(EventUploadProgress, UploadProgressData{
		DocName: docName,
		Stage:   stage,
		Err:     errMsg,
	})
}
