package events

import "time"

// EventType identifies the type of event emitted by the core.
type EventType string

const (
	// EventResponseNew marks the first fragment of a new assistant response.
	EventResponseNew EventType = "response.new"
	// EventResponseUpdate carries the accumulated response text so far.
	EventResponseUpdate EventType = "response.update"
	// EventResponseComplete marks a finalized response.
	EventResponseComplete EventType = "response.complete"
	// EventTurnComplete marks a persisted conversation turn.
	EventTurnComplete EventType = "turn.complete"

	// EventStatus carries a free-text status string for display.
	EventStatus EventType = "session.status"
	// EventSessionInitializing toggles the session-initializing indicator.
	EventSessionInitializing EventType = "session.initializing"
	// EventReconnectFailed marks terminal reconnection failure.
	EventReconnectFailed EventType = "session.reconnect_failed"

	// EventTranslationLive carries the live untranslated buffer preview.
	EventTranslationLive EventType = "translation.live_update"
	// EventTranslationResult carries one completed (or failed) translation.
	EventTranslationResult EventType = "translation.result"

	// EventUploadProgress reports document upload/index build stages.
	EventUploadProgress EventType = "document.upload_progress"

	// EventContextInjected marks retrieved chunks sent into the open turn.
	EventContextInjected EventType = "retrieval.context_injected"
)

// Upload progress stages.
const (
	UploadStageParsing   = "parsing"
	UploadStageEmbedding = "embedding"
	UploadStageDone      = "done"
	UploadStageError     = "error"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event is one core event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// baseEventData provides the shared marker implementation for payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// ResponseData carries partial or final response text.
type ResponseData struct {
	baseEventData

	// Text is the whole accumulated buffer, not a diff.
	Text string
}

// TurnCompleteData carries a finalized turn.
type TurnCompleteData struct {
	baseEventData

	Transcription string
	Response      string
	Timestamp     time.Time
}

// StatusData carries a display status string.
type StatusData struct {
	baseEventData

	Status string
}

// InitializingData toggles the session-initializing indicator.
type InitializingData struct {
	baseEventData

	Initializing bool
}

// ReconnectFailedData reports terminal reconnection failure.
type ReconnectFailedData struct {
	baseEventData

	Message string
}

// TranslationLiveData is the low-latency "typing" preview of untranslated
// text, optionally annotated with a tentative early translation.
type TranslationLiveData struct {
	baseEventData

	ID      int64
	Text    string
	Speaker string

	// Flushed is true when this buffer has been handed to the queue.
	Flushed bool

	// TentativeTranslation is a best-effort early translation, superseded
	// by the final result for the same ID.
	TentativeTranslation string
}

// TranslationResultData is one completed translation, or an error
// placeholder when both providers failed or the item was evicted.
type TranslationResultData struct {
	baseEventData

	ID         int64
	Original   string
	Translated string
	Speaker    string
	Timestamp  time.Time
	Err        string
}

// ContextInjectedData reports one retrieval injection.
type ContextInjectedData struct {
	baseEventData

	ChunkCount int
}

// UploadProgressData reports a document index build stage.
type UploadProgressData struct {
	baseEventData

	DocName string
	Stage   string
	Err     string
}
