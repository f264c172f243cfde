package prometheus

import (
	"strings"

	"github.com/sidenote-ai/sidenote/events"
)

// Result status labels.
const (
	statusSuccess = "success"
	statusError   = "error"
	statusDropped = "dropped"
)

// MetricsListener records core events as Prometheus metrics. Register it
// with an event bus via SubscribeAll; it never blocks.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes one event and records the relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventTurnComplete:
		RecordTurn()

	case events.EventStatus:
		l.handleStatus(event)

	case events.EventSessionInitializing:
		if data, ok := event.Data.(events.InitializingData); ok {
			SetSessionInitializing(data.Initializing)
		}

	case events.EventReconnectFailed:
		RecordReconnectFailure()

	case events.EventTranslationLive:
		RecordTranslationLiveUpdate()

	case events.EventTranslationResult:
		l.handleTranslationResult(event)

	case events.EventContextInjected:
		if data, ok := event.Data.(events.ContextInjectedData); ok {
			RecordRetrievalInjection(data.ChunkCount)
		}

	case events.EventUploadProgress:
		if data, ok := event.Data.(events.UploadProgressData); ok && data.Stage == events.UploadStageDone {
			RecordDocumentIndexed()
		}

	default:
		// Events without metrics are ignored.
	}
}

func (l *MetricsListener) handleStatus(event *events.Event) {
	data, ok := event.Data.(events.StatusData)
	if !ok {
		return
	}
	// Each reconnect attempt surfaces as a "reconnecting (attempt N/M)"
	// status transition.
	if strings.HasPrefix(data.Status, "reconnecting") {
		RecordReconnectAttempt()
	}
}

func (l *MetricsListener) handleTranslationResult(event *events.Event) {
	data, ok := event.Data.(events.TranslationResultData)
	if !ok {
		return
	}
	switch {
	case data.Err == "":
		RecordTranslationResult(statusSuccess)
	case strings.HasPrefix(data.Err, "dropped:"):
		RecordTranslationResult(statusDropped)
	default:
		RecordTranslationResult(statusError)
	}
}
