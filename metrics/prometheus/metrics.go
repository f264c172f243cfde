// Package prometheus exports session-core metrics: turns, reconnects,
// translation load, and retrieval injections.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sidenote"

var (
	// turnsTotal counts finalized conversation turns.
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of finalized conversation turns",
		},
	)

	// reconnectAttemptsTotal counts reconnection attempts.
	reconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of session reconnection attempts",
		},
	)

	// reconnectFailuresTotal counts terminal reconnection failures.
	reconnectFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_failures_total",
			Help:      "Total number of terminal reconnection failures",
		},
	)

	// translationResultsTotal counts delivered translation results by status.
	translationResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_results_total",
			Help:      "Total number of translation results delivered",
		},
		[]string{"status"}, // status: success, error, dropped
	)

	// translationLiveUpdatesTotal counts live-preview updates.
	translationLiveUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_live_updates_total",
			Help:      "Total number of translation live-preview updates",
		},
	)

	// retrievalInjectionsTotal counts context injections into open turns.
	retrievalInjectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_injections_total",
			Help:      "Total number of retrieval context injections",
		},
	)

	// retrievalChunksInjectedTotal counts injected chunks.
	retrievalChunksInjectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_chunks_injected_total",
			Help:      "Total number of document chunks injected as context",
		},
	)

	// documentsIndexedTotal counts completed document index builds.
	documentsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Total number of documents chunked and embedded",
		},
	)

	// buildInfo is a constant 1 labeled with the build version and commit.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, constant 1 labeled by version and commit",
		},
		[]string{"version", "commit"},
	)

	// sessionInitializing reflects the session-initializing indicator.
	sessionInitializing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_initializing",
			Help:      "1 while a session connect is in flight, else 0",
		},
	)
)

// allMetrics lists every collector for registration.
var allMetrics = []prometheus.Collector{
	turnsTotal,
	reconnectAttemptsTotal,
	reconnectFailuresTotal,
	translationResultsTotal,
	translationLiveUpdatesTotal,
	retrievalInjectionsTotal,
	retrievalChunksInjectedTotal,
	documentsIndexedTotal,
	buildInfo,
	sessionInitializing,
}

// SetBuildInfo records the running build's version labels.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// RecordTurn increments the finalized-turn counter.
func RecordTurn() {
	turnsTotal.Inc()
}

// RecordReconnectAttempt increments the reconnect-attempt counter.
func RecordReconnectAttempt() {
	reconnectAttemptsTotal.Inc()
}

// RecordReconnectFailure increments the terminal-failure counter.
func RecordReconnectFailure() {
	reconnectFailuresTotal.Inc()
}

// RecordTranslationResult increments the result counter for a status.
func RecordTranslationResult(status string) {
	translationResultsTotal.WithLabelValues(status).Inc()
}

// RecordTranslationLiveUpdate increments the live-update counter.
func RecordTranslationLiveUpdate() {
	translationLiveUpdatesTotal.Inc()
}

// RecordRetrievalInjection records one injection of chunkCount chunks.
func RecordRetrievalInjection(chunkCount int) {
	retrievalInjectionsTotal.Inc()
	retrievalChunksInjectedTotal.Add(float64(chunkCount))
}

// RecordDocumentIndexed increments the indexed-document counter.
func RecordDocumentIndexed() {
	documentsIndexedTotal.Inc()
}

// SetSessionInitializing updates the initializing gauge.
func SetSessionInitializing(on bool) {
	if on {
		sessionInitializing.Set(1)
	} else {
		sessionInitializing.Set(0)
	}
}
