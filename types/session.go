// Package types defines the shared data model for the live assistant core:
// sessions, conversation turns, streaming chunks, and document chunks.
package types

import "time"

// Session is the live conversation owned by the session manager.
// Exactly one Session is active at a time; all mutation goes through
// the manager, which owns it exclusively.
type Session struct {
	// ID uniquely identifies this session.
	ID string `json:"id"`

	// CreatedAt is when the session was first connected.
	CreatedAt time.Time `json:"created_at"`

	// Profile selects the assistant customization (e.g. "interview", "meeting").
	Profile string `json:"profile"`

	// Language is the BCP-47 language code for the conversation.
	Language string `json:"language"`

	// Turns is the ordered, append-only conversation history.
	Turns []ConversationTurn `json:"turns"`

	// ScreenAnalyses is the ordered history of screen-analysis results.
	ScreenAnalyses []ScreenAnalysis `json:"screen_analyses,omitempty"`
}

// ConversationTurn is one finalized user-input-to-response exchange.
// Turns are appended only after finalization and are immutable afterward.
type ConversationTurn struct {
	// Timestamp is when the turn was finalized.
	Timestamp time.Time `json:"timestamp"`

	// Transcription is the transcribed user input for this turn.
	Transcription string `json:"transcription"`

	// Response is the finalized assistant response text.
	Response string `json:"response"`
}

// ScreenAnalysis records one screen-capture analysis result.
type ScreenAnalysis struct {
	// Timestamp is when the analysis completed.
	Timestamp time.Time `json:"timestamp"`

	// Result is the model's analysis text.
	Result string `json:"result"`
}

// SessionRecord is the persisted form of a session, written through the
// statestore after every finalized turn.
type SessionRecord struct {
	SessionID      string             `json:"session_id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastUpdated    time.Time          `json:"last_updated"`
	Profile        string             `json:"profile"`
	Language       string             `json:"language,omitempty"`
	Turns          []ConversationTurn `json:"conversation_history"`
	ScreenAnalyses []ScreenAnalysis   `json:"screen_analysis_history,omitempty"`
	Notes          string             `json:"session_notes,omitempty"`
	Summary        string             `json:"summary,omitempty"`
}
