package session

import (
	"fmt"
	"strings"
)

// profilePrompts select the assistant's base behavior per profile.
var profilePrompts = map[string]string{
	"interview": "You are a discreet interview copilot. Provide concise, " +
		"well-structured answers the user can deliver naturally. Prefer " +
		"concrete examples over generalities.",
	"meeting": "You are a silent meeting assistant. Summarize decisions, " +
		"surface action items, and answer questions about the discussion " +
		"so far. Keep responses short enough to scan at a glance.",
	"sales": "You are a sales-call assistant. Suggest responses to " +
		"objections, recall product facts accurately, and keep suggested " +
		"phrasing natural and unscripted.",
}

const defaultPrompt = "You are a real-time desktop assistant. Answer " +
	"questions about the ongoing conversation concisely and accurately."

// buildSystemInstruction assembles the system prompt from the profile,
// conversation language, and optional preparation data.
func buildSystemInstruction(profile, language, prepData string) string {
	var b strings.Builder

	prompt, ok := profilePrompts[profile]
	if !ok {
		prompt = defaultPrompt
	}
	b.WriteString(prompt)

	if language != "" {
		fmt.Fprintf(&b, "\n\nRespond in the conversation language (%s).", language)
	}

	if prepData = strings.TrimSpace(prepData); prepData != "" {
		b.WriteString("\n\nBackground material provided by the user:\n")
		b.WriteString(prepData)
	}

	return b.String()
}
