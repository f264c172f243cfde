package providers

import "context"

// Translator converts text between languages.
//
// The translation pipeline uses two implementations: a low-latency bulk
// provider tried first, and a prompt-based fallback on the conversational
// model. Either may also serve debounced tentative previews.
type Translator interface {
	// Translate converts text from sourceLang to targetLang.
	// Language codes are BCP-47 (e.g. "en", "ja", "pt-BR").
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// ID returns the translator identifier, e.g. "google-translate".
	ID() string
}
