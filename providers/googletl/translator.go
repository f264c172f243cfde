// Package googletl implements the low-latency bulk translation provider on
// the Google Cloud Translation v2 REST API. The translation pipeline tries
// it before falling back to the conversational model, and also uses it for
// debounced tentative previews.
package googletl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/providers"
)

const (
	defaultBaseURL    = "https://translation.googleapis.com/language/translate/v2"
	translatorTimeout = 10 * time.Second
)

// Translator implements providers.Translator via the Translation v2 API.
type Translator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// Option configures the Translator.
type Option func(*Translator)

// WithBaseURL sets a custom endpoint (used in tests).
func WithBaseURL(url string) Option {
	return func(t *Translator) { t.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Translator) { t.client = client }
}

// New creates a bulk translator. The API key is required.
func New(apiKey string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("translate API key is required")
	}
	t := &Translator{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: translatorTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// Translate converts text from sourceLang to targetLang.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("source", sourceLang)
	form.Set("target", targetLang)
	form.Set("format", "text")
	form.Set("key", t.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providers.ParseHTTPError("google-translate", resp.StatusCode, body)
	}

	var out translateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Data.Translations) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	logger.Debug("bulk translation completed",
		"source", sourceLang,
		"target", targetLang,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return out.Data.Translations[0].TranslatedText, nil
}

// ID returns the translator identifier.
func (t *Translator) ID() string { return "google-translate" }

// Verify interface compliance.
var _ providers.Translator = (*Translator)(nil)
