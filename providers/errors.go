package providers

import (
	"encoding/json"
	"fmt"
)

// ParseHTTPError extracts a human-readable error from a provider's JSON
// error body ({"error":{"message":...}} or {"message":...}). Falls back
// to the raw body when parsing fails.
func ParseHTTPError(provider string, statusCode int, body []byte) error {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &nested); err == nil {
		if nested.Error.Message != "" {
			return fmt.Errorf("%s error (HTTP %d): %s", provider, statusCode, nested.Error.Message)
		}
		if nested.Message != "" {
			return fmt.Errorf("%s error (HTTP %d): %s", provider, statusCode, nested.Message)
		}
	}
	return fmt.Errorf("%s error (HTTP %d): %s", provider, statusCode, string(body))
}
