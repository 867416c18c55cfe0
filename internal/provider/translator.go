package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medscribe/notequeue/internal/domain"
)

// TranslateRequest is the JSON body posted to a LibreTranslate-compatible
// /translate endpoint.
type TranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

// TranslateResponse maps the service's 200 OK response body.
type TranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// HTTPTranslator calls a LibreTranslate-compatible HTTP API.
// The base URL is injected from config so tests can point to a local mock.
type HTTPTranslator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPTranslator(baseURL, apiKey string, timeout time.Duration) *HTTPTranslator {
	return &HTTPTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Translate auto-detects the source language and returns text in targetLanguage.
// Every failure wraps domain.ErrExternalService.
func (t *HTTPTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	body, err := json.Marshal(TranslateRequest{
		Q:      text,
		Source: "auto",
		Target: targetLanguage,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: translate: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected translator status: %d", domain.ErrExternalService, resp.StatusCode)
	}

	var out TranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode translator response: %v", domain.ErrExternalService, err)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", fmt.Errorf("%w: translator returned empty text", domain.ErrExternalService)
	}

	return out.TranslatedText, nil
}

// compile-time check that HTTPTranslator implements Translator
var _ Translator = (*HTTPTranslator)(nil)
