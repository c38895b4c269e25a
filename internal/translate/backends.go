package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const backendTimeout = 30 * time.Second

// BackendConfig configures one HTTP backend client.
type BackendConfig struct {
	URL    string
	APIKey string
	// RequestsPerSecond caps calls to the backend. 0 means unlimited.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// HTTPDetector implements domain.Detector against a language-detection
// service: POST {text} -> ranked {language_code, confidence} candidates,
// of which only the top entry is used.
type HTTPDetector struct {
	cfg    BackendConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPDetector(cfg BackendConfig) *HTTPDetector {
	return &HTTPDetector{
		cfg:    cfg,
		client: &http.Client{Timeout: backendTimeout},
		logger: cfg.Logger,
	}
}

type detectResponse struct {
	Languages []struct {
		LanguageCode string  `json:"language_code"`
		Confidence   float64 `json:"confidence"`
	} `json:"languages"`
}

func (d *HTTPDetector) DetectLanguage(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	body, err := postJSON(ctx, d.client, d.cfg.URL, d.cfg.APIKey, payload)
	if err != nil {
		return "", fmt.Errorf("detection backend: %w", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("detection backend: decode response: %w", err)
	}
	if len(resp.Languages) == 0 {
		return "", fmt.Errorf("detection backend: no candidates returned")
	}
	return resp.Languages[0].LanguageCode, nil
}

// HTTPTranslator implements domain.Translator against a translation service:
// POST {text, source_language_code, target_language_code} -> {translated_text}.
// Calls are rate-limited to protect the backend during fan-out bursts.
type HTTPTranslator struct {
	cfg     BackendConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewHTTPTranslator(cfg BackendConfig) *HTTPTranslator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &HTTPTranslator{
		cfg:     cfg,
		client:  &http.Client{Timeout: backendTimeout},
		limiter: limiter,
		logger:  cfg.Logger,
	}
}

type translateRequest struct {
	Text               string `json:"text"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(translateRequest{
		Text:               text,
		SourceLanguageCode: source,
		TargetLanguageCode: target,
	})
	if err != nil {
		return "", err
	}

	body, err := postJSON(ctx, t.client, t.cfg.URL, t.cfg.APIKey, payload)
	if err != nil {
		return "", fmt.Errorf("translation backend: %w", err)
	}

	var resp translateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("translation backend: decode response: %w", err)
	}
	if resp.TranslatedText == "" {
		return "", fmt.Errorf("translation backend: empty translation")
	}
	return resp.TranslatedText, nil
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
