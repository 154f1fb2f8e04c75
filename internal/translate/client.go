// Package translate reaches the external translation engine (Ollama) and
// dispatches best-effort translation jobs for confirmed transcripts.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mickekring/live-subtitles/internal/observability"
	"github.com/mickekring/live-subtitles/internal/resilience"
)

// languageNames maps the target-language keys accepted at the boundary to
// the names used in the translation prompt.
var languageNames = map[string]string{
	"english":   "English",
	"german":    "German",
	"italian":   "Italian",
	"greek":     "Greek",
	"french":    "French",
	"ukrainian": "Ukrainian",
	"chinese":   "Chinese (Mandarin)",
	"japanese":  "Japanese",
	"arabic":    "Arabic",
}

const promptTemplate = `You are a part of a software program that does live subtitling. When you are fed text, you will only output the translation of the text. No explanations, no additional text, just the translation.

Translate from Swedish to %s.

Text: %s

Translation:`

// Client talks to an Ollama server over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates an Ollama client. The circuit breaker fails translation
// calls fast while the engine is down instead of stacking up timeouts.
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger.With().Str("component", "translate").Logger(),
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Translate translates text into the target language using the given Ollama
// model. Unknown target-language keys are passed through verbatim.
func (c *Client) Translate(ctx context.Context, text, targetLanguage, model string) (string, error) {
	target, ok := languageNames[targetLanguage]
	if !ok {
		target = targetLanguage
	}

	reqBody, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      fmt.Sprintf(promptTemplate, target, text),
		Stream:      false,
		Temperature: 0.3, // Low temperature for consistent translations
		TopP:        0.9,
	})
	if err != nil {
		return "", err
	}

	var translation string
	err = c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("translation request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("translation failed with status %d", resp.StatusCode)
		}

		var gen generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
			return fmt.Errorf("decode translation response: %w", err)
		}
		translation = strings.TrimSpace(gen.Response)
		return nil
	})

	observability.UpdateCircuitBreakerState(c.breaker.Name(), int(c.breaker.State()))
	if err != nil {
		return "", err
	}
	return translation, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the translation models available on the Ollama server
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list translation models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list translation models: status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Healthy probes the Ollama server for the readiness endpoint
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	_, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	return true, nil
}
