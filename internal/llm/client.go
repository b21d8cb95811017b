// Package llm composes answers and summaries from retrieved chunks with a text-generation backend.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kiritori/internal/config"
	"golang.org/x/time/rate"
)

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt, system string, maxTokens int) (string, error)
}

// OllamaClient calls an Ollama server's /api/generate endpoint without streaming.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOllamaClient returns a client for cfg.URL and cfg.Model.
func NewOllamaClient(cfg config.LLMConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &OllamaClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
	if cfg.RequestsPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}
	return c
}

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	System    string `json:"system,omitempty"`
	Stream    bool   `json:"stream"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete sends prompt and returns the generated text.
func (c *OllamaClient) Complete(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm rate limit: %w", err)
		}
	}
	body, err := json.Marshal(generateRequest{
		Model:     c.model,
		Prompt:    prompt,
		System:    system,
		Stream:    false,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama generate returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", out.Error)
	}
	return strings.TrimSpace(out.Response), nil
}
