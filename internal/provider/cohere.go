package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"triquery/internal/domain"
)

// Cohere adapts the Cohere v1 generate API.
type Cohere struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

type CohereConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
	Logger      *slog.Logger
}

func NewCohere(cfg CohereConfig) *Cohere {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.cohere.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "command"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cohere{
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
}

func (c *Cohere) Name() string { return domain.ProviderCohere }

type cohereRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type cohereResponse struct {
	Generations []struct {
		Text *string `json:"text"`
	} `json:"generations"`
}

type cohereError struct {
	Message string `json:"message"`
}

func (c *Cohere) Call(ctx context.Context, query string) domain.ProviderResult {
	body, err := json.Marshal(cohereRequest{
		Model:       c.model,
		Prompt:      query,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.logger.Error("cohere marshal failed", "err", err)
		return connectionFailure("Cohere")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/generate", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("cohere request build failed", "err", err)
		return connectionFailure("Cohere")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("cohere request failed", "err", err)
		return connectionFailure("Cohere")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("cohere read body failed", "status", resp.StatusCode, "err", err)
		return connectionFailure("Cohere")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr cohereError
		_ = json.Unmarshal(raw, &apiErr)
		c.logger.Warn("cohere returned error status", "status", resp.StatusCode, "message", apiErr.Message)
		return statusFailure(resp.StatusCode, apiErr.Message)
	}

	var out cohereResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn("cohere response not decodable", "err", err)
		return unexpectedFailure()
	}
	if len(out.Generations) > 0 && out.Generations[0].Text != nil {
		return domain.Succeeded(strings.TrimSpace(*out.Generations[0].Text))
	}
	return unexpectedFailure()
}
