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

// Mistral adapts the Mistral chat completions API.
type Mistral struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

type MistralConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float64
	Client      *http.Client
	Logger      *slog.Logger
}

func NewMistral(cfg MistralConfig) *Mistral {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.mistral.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-small-latest"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mistral{
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
}

func (m *Mistral) Name() string { return domain.ProviderMistral }

type mistralRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// mistralError covers both the nested {"error":{"message"}} shape and the
// flat {"message"} shape the API also returns.
type mistralError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (e mistralError) text() string {
	if e.Error != nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

func (m *Mistral) Call(ctx context.Context, query string) domain.ProviderResult {
	body, err := json.Marshal(mistralRequest{
		Model:       m.model,
		Messages:    []mistralMessage{{Role: "user", Content: query}},
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	if err != nil {
		m.logger.Error("mistral marshal failed", "err", err)
		return connectionFailure("Mistral")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		m.logger.Error("mistral request build failed", "err", err)
		return connectionFailure("Mistral")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Error("mistral request failed", "err", err)
		return connectionFailure("Mistral")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		m.logger.Error("mistral read body failed", "status", resp.StatusCode, "err", err)
		return connectionFailure("Mistral")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr mistralError
		_ = json.Unmarshal(raw, &apiErr)
		m.logger.Warn("mistral returned error status", "status", resp.StatusCode, "message", apiErr.text())
		return statusFailure(resp.StatusCode, apiErr.text())
	}

	var out mistralResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		m.logger.Warn("mistral response not decodable", "err", err)
		return unexpectedFailure()
	}
	if len(out.Choices) > 0 && out.Choices[0].Message.Content != nil {
		return domain.Succeeded(*out.Choices[0].Message.Content)
	}
	return unexpectedFailure()
}
