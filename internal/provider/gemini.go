package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"triquery/internal/domain"
)

// Gemini adapts the Google Generative Language generateContent API.
type Gemini struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

type GeminiConfig struct {
	APIKey  string
	APIBase string
	Model   string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

func (g *Gemini) Name() string { return domain.ProviderGemini }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) Call(ctx context.Context, query string) domain.ProviderResult {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: query}}}},
	})
	if err != nil {
		g.logger.Error("gemini marshal failed", "err", err)
		return connectionFailure("Gemini")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.apiBase, g.model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		g.logger.Error("gemini request build failed", "err", redact(err))
		return connectionFailure("Gemini")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("gemini request failed", "err", redact(err))
		return connectionFailure("Gemini")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		g.logger.Error("gemini read body failed", "status", resp.StatusCode, "err", err)
		return connectionFailure("Gemini")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr geminiError
		_ = json.Unmarshal(raw, &apiErr)
		g.logger.Warn("gemini returned error status", "status", resp.StatusCode, "message", apiErr.Error.Message)
		return statusFailure(resp.StatusCode, apiErr.Error.Message)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		g.logger.Warn("gemini response not decodable", "err", err)
		return unexpectedFailure()
	}

	if len(out.Candidates) > 0 && len(out.Candidates[0].Content.Parts) > 0 {
		if text := out.Candidates[0].Content.Parts[0].Text; text != nil {
			return domain.Succeeded(*text)
		}
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		g.logger.Info("gemini blocked prompt", "reason", out.PromptFeedback.BlockReason)
		return domain.Failed(msgBlocked + out.PromptFeedback.BlockReason)
	}
	return unexpectedFailure()
}
