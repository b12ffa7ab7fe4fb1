package provider

import (
	"log/slog"
	"net/http"
	"time"

	"triquery/internal/config"
	"triquery/internal/domain"
)

// FromConfig builds the three adapters in display order, sharing one pooled
// HTTP client. Missing keys are not checked here; the query flow refuses to
// run until every key is present.
func FromConfig(cfg *config.Config, logger *slog.Logger) []domain.Provider {
	client := SharedHTTPClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second)
	return New(cfg.Providers, client, logger)
}

// New builds the adapters from provider settings and an explicit client.
func New(pc config.ProvidersConfig, client *http.Client, logger *slog.Logger) []domain.Provider {
	return []domain.Provider{
		NewGemini(GeminiConfig{
			APIKey:  pc.Gemini.APIKey,
			APIBase: pc.Gemini.APIBase,
			Model:   pc.Gemini.Model,
			Client:  client,
			Logger:  logger.With("provider", domain.ProviderGemini),
		}),
		NewCohere(CohereConfig{
			APIKey:      pc.Cohere.APIKey,
			APIBase:     pc.Cohere.APIBase,
			Model:       pc.Cohere.Model,
			MaxTokens:   pc.Cohere.MaxTokens,
			Temperature: pc.Cohere.Temperature,
			Client:      client,
			Logger:      logger.With("provider", domain.ProviderCohere),
		}),
		NewMistral(MistralConfig{
			APIKey:      pc.Mistral.APIKey,
			APIBase:     pc.Mistral.APIBase,
			Model:       pc.Mistral.Model,
			MaxTokens:   pc.Mistral.MaxTokens,
			Temperature: pc.Mistral.Temperature,
			Client:      client,
			Logger:      logger.With("provider", domain.ProviderMistral),
		}),
	}
}
