// Package channel holds the chat senders used for notifications and the HTTP
// server that exposes the query API.
package channel

import (
	"context"
	"fmt"
	"log/slog"

	"triquery/internal/config"
	"triquery/internal/domain"
)

// Sender is a ChannelSender with a connection lifecycle.
type Sender interface {
	domain.ChannelSender
	Open(ctx context.Context) error
	Close() error
}

// SenderOptions carries process-level settings that are not part of the
// notify config section.
type SenderOptions struct {
	// GreetOnReady enables the Discord greeting. Set by serve only.
	GreetOnReady bool
	Logger       *slog.Logger
}

// NewSender builds the sender selected by notify.backend. It returns nil
// without error when the backend lacks a credential or channel id.
func NewSender(cfg config.NotifyConfig, opts SenderOptions) (Sender, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", cfg.Backend)

	switch cfg.Backend {
	case "discord":
		if cfg.Discord.Token == "" || cfg.ChannelID == "" {
			return nil, nil
		}
		return NewDiscord(DiscordConfig{
			Token:        cfg.Discord.Token,
			ChannelID:    cfg.ChannelID,
			Greeting:     cfg.Discord.Greeting,
			GreetOnReady: opts.GreetOnReady,
			Logger:       logger,
		}), nil
	case "telegram":
		if cfg.Telegram.Token == "" || cfg.ChannelID == "" {
			return nil, nil
		}
		return NewTelegram(TelegramConfig{Token: cfg.Telegram.Token, Logger: logger}), nil
	case "slack":
		if cfg.Slack.BotToken == "" || cfg.ChannelID == "" {
			return nil, nil
		}
		return NewSlack(SlackConfig{BotToken: cfg.Slack.BotToken, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}
