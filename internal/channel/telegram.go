package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"triquery/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends messages to a Telegram chat through the Bot API.
// Chat ids are numeric, or "@name" for public channels.
type Telegram struct {
	token    string
	endpoint string
	logger   *slog.Logger

	mu  sync.RWMutex
	bot *tgbotapi.BotAPI
}

type TelegramConfig struct {
	Token    string
	Endpoint string // Bot API endpoint format; defaults to tgbotapi.APIEndpoint
	Logger   *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:    cfg.Token,
		endpoint: cfg.Endpoint,
		logger:   cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Open verifies the token with getMe.
func (t *Telegram) Open(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.mu.Lock()
	t.bot = bot
	t.mu.Unlock()

	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
	return nil
}

// Close drops the bot handle. No polling is started, so there is nothing to stop.
func (t *Telegram) Close() error {
	t.mu.Lock()
	t.bot = nil
	t.mu.Unlock()
	return nil
}

func (t *Telegram) Send(ctx context.Context, channelID, text string) error {
	t.mu.RLock()
	bot := t.bot
	t.mu.RUnlock()
	if bot == nil {
		return domain.ErrSenderNotConnected
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(channelID, "@") {
		msg = tgbotapi.NewMessageToChannel(channelID, text)
	} else {
		chatID, err := strconv.ParseInt(channelID, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram chat %q: %w", channelID, domain.ErrChannelNotFound)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "chat not found") {
			return fmt.Errorf("telegram chat %s: %w", channelID, domain.ErrChannelNotFound)
		}
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
