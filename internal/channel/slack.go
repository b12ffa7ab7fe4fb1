package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"triquery/internal/domain"

	"github.com/slack-go/slack"
)

// Slack posts messages to a Slack channel with a bot token.
type Slack struct {
	botToken string
	apiURL   string
	logger   *slog.Logger

	mu     sync.RWMutex
	client *slack.Client
}

// SlackConfig configures the Slack sender.
type SlackConfig struct {
	BotToken string
	APIURL   string // overrides the Web API base, mainly for tests
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Slack{
		botToken: cfg.BotToken,
		apiURL:   cfg.APIURL,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Open checks the token with auth.test.
func (s *Slack) Open(ctx context.Context) error {
	var opts []slack.Option
	if s.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(s.apiURL))
	}
	api := slack.New(s.botToken, opts...)

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.logger.Info("slack bot connected", "user", auth.User, "user_id", auth.UserID)

	s.mu.Lock()
	s.client = api
	s.mu.Unlock()
	return nil
}

func (s *Slack) Close() error {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	return nil
}

func (s *Slack) Send(ctx context.Context, channelID, text string) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return domain.ErrSenderNotConnected
	}

	_, _, err := client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		if isSlackChannelNotFound(err) {
			return fmt.Errorf("slack channel %s: %w", channelID, domain.ErrChannelNotFound)
		}
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func isSlackChannelNotFound(err error) bool {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err == "channel_not_found"
	}
	return strings.Contains(err.Error(), "channel_not_found")
}
