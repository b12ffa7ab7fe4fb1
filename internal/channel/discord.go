package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"triquery/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Discord sends messages to Discord text channels through a bot session.
type Discord struct {
	token     string
	channelID string
	greeting  string
	greet     bool
	logger    *slog.Logger

	mu      sync.RWMutex
	session *discordgo.Session
}

// DiscordConfig configures the Discord sender.
type DiscordConfig struct {
	Token     string
	ChannelID string // greeting target
	Greeting  string // empty disables it
	// GreetOnReady posts Greeting once the gateway is ready. Only the
	// long-running server sets it, so one-shot CLI runs stay quiet.
	GreetOnReady bool
	Logger       *slog.Logger
}

// NewDiscord creates a Discord sender. Call Open before Send.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:     cfg.Token,
		channelID: cfg.ChannelID,
		greeting:  cfg.Greeting,
		greet:     cfg.GreetOnReady,
		logger:    cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Open logs the bot in and keeps the gateway session for later sends.
func (d *Discord) Open(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info("discord bot connected", "user", r.User.Username)
		greeting, ok := d.readyGreeting()
		if !ok {
			return
		}
		if _, err := s.ChannelMessageSend(d.channelID, greeting); err != nil {
			d.logger.Warn("discord greeting failed", "channel", d.channelID, "err", err)
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()
	return nil
}

// readyGreeting returns the message to post when the gateway becomes ready.
func (d *Discord) readyGreeting() (string, bool) {
	if !d.greet || d.greeting == "" || d.channelID == "" {
		return "", false
	}
	return d.greeting, true
}

// Close disconnects the gateway session.
func (d *Discord) Close() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	if session == nil {
		return nil
	}
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

// Send posts text to channelID. The channel is looked up in the gateway
// state first and then over REST.
func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()
	if session == nil {
		return domain.ErrSenderNotConnected
	}

	if _, err := session.State.Channel(channelID); err != nil {
		if _, err := session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return d.mapError(channelID, err)
		}
	}

	if _, err := session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return d.mapError(channelID, err)
	}
	return nil
}

func (d *Discord) mapError(channelID string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
			return fmt.Errorf("discord channel %s: %w", channelID, domain.ErrChannelNotFound)
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("discord channel %s: %w", channelID, domain.ErrChannelNotFound)
		}
	}
	return fmt.Errorf("discord send: %w", err)
}
