// Package notify decides when a query result is forwarded to the chat channel
// and performs the delivery through a domain.ChannelSender.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"triquery/internal/domain"
	"triquery/internal/metrics"
	"triquery/internal/summary"
)

// HardLimit is the chat transport's message ceiling, in runes.
const HardLimit = 2000

const (
	directKeep   = 1950
	directSuffix = "...\n*[Mensaje truncado]*"

	msgNotConfigured   = "Discord no configurado"
	msgChannelNotFound = "Canal no encontrado"
	msgSent            = "Mensaje enviado exitosamente a Discord"
)

// keywords trigger a notification when found anywhere in the query,
// case-insensitively.
var keywords = []string{
	"discord",
	"enviar",
	"mandar",
	"send to discord",
	"enviar a discord",
	"mandar a discord",
}

// ShouldNotify reports whether the query asks for the result to be forwarded.
func ShouldNotify(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Gate forwards summaries and direct messages to one chat channel.
// A Gate without a sender or channel reports every attempt as not configured.
type Gate struct {
	sender    domain.ChannelSender
	channelID string
	logger    *slog.Logger
}

type Config struct {
	Sender    domain.ChannelSender // nil disables delivery
	ChannelID string
	Logger    *slog.Logger
}

func New(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		sender:    cfg.Sender,
		channelID: cfg.ChannelID,
		logger:    cfg.Logger,
	}
}

// Enabled reports whether a sender and target channel are configured.
func (g *Gate) Enabled() bool {
	return g.sender != nil && g.channelID != ""
}

// Backend names the configured sender, or "none".
func (g *Gate) Backend() string {
	if g.sender == nil {
		return "none"
	}
	return g.sender.Name()
}

// Notify renders a summary of result and sends it. An oversized summary is
// replaced by a short fallback rather than cut a second time.
func (g *Gate) Notify(ctx context.Context, result *domain.QueryResult, query string) domain.NotificationOutcome {
	if !g.Enabled() {
		g.logger.Warn("notification skipped: sender not configured")
		return domain.NotificationOutcome{Sent: false, Message: msgNotConfigured}
	}

	text := summary.Format(result, query, summary.DefaultMaxLength)
	if n := utf8.RuneCountInString(text); n > HardLimit {
		g.logger.Warn("summary over hard limit, sending fallback", "length", n)
		text = Fallback(query)
	}
	return g.deliver(ctx, text)
}

// SendDirect sends message as-is, cutting it only to fit HardLimit.
func (g *Gate) SendDirect(ctx context.Context, message string) domain.NotificationOutcome {
	if !g.Enabled() {
		g.logger.Warn("direct message skipped: sender not configured")
		return domain.NotificationOutcome{Sent: false, Message: msgNotConfigured}
	}

	if n := utf8.RuneCountInString(message); n > HardLimit {
		g.logger.Warn("direct message over hard limit, truncating", "length", n)
		message = string([]rune(message)[:directKeep]) + directSuffix
	}
	return g.deliver(ctx, message)
}

// Fallback is the short message sent when a summary cannot fit.
func Fallback(query string) string {
	preview := query
	if utf8.RuneCountInString(preview) > 100 {
		preview = string([]rune(preview)[:100])
	}
	return "📝 **Pregunta:** " + preview + "...\n\n" +
		"🤖 Respuestas generadas por Gemini, Cohere y Mistral.\n" +
		"💻 Ver detalles completos en la interfaz web."
}

func (g *Gate) deliver(ctx context.Context, text string) domain.NotificationOutcome {
	err := g.sender.Send(ctx, g.channelID, text)
	metrics.ObserveNotification(g.sender.Name(), err == nil)

	switch {
	case err == nil:
		g.logger.Info("notification sent", "backend", g.sender.Name(), "length", utf8.RuneCountInString(text))
		return domain.NotificationOutcome{Sent: true, Message: msgSent}
	case errors.Is(err, domain.ErrChannelNotFound):
		g.logger.Error("notification channel not found", "channel", g.channelID)
		return domain.NotificationOutcome{Sent: false, Message: msgChannelNotFound}
	default:
		g.logger.Error("notification send failed", "backend", g.sender.Name(), "err", err)
		return domain.NotificationOutcome{Sent: false, Message: "Error: " + err.Error()}
	}
}
