package domain

import (
	"context"
	"errors"
)

var (
	// ErrSenderNotConnected is returned when the chat session is not open.
	ErrSenderNotConnected = errors.New("sender not connected")
	// ErrChannelNotFound is returned when the target channel is unknown to the bot.
	ErrChannelNotFound = errors.New("channel not found")
)

// ChannelSender publishes a text message to a chat channel.
// Its connection lifecycle belongs to whoever constructed it.
type ChannelSender interface {
	Name() string
	Send(ctx context.Context, channelID, text string) error
}
