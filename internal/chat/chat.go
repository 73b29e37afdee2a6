// Package chat defines the messages the bot hears and the transports that carry them.
package chat

import (
	"context"
	"time"
)

// Message is one line of chat heard by the bot.
type Message struct {
	ID     string    `json:"id"`
	Room   string    `json:"room"`
	User   string    `json:"user"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at,omitempty"`
}

// Outbound is a message the bot posts to a room.
type Outbound struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// Transport connects the bot to a chat platform.
//
// Messages is closed when the transport stops delivering. SendToRoom must be safe for concurrent use.
type Transport interface {
	Name() string
	Messages() <-chan Message
	SendToRoom(ctx context.Context, room, text string) error
}
