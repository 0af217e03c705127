package port

import (
	"context"

	"relayWs/internal/modules/realtime/domain"
)

// ChatLog is the append-only store of chat messages. Append assigns the
// record's ID and CreatedAt and returns the stored record.
type ChatLog interface {
	AppendChatMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	QueryChatMessages(ctx context.Context, query domain.ChatQuery) ([]domain.ChatMessage, error)
}

// NotificationLog is the append-only store of notifications.
type NotificationLog interface {
	AppendNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	QueryNotifications(ctx context.Context, query domain.NotificationQuery) ([]domain.Notification, error)
}

type DurableLog interface {
	ChatLog
	NotificationLog
}
