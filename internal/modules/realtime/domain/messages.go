package domain

import (
	"time"

	"github.com/samber/lo"
)

// Outbound payload tags.
const (
	TypeChatHistory         = "chat_history"
	TypeChatMessage         = "chat_message"
	TypeNotificationHistory = "notification_history"
	TypeNotification        = "notification"
	TypePong                = "pong"
	TypeError               = "error"
)

type ChatEntry struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ChatHistoryPayload struct {
	Type     string      `json:"type"`
	Messages []ChatEntry `json:"messages"`
}

type ChatMessagePayload struct {
	Type string `json:"type"`
	ChatEntry
}

type NotificationEntry struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type NotificationHistoryPayload struct {
	Type          string              `json:"type"`
	Notifications []NotificationEntry `json:"notifications"`
}

type NotificationPayload struct {
	Type string `json:"type"`
	NotificationEntry
}

// ErrorPayload tells a sender that its own frame could not be processed.
type ErrorPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type PongPayload struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// FormatTimestamp renders record timestamps the way every payload carries them.
func FormatTimestamp(at time.Time) string {
	return at.UTC().Format(time.RFC3339Nano)
}

func toChatEntry(m ChatMessage) ChatEntry {
	return ChatEntry{Username: m.AuthorName, Message: m.Body, Timestamp: FormatTimestamp(m.CreatedAt)}
}

func toNotificationEntry(n Notification) NotificationEntry {
	return NotificationEntry{ID: n.ID, Message: n.Body, Timestamp: FormatTimestamp(n.CreatedAt)}
}

// NewChatHistoryPayload keeps the order of messages as given. Messages is never nil.
func NewChatHistoryPayload(messages []ChatMessage) ChatHistoryPayload {
	entries := lo.Map(messages, func(m ChatMessage, _ int) ChatEntry { return toChatEntry(m) })
	return ChatHistoryPayload{Type: TypeChatHistory, Messages: entries}
}

func NewChatMessagePayload(m ChatMessage) ChatMessagePayload {
	return ChatMessagePayload{Type: TypeChatMessage, ChatEntry: toChatEntry(m)}
}

func NewNotificationHistoryPayload(notifications []Notification) NotificationHistoryPayload {
	entries := lo.Map(notifications, func(n Notification, _ int) NotificationEntry { return toNotificationEntry(n) })
	return NotificationHistoryPayload{Type: TypeNotificationHistory, Notifications: entries}
}

func NewNotificationPayload(n Notification) NotificationPayload {
	return NotificationPayload{Type: TypeNotification, NotificationEntry: toNotificationEntry(n)}
}

func NewPongPayload(at time.Time) PongPayload {
	return PongPayload{Type: TypePong, Timestamp: FormatTimestamp(at)}
}

func NewErrorPayload(message string, at time.Time) ErrorPayload {
	return ErrorPayload{Type: TypeError, Message: message, Timestamp: FormatTimestamp(at)}
}
