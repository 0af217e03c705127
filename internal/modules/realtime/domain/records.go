package domain

import "time"

// ChatMessage is an immutable message posted to a chat room.
type ChatMessage struct {
	ID         string
	Room       string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// Notification is a message addressed to a single recipient.
type Notification struct {
	ID        string
	Recipient string
	Body      string
	Read      bool
	CreatedAt time.Time
}

// Order is the creation-time ordering requested from the durable log.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// ChatQuery selects chat messages of a room. Limit <= 0 means unbounded.
type ChatQuery struct {
	Room  string
	Order Order
	Limit int
}

// NotificationQuery selects notifications of a recipient. Limit <= 0 means unbounded.
type NotificationQuery struct {
	Recipient  string
	UnreadOnly bool
	Order      Order
	Limit      int
}
