package port

import (
	"context"
	"errors"

	"relayWs/internal/modules/realtime/domain"
)

var (
	// ErrSessionClosed is returned by Deliver once the subscriber's connection is gone.
	ErrSessionClosed = errors.New("session closed")
	// ErrSendBufferFull is returned by Deliver when the subscriber cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrForbiddenTopic rejects a registration for another identity's private topic.
	ErrForbiddenTopic = errors.New("topic not allowed for identity")
	// ErrPersistFailed means an event could not be stored and was not broadcast.
	ErrPersistFailed = errors.New("persist failed")
)

// Subscriber is the registry's handle on one live session's send path.
type Subscriber interface {
	ID() string
	Deliver(payload []byte) error
}

// Registry tracks which subscribers are joined to which topic.
type Registry interface {
	Join(topic domain.Topic, sub Subscriber)
	Leave(topic domain.Topic, sub Subscriber)
	MembersOf(topic domain.Topic) []Subscriber
}

// Broadcaster fans a payload out to every current member of a topic and
// returns how many members accepted it.
type Broadcaster interface {
	Broadcast(ctx context.Context, topic domain.Topic, payload []byte) int
}

// TopicHandler handles raw events consumed from one broker topic.
type TopicHandler interface {
	Topic() string
	Handle(ctx context.Context, value []byte) error
}
