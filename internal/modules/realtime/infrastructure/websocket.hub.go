package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
)

// Hub is the in-process topic registry. A single RWMutex guards the membership
// map; topic cardinality is low (one room plus one topic per connected user).
// Topics with no members are removed from the map.
type Hub struct {
	topics map[domain.Topic]map[port.Subscriber]struct{}
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[domain.Topic]map[port.Subscriber]struct{}),
		logger: logger,
	}
}

// Join adds sub to topic. Joining twice is a no-op.
func (h *Hub) Join(topic domain.Topic, sub port.Subscriber) {
	if topic == "" || sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.topics[topic]
	if members == nil {
		members = make(map[port.Subscriber]struct{})
		h.topics[topic] = members
	}
	members[sub] = struct{}{}
	h.logger.Debug("ws subscriber joined", slog.String("topic", topic.String()), slog.String("subscriberId", sub.ID()), slog.Int("members", len(members)))
}

// Leave removes sub from topic. Leaving a topic sub never joined is a no-op.
func (h *Hub) Leave(topic domain.Topic, sub port.Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, joined := members[sub]; !joined {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
	h.logger.Debug("ws subscriber left", slog.String("topic", topic.String()), slog.String("subscriberId", sub.ID()), slog.Int("members", len(members)))
}

// MembersOf returns a snapshot of the subscribers joined to topic.
func (h *Hub) MembersOf(topic domain.Topic) []port.Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.topics[topic]
	snapshot := make([]port.Subscriber, 0, len(members))
	for sub := range members {
		snapshot = append(snapshot, sub)
	}
	return snapshot
}

// Broadcast delivers payload to a snapshot of topic's members, outside the lock.
// A failed delivery removes that subscriber and never affects the others.
func (h *Hub) Broadcast(_ context.Context, topic domain.Topic, payload []byte) int {
	members := h.MembersOf(topic)
	delivered := 0
	for _, sub := range members {
		if err := sub.Deliver(payload); err != nil {
			h.logger.Warn("ws delivery failed, dropping subscriber", slog.String("topic", topic.String()), slog.String("subscriberId", sub.ID()), slog.Any("error", err))
			h.Leave(topic, sub)
			continue
		}
		delivered++
	}
	h.logger.Debug("ws broadcast", slog.String("topic", topic.String()), slog.Int("members", len(members)), slog.Int("delivered", delivered))
	return delivered
}

func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

func (h *Hub) MemberCount(topic domain.Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

var (
	_ port.Registry    = (*Hub)(nil)
	_ port.Broadcaster = (*Hub)(nil)
)
