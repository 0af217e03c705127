package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/auth"
)

// memoryLog is an ordered in-memory stand-in for the durable log.
type memoryLog struct {
	mu            sync.Mutex
	seq           int
	base          time.Time
	chat          []domain.ChatMessage
	notifications []domain.Notification
	failAppend    error
	failQuery     error
}

func newMemoryLog() *memoryLog {
	return &memoryLog{base: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memoryLog) next() (string, time.Time) {
	m.seq++
	return fmt.Sprintf("id-%03d", m.seq), m.base.Add(time.Duration(m.seq) * time.Second)
}

func (m *memoryLog) AppendChatMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return domain.ChatMessage{}, m.failAppend
	}
	msg.ID, msg.CreatedAt = m.next()
	m.chat = append(m.chat, msg)
	return msg, nil
}

func (m *memoryLog) QueryChatMessages(_ context.Context, q domain.ChatQuery) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQuery != nil {
		return nil, m.failQuery
	}
	out := make([]domain.ChatMessage, 0)
	for _, msg := range m.chat {
		if msg.Room == q.Room {
			out = append(out, msg)
		}
	}
	if q.Order == domain.NewestFirst {
		slices.Reverse(out)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memoryLog) AppendNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return domain.Notification{}, m.failAppend
	}
	n.ID, n.CreatedAt = m.next()
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *memoryLog) QueryNotifications(_ context.Context, q domain.NotificationQuery) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQuery != nil {
		return nil, m.failQuery
	}
	out := make([]domain.Notification, 0)
	for _, n := range m.notifications {
		if n.Recipient == q.Recipient && !(q.UnreadOnly && n.Read) {
			out = append(out, n)
		}
	}
	if q.Order == domain.NewestFirst {
		slices.Reverse(out)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type broadcastCall struct {
	topic   domain.Topic
	payload map[string]any
}

// recordingBroadcaster captures every fan-out instead of delivering it.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, topic domain.Topic, payload []byte) int {
	var decoded map[string]any
	_ = json.Unmarshal(payload, &decoded)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{topic: topic, payload: decoded})
	return 1
}

func (r *recordingBroadcaster) snapshot() []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcastCall(nil), r.calls...)
}

type stubValidator struct {
	claims *auth.Claims
	err    error
}

func (s stubValidator) Validate(string) (*auth.Claims, error) {
	return s.claims, s.err
}
