package handler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relayWs/internal/modules/realtime/application/usecase"
	"relayWs/internal/modules/realtime/domain"
)

type memoryNotifications struct {
	mu     sync.Mutex
	stored []domain.Notification
}

func (m *memoryNotifications) AppendChatMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	return msg, nil
}

func (m *memoryNotifications) QueryChatMessages(context.Context, domain.ChatQuery) ([]domain.ChatMessage, error) {
	return nil, nil
}

func (m *memoryNotifications) AppendNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = "n1"
	m.stored = append(m.stored, n)
	return n, nil
}

func (m *memoryNotifications) QueryNotifications(context.Context, domain.NotificationQuery) ([]domain.Notification, error) {
	return nil, nil
}

type countingBroadcaster struct{ topics []domain.Topic }

func (c *countingBroadcaster) Broadcast(_ context.Context, topic domain.Topic, _ []byte) int {
	c.topics = append(c.topics, topic)
	return 0
}

func newTriggerHandler() (*NotificationTriggerHandler, *memoryNotifications, *countingBroadcaster) {
	log := &memoryNotifications{}
	broadcaster := &countingBroadcaster{}
	notify := usecase.NewNotifyUseCase(usecase.NewBroadcastUseCase(log, broadcaster, nil), nil)
	return NewNotificationTriggerHandler("notifications.trigger", notify, nil), log, broadcaster
}

func TestNotificationTriggerHandlerNotifiesRecipient(t *testing.T) {
	t.Parallel()

	h, log, broadcaster := newTriggerHandler()
	if h.Topic() != "notifications.trigger" {
		t.Fatalf("unexpected topic %q", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte(`{"recipient":"42","message":"followed you"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log.stored) != 1 || log.stored[0].Recipient != "42" || log.stored[0].Body != "followed you" {
		t.Fatalf("unexpected stored notifications: %#v", log.stored)
	}
	if len(broadcaster.topics) != 1 || broadcaster.topics[0] != domain.UserTopic("42") {
		t.Fatalf("unexpected broadcasts: %v", broadcaster.topics)
	}
}

func TestNotificationTriggerHandlerRejectsBadEvents(t *testing.T) {
	t.Parallel()

	h, log, _ := newTriggerHandler()
	if err := h.Handle(context.Background(), []byte("not json")); !errors.Is(err, ErrMalformedTrigger) {
		t.Fatalf("expected ErrMalformedTrigger, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"message":"nobody"}`)); !errors.Is(err, usecase.ErrInvalidTrigger) {
		t.Fatalf("expected ErrInvalidTrigger, got %v", err)
	}
	if len(log.stored) != 0 {
		t.Fatalf("nothing should be stored, got %#v", log.stored)
	}
}
