package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
)

var ErrPersistFailed = port.ErrPersistFailed

// BroadcastUseCase persists an event and then fans it out to the topic's members.
// Persist and fan-out run under a per-topic lock, so every subscriber of a topic
// observes events in the order they were persisted.
type BroadcastUseCase struct {
	log         port.DurableLog
	broadcaster port.Broadcaster
	locks       *topicLocks
	logger      *slog.Logger
}

func NewBroadcastUseCase(log port.DurableLog, b port.Broadcaster, logger *slog.Logger) *BroadcastUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BroadcastUseCase{log: log, broadcaster: b, locks: newTopicLocks(), logger: logger}
}

// PublishChat stores msg in room and pushes it to every session in the room,
// the sender's own session included.
func (uc *BroadcastUseCase) PublishChat(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	topic := domain.RoomTopic(msg.Room)
	unlock := uc.locks.lock(topic)
	defer unlock()

	stored, err := uc.log.AppendChatMessage(ctx, msg)
	if err != nil {
		uc.logger.Error("chat message persist failed", slog.String("topic", topic.String()), slog.String("authorId", msg.AuthorID), slog.Any("error", err))
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	uc.fanOut(ctx, topic, domain.NewChatMessagePayload(stored))
	return stored, nil
}

// PublishNotification stores n and pushes it to the recipient's sessions, if any.
func (uc *BroadcastUseCase) PublishNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	topic := domain.UserTopic(n.Recipient)
	unlock := uc.locks.lock(topic)
	defer unlock()

	stored, err := uc.log.AppendNotification(ctx, n)
	if err != nil {
		uc.logger.Error("notification persist failed", slog.String("topic", topic.String()), slog.Any("error", err))
		return domain.Notification{}, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	uc.fanOut(ctx, topic, domain.NewNotificationPayload(stored))
	return stored, nil
}

// fanOut never fails the publish: the record is already durable and each
// recipient's failure is handled by the broadcaster.
func (uc *BroadcastUseCase) fanOut(ctx context.Context, topic domain.Topic, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		uc.logger.Error("broadcast marshal error", slog.String("topic", topic.String()), slog.Any("error", err))
		return
	}
	delivered := uc.broadcaster.Broadcast(ctx, topic, data)
	uc.logger.Info("broadcast published", slog.String("topic", topic.String()), slog.Int("delivered", delivered))
}
