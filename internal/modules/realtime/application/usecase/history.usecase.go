package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
)

// HistoryUseCase builds the one-time backfill a session receives on activation.
// Limit bounds every query; zero means unbounded.
type HistoryUseCase struct {
	log    port.DurableLog
	limit  int
	logger *slog.Logger
}

func NewHistoryUseCase(log port.DurableLog, limit int, logger *slog.Logger) *HistoryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryUseCase{log: log, limit: limit, logger: logger}
}

// ChatHistory returns the chat_history payload for room: the newest messages,
// oldest first. It always returns a payload, even for an empty room.
func (uc *HistoryUseCase) ChatHistory(ctx context.Context, room string) ([]byte, error) {
	messages, err := uc.log.QueryChatMessages(ctx, domain.ChatQuery{Room: room, Order: domain.NewestFirst, Limit: uc.limit})
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	slices.Reverse(messages)

	data, err := json.Marshal(domain.NewChatHistoryPayload(messages))
	if err != nil {
		return nil, fmt.Errorf("marshal chat history: %w", err)
	}
	uc.logger.Debug("chat history loaded", slog.String("room", room), slog.Int("count", len(messages)))
	return data, nil
}

// NotificationHistory returns the notification_history payload with the recipient's
// unread notifications, newest first, or nil when there is nothing unread.
func (uc *HistoryUseCase) NotificationHistory(ctx context.Context, recipient string) ([]byte, error) {
	notifications, err := uc.log.QueryNotifications(ctx, domain.NotificationQuery{
		Recipient:  recipient,
		UnreadOnly: true,
		Order:      domain.NewestFirst,
		Limit:      uc.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load notification history: %w", err)
	}
	if len(notifications) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(domain.NewNotificationHistoryPayload(notifications))
	if err != nil {
		return nil, fmt.Errorf("marshal notification history: %w", err)
	}
	uc.logger.Info("unread notifications loaded", slog.String("recipient", recipient), slog.Int("count", len(notifications)))
	return data, nil
}
