package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/application/usecase"
	"relayWs/internal/modules/realtime/domain"
)

var ErrMalformedTrigger = errors.New("malformed notification trigger")

// NotificationTriggerHandler turns broker events of the form
// {"recipient": "...", "message": "..."} into notifications.
type NotificationTriggerHandler struct {
	topic  string
	notify *usecase.NotifyUseCase
	logger *slog.Logger
}

func NewNotificationTriggerHandler(topic string, notify *usecase.NotifyUseCase, logger *slog.Logger) *NotificationTriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationTriggerHandler{topic: topic, notify: notify, logger: logger}
}

func (h *NotificationTriggerHandler) Topic() string { return h.topic }

func (h *NotificationTriggerHandler) Handle(ctx context.Context, value []byte) error {
	var trigger domain.NotificationTrigger
	if err := json.Unmarshal(value, &trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}
	stored, err := h.notify.Notify(ctx, trigger.Recipient, trigger.Message)
	if err != nil {
		return err
	}
	h.logger.Debug("broker notification trigger handled", slog.String("topic", h.topic), slog.String("id", stored.ID))
	return nil
}

var _ port.TopicHandler = (*NotificationTriggerHandler)(nil)
