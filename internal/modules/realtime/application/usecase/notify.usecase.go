package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"relayWs/internal/modules/realtime/domain"
)

var ErrInvalidTrigger = errors.New("invalid notification trigger")

// NotifyUseCase is the entry point for code outside the websocket layer that
// wants to notify a user. It returns once the notification is durable and
// dispatch was attempted; delivery failures never reach the caller.
type NotifyUseCase struct {
	broadcast *BroadcastUseCase
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewNotifyUseCase(broadcast *BroadcastUseCase, logger *slog.Logger) *NotifyUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyUseCase{
		broadcast: broadcast,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// DefaultNotificationMessage is the body used when a trigger carries none.
func DefaultNotificationMessage(recipient string) string {
	return fmt.Sprintf("Hello %s! This is a test notification.", recipient)
}

func (uc *NotifyUseCase) Notify(ctx context.Context, recipient, message string) (domain.Notification, error) {
	trigger := domain.NotificationTrigger{
		Recipient: strings.TrimSpace(recipient),
		Message:   strings.TrimSpace(message),
	}
	if err := uc.validate.Struct(trigger); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	if trigger.Message == "" {
		trigger.Message = DefaultNotificationMessage(trigger.Recipient)
	}

	stored, err := uc.broadcast.PublishNotification(ctx, domain.Notification{
		Recipient: trigger.Recipient,
		Body:      trigger.Message,
	})
	if err != nil {
		return domain.Notification{}, err
	}
	uc.logger.Info("notification triggered", slog.String("recipient", stored.Recipient), slog.String("id", stored.ID))
	return stored, nil
}
