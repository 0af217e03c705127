package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/auth"
)

var (
	ErrMissingToken     = errors.New("missing token")
	ErrMissingRecipient = errors.New("missing recipient")
	ErrForbiddenTopic   = port.ErrForbiddenTopic
)

// ConnectUseCase authorizes a connection attempt before it is upgraded. It runs
// once per connection; the topic derived from the route is fixed afterwards.
type ConnectUseCase struct {
	Validator auth.TokenValidator
	logger    *slog.Logger
}

func NewConnectUseCase(validator auth.TokenValidator, logger *slog.Logger) *ConnectUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectUseCase{Validator: validator, logger: logger}
}

// ConnectChat authenticates a chat room connection.
func (uc *ConnectUseCase) ConnectChat(_ context.Context, token string) (auth.Identity, error) {
	return uc.authenticate(token)
}

// ConnectNotifications authenticates a connection to the notification topic of
// routeUserID and rejects it unless the caller is that user.
func (uc *ConnectUseCase) ConnectNotifications(_ context.Context, token, routeUserID string) (auth.Identity, domain.Topic, error) {
	routeUserID = strings.TrimSpace(routeUserID)
	if routeUserID == "" {
		return auth.Identity{}, "", ErrMissingRecipient
	}
	identity, err := uc.authenticate(token)
	if err != nil {
		return auth.Identity{}, "", err
	}
	if identity.ID != routeUserID {
		uc.logger.Warn("connect rejected: identity does not own topic", slog.String("userId", identity.ID), slog.String("routeUserId", routeUserID))
		return auth.Identity{}, "", ErrForbiddenTopic
	}
	return identity, domain.UserTopic(identity.ID), nil
}

func (uc *ConnectUseCase) authenticate(token string) (auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		uc.logger.Warn("connect rejected: anonymous caller")
		return auth.Identity{}, ErrMissingToken
	}
	claims, err := uc.Validator.Validate(token)
	if err != nil {
		uc.logger.Warn("connect rejected: token validation failed", slog.Any("error", err))
		return auth.Identity{}, err
	}
	identity := claims.Identity()
	if identity.Anonymous() {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return identity, nil
}
