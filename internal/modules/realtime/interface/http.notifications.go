package transport

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"relayWs/internal/modules/realtime/infrastructure"
	"relayWs/internal/shared/auth"
)

// NewNotificationsWebsocketHandler exposes /ws/notifications/:userID[/:token].
// Only the user named in the route may connect; the session is receive-only.
func NewNotificationsWebsocketHandler(deps WebsocketDeps) echo.HandlerFunc {
	logger := deps.logger()
	upgrader := deps.upgrader()

	return func(c echo.Context) error {
		req := c.Request()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()
		token := auth.ResolveToken(c.Param("token"), req)

		identity, topic, err := deps.Connect.ConnectNotifications(req.Context(), token, c.Param("userID"))
		if err != nil {
			logger.Warn("notifications ws rejected", slog.String("routeUserId", c.Param("userID")), slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Any("error", err))
			return connectErrors.Echo(err)
		}

		conn, err := upgrader.Upgrade(c.Response(), req, nil)
		if err != nil {
			logger.Error("notifications ws upgrade failed", slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Any("error", err))
			return nil
		}

		session := infrastructure.NewSession(conn, deps.Hub, identity, deps.Session, nil, logger)
		start(c, deps.Sessions, session, topic, logger, func(ctx context.Context) ([]byte, error) {
			return deps.History.NotificationHistory(ctx, identity.ID)
		})

		logger.Info("notifications ws connected", slog.String("userId", identity.ID), slog.String("sessionId", session.ID()), slog.String("ip", peerIP), slog.String("reqID", requestID))
		return nil
	}
}
