package transport

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"relayWs/internal/modules/realtime/application/usecase"
)

// RegisterRoutes mounts every relay endpoint on e.
func RegisterRoutes(e *echo.Echo, deps WebsocketDeps, notifyUC *usecase.NotifyUseCase, logger *slog.Logger) {
	chat := NewChatWebsocketHandler(deps)
	e.GET("/ws/chat", chat)
	e.GET("/ws/chat/:token", chat)

	notifications := NewNotificationsWebsocketHandler(deps)
	e.GET("/ws/notifications/:userID", notifications)
	e.GET("/ws/notifications/:userID/:token", notifications)

	trigger := NewTriggerNotificationHandler(notifyUC, logger)
	e.GET("/trigger-notification/:userID", trigger)
	e.POST("/trigger-notification/:userID", trigger)

	e.GET("/healthz", NewHealthHandler(deps.Hub, deps.Sessions))
}
