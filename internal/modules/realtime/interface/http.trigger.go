package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"relayWs/internal/modules/realtime/application/usecase"
	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/httputil"
)

// TriggerRequest is the optional body of a trigger call. GET callers pass the
// message as a query parameter instead.
type TriggerRequest struct {
	Message string `json:"message" query:"message"`
}

type TriggerResponse struct {
	Status       string                    `json:"status"`
	Message      string                    `json:"message"`
	Notification *domain.NotificationEntry `json:"notification,omitempty"`
}

var triggerErrors = httputil.NewErrorMapper(httputil.Fallback(http.StatusInternalServerError, "internal server error"),
	httputil.On(usecase.ErrInvalidTrigger, http.StatusBadRequest, "invalid notification trigger"),
	httputil.On(usecase.ErrPersistFailed, http.StatusInternalServerError, "notification could not be stored"),
)

// NewTriggerNotificationHandler exposes /trigger-notification/:userID. It stores
// a notification for the user and pushes it to their open sessions.
func NewTriggerNotificationHandler(notifyUC *usecase.NotifyUseCase, logger *slog.Logger) echo.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c echo.Context) error {
		recipient := strings.TrimSpace(c.Param("userID"))

		var req TriggerRequest
		if err := c.Bind(&req); err != nil {
			logger.Warn("trigger http: invalid request body", slog.String("recipient", recipient), slog.Any("error", err))
			return c.JSON(http.StatusBadRequest, TriggerResponse{Status: "error", Message: "invalid request body"})
		}

		stored, err := notifyUC.Notify(c.Request().Context(), recipient, req.Message)
		if err != nil {
			info := triggerErrors.Resolve(err)
			logger.Warn("trigger http: notification failed", slog.String("recipient", recipient), slog.Int("status", info.Status), slog.Any("error", err))
			return c.JSON(info.Status, TriggerResponse{
				Status:  "error",
				Message: fmt.Sprintf("Error sending notification to %s: %s", recipient, info.Message),
			})
		}

		entry := domain.NewNotificationPayload(stored).NotificationEntry
		return c.JSON(http.StatusOK, TriggerResponse{
			Status:       "success",
			Message:      fmt.Sprintf("Notification sent successfully to %s.", recipient),
			Notification: &entry,
		})
	}
}
