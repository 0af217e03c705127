package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"relayWs/internal/modules/realtime/application/usecase"
	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/modules/realtime/infrastructure"
	"relayWs/internal/shared/auth"
	"relayWs/internal/shared/httputil"
)

const historyTimeout = 10 * time.Second

// connectErrors maps rejected connection attempts to bare HTTP statuses; the
// socket is never upgraded for them.
var connectErrors = httputil.NewErrorMapper(httputil.Fallback(http.StatusInternalServerError, "unable to connect"),
	httputil.On(usecase.ErrMissingToken, http.StatusUnauthorized, "missing token"),
	httputil.On(auth.ErrMissingToken, http.StatusUnauthorized, "missing token"),
	httputil.On(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token"),
	httputil.On(usecase.ErrMissingRecipient, http.StatusBadRequest, "missing user"),
	httputil.On(usecase.ErrForbiddenTopic, http.StatusForbidden, "forbidden"),
)

// WebsocketDeps carries what the websocket handlers need to run a session.
type WebsocketDeps struct {
	Hub      *infrastructure.Hub
	Sessions *infrastructure.SessionSet
	Connect  *usecase.ConnectUseCase
	History  *usecase.HistoryUseCase
	Chat     *usecase.ChatUseCase
	Upgrader *websocket.Upgrader
	Session  infrastructure.SessionOptions
	Logger   *slog.Logger
}

func (d WebsocketDeps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d WebsocketDeps) upgrader() *websocket.Upgrader {
	if d.Upgrader == nil {
		return NewOriginPolicy(nil, d.Logger).Upgrader()
	}
	return d.Upgrader
}

// NewChatWebsocketHandler exposes /ws/chat[/:token]. Every authenticated caller
// joins the configured room, gets its recent history and may post messages.
func NewChatWebsocketHandler(deps WebsocketDeps) echo.HandlerFunc {
	logger := deps.logger()
	upgrader := deps.upgrader()

	return func(c echo.Context) error {
		req := c.Request()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()
		token := auth.ResolveToken(c.Param("token"), req)

		identity, err := deps.Connect.ConnectChat(req.Context(), token)
		if err != nil {
			logger.Warn("chat ws rejected", slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Any("error", err))
			return connectErrors.Echo(err)
		}

		conn, err := upgrader.Upgrade(c.Response(), req, nil)
		if err != nil {
			// The upgrader already answered the request.
			logger.Error("chat ws upgrade failed", slog.String("ip", peerIP), slog.String("reqID", requestID), slog.Any("error", err))
			return nil
		}

		onChat := func(ctx context.Context, s *infrastructure.Session, cmd domain.ChatSendCommand) error {
			_, err := deps.Chat.Post(ctx, s.Identity(), cmd)
			return err
		}
		session := infrastructure.NewSession(conn, deps.Hub, identity, deps.Session, onChat, logger)
		start(c, deps.Sessions, session, deps.Chat.Topic(), logger, func(ctx context.Context) ([]byte, error) {
			return deps.History.ChatHistory(ctx, deps.Chat.Room())
		})

		logger.Info("chat ws connected", slog.String("userId", identity.ID), slog.String("username", identity.Username), slog.String("sessionId", session.ID()), slog.String("ip", peerIP), slog.String("reqID", requestID))
		return nil
	}
}

// start joins topic, loads the backfill and activates the session. Joining
// before the history query means an event published in between may arrive
// twice, but never goes missing.
func start(c echo.Context, sessions *infrastructure.SessionSet, session *infrastructure.Session, topic domain.Topic, logger *slog.Logger, loadHistory func(context.Context) ([]byte, error)) {
	if sessions != nil && !sessions.Track(session) {
		logger.Info("ws session refused: shutting down", slog.String("sessionId", session.ID()))
		session.Close()
		return
	}
	if err := session.Join(topic); err != nil {
		logger.Warn("ws join failed", slog.String("topic", topic.String()), slog.Any("error", err))
		session.Close()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), historyTimeout)
	defer cancel()
	history, err := loadHistory(ctx)
	if err != nil {
		logger.Error("ws history load failed", slog.String("topic", topic.String()), slog.Any("error", err))
		session.Close()
		return
	}
	if err := session.Activate(history); err != nil {
		logger.Warn("ws activation failed", slog.String("topic", topic.String()), slog.Any("error", err))
		return
	}
	session.Start()
}

// NewHealthHandler reports liveness, the number of topics with members and,
// when tracked, the number of live sessions.
func NewHealthHandler(hub *infrastructure.Hub, sessions *infrastructure.SessionSet) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]any{
			"status": "ok",
			"topics": hub.TopicCount(),
		}
		if sessions != nil {
			body["sessions"] = sessions.Len()
		}
		return c.JSON(http.StatusOK, body)
	}
}
