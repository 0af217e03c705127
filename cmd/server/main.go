package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"relayWs/internal/config"
	handler "relayWs/internal/modules/realtime/application/handler"
	usecase "relayWs/internal/modules/realtime/application/usecase"
	"relayWs/internal/modules/realtime/infrastructure"
	"relayWs/internal/modules/realtime/infrastructure/storage"
	transport "relayWs/internal/modules/realtime/interface"
	"relayWs/internal/platform/broker"
	"relayWs/internal/shared/auth"
	"relayWs/internal/shared/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup happens before the process exits.
func run() error {
	// Attempt to load variables from .env so local runs honour configuration tweaks.
	if err := godotenv.Overload(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	sink, err := logging.Open(cfg.Logging.Logger(), os.Stdout, time.Now())
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer sink.Close()
	log.SetOutput(sink.Writer)
	log.SetFlags(0)
	log.SetPrefix("")
	logger := sink.Logger
	slog.SetDefault(logger)
	slog.Info("logging initialized", slog.String("file", sink.Path), slog.String("level", cfg.Logging.Level), slog.String("format", cfg.Logging.Format))

	db, err := storage.OpenBadger(cfg.Storage.Directory, cfg.Storage.InMemory)
	if err != nil {
		slog.Error("durable log unavailable", slog.String("directory", cfg.Storage.Directory), slog.Any("error", err))
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("durable log close failed", slog.Any("error", err))
		}
	}()
	durableLog := storage.NewBadgerLog(db, logger)
	slog.Info("durable log opened", slog.String("directory", cfg.Storage.Directory), slog.Bool("inMemory", cfg.Storage.InMemory))

	// JWT validator; an RSA public key takes precedence over the shared secret.
	validator, err := auth.NewJWTValidatorWithPublicKey(cfg.Security.Secret, cfg.Security.PublicKey)
	if err != nil {
		slog.Error("jwt validator setup failed", slog.Any("error", err))
		return err
	}

	hub := infrastructure.NewHub(logger)
	sessions := infrastructure.NewSessionSet(logger)

	// Use cases
	broadcastUC := usecase.NewBroadcastUseCase(durableLog, hub, logger)
	historyUC := usecase.NewHistoryUseCase(durableLog, cfg.Chat.HistoryLimit, logger)
	connectUC := usecase.NewConnectUseCase(validator, logger)
	chatUC := usecase.NewChatUseCase(cfg.Chat.Room, cfg.Chat.MaxMessageLength, broadcastUC)
	notifyUC := usecase.NewNotifyUseCase(broadcastUC, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := infrastructure.NewHandlerRegistry(logger)
	registry.Register(handler.NewNotificationTriggerHandler(cfg.Kafka.NotificationTopic, notifyUC, logger))
	started := broker.StartKafkaConsumers(ctx, registry, cfg.Kafka.Brokers, cfg.Kafka.GroupID, logger)
	slog.Info("kafka config resolved", slog.Any("brokers", cfg.Kafka.Brokers), slog.String("group", cfg.Kafka.GroupID), slog.Int("consumers", started))

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	transport.RegisterRoutes(e, transport.WebsocketDeps{
		Hub:      hub,
		Sessions: sessions,
		Connect:  connectUC,
		History:  historyUC,
		Chat:     chatUC,
		Upgrader: transport.NewOriginPolicy(cfg.Websocket.AllowedOrigins, logger).Upgrader(),
		Session: infrastructure.SessionOptions{
			SendBuffer:   cfg.Websocket.SendBuffer,
			ReadLimit:    cfg.Websocket.ReadLimit,
			PingInterval: cfg.Websocket.PingInterval,
			PongWait:     cfg.Websocket.PongWait,
			WriteWait:    cfg.Websocket.WriteWait,
		},
		Logger: logger,
	}, notifyUC, logger)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.Any("error", err))
		}
	}()
	slog.Info("relay listening", slog.String("port", cfg.Server.Port), slog.String("room", cfg.Chat.Room))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down", slog.Int("sessions", sessions.Len()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", slog.Any("error", err))
		_ = e.Close()
	}
	// Hijacked websocket connections outlive e.Shutdown; their pumps must be
	// gone before the durable log closes.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		slog.Warn("websocket sessions still draining", slog.Any("error", err))
	}
	return nil
}
