package infrastructure

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"relayWs/internal/modules/realtime/application/port"
)

// HandlerRegistry routes raw broker events to the handler registered for their topic.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]port.TopicHandler
	logger   *slog.Logger
}

func NewHandlerRegistry(logger *slog.Logger) *HandlerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlerRegistry{handlers: make(map[string]port.TopicHandler), logger: logger}
}

// Register replaces any handler previously registered for the same topic.
func (r *HandlerRegistry) Register(h port.TopicHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Topic()] = h
}

// Topics lists the registered topics in lexical order.
func (r *HandlerRegistry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Dispatch hands value to the topic's handler. Events on unknown topics are dropped.
func (r *HandlerRegistry) Dispatch(ctx context.Context, topic string, value []byte) error {
	r.mu.RLock()
	handler, ok := r.handlers[topic]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("no handler registered for topic", slog.String("topic", topic))
		return nil
	}
	return handler.Handle(ctx, value)
}
