package broker

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"relayWs/internal/modules/realtime/infrastructure"
)

// StartKafkaConsumers starts one consumer per registered topic. It is a no-op
// without brokers, so local runs work without Kafka.
func StartKafkaConsumers(
	ctx context.Context,
	registry *infrastructure.HandlerRegistry,
	brokers []string,
	groupID string,
	logger *slog.Logger,
) int {
	if logger == nil {
		logger = slog.Default()
	}
	if len(brokers) == 0 {
		logger.Info("kafka brokers not configured, consumers disabled")
		return 0
	}
	topics := registry.Topics()
	for _, topic := range topics {
		topic := topic
		consumer := NewKafkaConsumer(brokers, groupID, topic, logger.With(slog.String("kafkaTopic", topic)))
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, m kafka.Message) error {
				return registry.Dispatch(ctx, m.Topic, m.Value)
			})
			logger.Info("kafka consumer stopped", slog.String("topic", topic), slog.Any("reason", err))
		}()
	}
	return len(topics)
}
