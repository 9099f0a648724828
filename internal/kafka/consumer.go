package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

const retryDelay = 5 * time.Second

// ResultHandler processes one result message. Returned errors are logged;
// the message is committed either way.
type ResultHandler func(ctx context.Context, msg models.ResultMessage) error

// Consumer оборачивает Sarama ConsumerGroup
type Consumer struct {
	group  sarama.ConsumerGroup
	topic  string
	closed chan struct{}
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:  group,
		topic:  topic,
		closed: make(chan struct{}),
	}, nil
}

// StartListening consumes the result topic in the background until ctx is
// cancelled or Close is called.
func (c *Consumer) StartListening(ctx context.Context, handle ResultHandler) {
	handler := &consumerGroupHandler{
		handle: handle,
		closed: c.closed,
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Consumer: context cancelled, stopping")
				return
			case <-c.closed:
				log.Info().Msg("Consumer: received close signal, stopping")
				return
			default:
				log.Debug().Str("topic", c.topic).Msg("Consumer: starting consumption cycle")
				if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
					log.Error().Err(err).Dur("retry_in", retryDelay).Msg("Consume error")
					select {
					case <-ctx.Done():
						return
					case <-c.closed:
						return
					case <-time.After(retryDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

type consumerGroupHandler struct {
	handle ResultHandler
	closed <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consume(sess.Context(), msg)

			// Подтверждаем обработку сообщения
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}

func (h *consumerGroupHandler) consume(ctx context.Context, msg *sarama.ConsumerMessage) {
	var result models.ResultMessage
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		log.Error().Err(err).Int64("offset", msg.Offset).Msg("Invalid result message format")
		return
	}
	if result.CameraID == "" {
		log.Error().Int64("offset", msg.Offset).Msg("Result message without camera_id")
		return
	}

	if err := h.handle(ctx, result); err != nil {
		log.Error().Err(err).Str("camera_id", result.CameraID).Msg("Failed to process result message")
	}
}
