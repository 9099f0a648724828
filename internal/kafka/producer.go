package kafka

import (
	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

type Producer struct {
	Producer sarama.SyncProducer
	Topic    string
}

// NewKafkaProducer создаёт продюсер с настройками
func NewKafkaProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewProducer(producer, topic), nil
}

func NewProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{
		Producer: producer,
		Topic:    topic,
	}
}

// SendCommand publishes a worker command. Messages are keyed by camera so a
// camera's commands stay ordered on one partition; resets carry no camera
// and are keyed by algorithm.
func (kp *Producer) SendCommand(cmd models.WorkerCommand) error {
	value, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	key := cmd.CameraID
	if key == "" {
		key = cmd.Name
	}

	return kp.send(key, value)
}

// SendOutboxMessage publishes a stored outbox row in the same envelope as SendCommand.
func (kp *Producer) SendOutboxMessage(msg models.OutboxMessage) error {
	cmd := models.WorkerCommand{
		ID:        msg.ID,
		Kind:      msg.Kind,
		Name:      msg.Name,
		CameraID:  msg.CameraID,
		CreatedAt: msg.CreatedAt,
	}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &cmd.Payload); err != nil {
			return err
		}
	}

	return kp.SendCommand(cmd)
}

func (kp *Producer) send(key string, value []byte) error {
	partition, offset, err := kp.Producer.SendMessage(&sarama.ProducerMessage{
		Topic: kp.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("topic", kp.Topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Sent message to Kafka")
	return nil
}

func (kp *Producer) Close() error {
	return kp.Producer.Close()
}
