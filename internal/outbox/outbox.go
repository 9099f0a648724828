package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

const defaultBatch = 100

type store interface {
	AddToOutbox(ctx context.Context, cmd models.WorkerCommand) error
	GetPendingOutboxMessages(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkOutboxMessageAsProcessed(ctx context.Context, id string) error
}

type publisher interface {
	SendOutboxMessage(msg models.OutboxMessage) error
}

// Gateway records worker calls in the outbox table. A call made inside a
// database transaction commits or rolls back together with it.
type Gateway struct {
	db store
}

func NewGateway(db store) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) StartAlgorithm(ctx context.Context, algorithm string, payload gateway.StartPayload) error {
	return g.add(ctx, gateway.StartCommand(uuid.NewString(), algorithm, payload))
}

func (g *Gateway) StopAndReset(ctx context.Context, algorithm string) error {
	return g.add(ctx, gateway.ResetCommand(uuid.NewString(), algorithm))
}

func (g *Gateway) RunAction(ctx context.Context, action string, payload map[string]any) error {
	return g.add(ctx, gateway.ActionCommand(uuid.NewString(), action, payload))
}

func (g *Gateway) add(ctx context.Context, cmd models.WorkerCommand) error {
	cmd.CreatedAt = time.Now().UTC()
	if err := g.db.AddToOutbox(ctx, cmd); err != nil {
		return &gateway.Error{Op: cmd.Kind, Name: cmd.Name, Err: fmt.Errorf("%w: %w", gateway.ErrNotRecorded, err)}
	}
	return nil
}

// Dispatcher relays pending outbox rows to Kafka. Delivery is at least once:
// a row published but not marked is sent again on the next tick.
type Dispatcher struct {
	db       store
	producer publisher
	interval time.Duration
	batch    int
}

func NewDispatcher(db store, producer publisher, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		db:       db,
		producer: producer,
		interval: interval,
		batch:    defaultBatch,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Outbox dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.Flush(ctx); err != nil {
				log.Error().Err(err).Msg("Error fetching outbox messages")
			}
		}
	}
}

// Flush publishes one batch of pending rows and returns how many were sent.
// A row that fails to publish stops the batch so per-camera order holds.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	messages, err := d.db.GetPendingOutboxMessages(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := d.producer.SendOutboxMessage(msg); err != nil {
			log.Error().Err(err).Str("id", msg.ID).Str("kind", string(msg.Kind)).Msg("Failed to send message to Kafka")
			break
		}

		if err := d.db.MarkOutboxMessageAsProcessed(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("id", msg.ID).Msg("Failed to mark outbox message as processed")
			break
		}
		sent++
	}

	return sent, nil
}
