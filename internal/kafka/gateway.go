package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// Gateway publishes worker calls straight to the command topic.
type Gateway struct {
	producer *Producer
}

func NewGateway(producer *Producer) *Gateway {
	return &Gateway{producer: producer}
}

func (g *Gateway) StartAlgorithm(_ context.Context, algorithm string, payload gateway.StartPayload) error {
	return g.publish(gateway.StartCommand(uuid.NewString(), algorithm, payload))
}

func (g *Gateway) StopAndReset(_ context.Context, algorithm string) error {
	return g.publish(gateway.ResetCommand(uuid.NewString(), algorithm))
}

func (g *Gateway) RunAction(_ context.Context, action string, payload map[string]any) error {
	return g.publish(gateway.ActionCommand(uuid.NewString(), action, payload))
}

func (g *Gateway) publish(cmd models.WorkerCommand) error {
	cmd.CreatedAt = time.Now().UTC()
	if err := g.producer.SendCommand(cmd); err != nil {
		return &gateway.Error{Op: cmd.Kind, Name: cmd.Name, Err: err}
	}
	return nil
}
