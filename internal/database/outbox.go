package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// AddToOutbox adds a worker command to the transactional outbox
func (d *Database) AddToOutbox(ctx context.Context, cmd models.WorkerCommand) error {
	payload, err := json.Marshal(cmd.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = d.querier(ctx).ExecContext(ctx,
		"INSERT INTO outbox (id, camera_id, kind, name, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		cmd.ID,
		cmd.CameraID,
		cmd.Kind,
		cmd.Name,
		string(payload),
		cmd.CreatedAt,
	)
	return err
}

// GetPendingOutboxMessages retrieves unprocessed outbox messages, oldest first
func (d *Database) GetPendingOutboxMessages(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT id, camera_id, kind, name, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.OutboxMessage
	for rows.Next() {
		var (
			m       models.OutboxMessage
			payload string
		)
		if err := rows.Scan(&m.ID, &m.CameraID, &m.Kind, &m.Name, &payload, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Payload = []byte(payload)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// MarkOutboxMessageAsProcessed marks an outbox message as processed
func (d *Database) MarkOutboxMessageAsProcessed(ctx context.Context, id string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE outbox SET processed_at = $1 WHERE id = $2",
		time.Now().UTC(),
		id,
	)
	return err
}
