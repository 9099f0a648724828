package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/utils"
)

// CompareAndSetStatus moves one algorithm of one camera from expected to next.
// It is a single conditional UPDATE, so concurrent callers racing on the same
// (camera, algorithm) pair see exactly one winner. Returns false when the
// current status is not expected or the row does not exist. Any pending
// re-arm deadline is cleared.
func (d *Database) CompareAndSetStatus(ctx context.Context, cameraID, algorithm string, expected, next models.AlgorithmStatus) (bool, error) {
	if !utils.IsValidStatusTransition(expected, next) {
		return false, fmt.Errorf("invalid status transition %s -> %s", expected, next)
	}

	n, err := d.execAffected(ctx,
		"UPDATE algorithm_status SET status = $1, updated_at = $2, rearm_due_at = NULL WHERE camera_id = $3 AND algorithm = $4 AND status = $5",
		next,
		time.Now().UTC(),
		cameraID,
		algorithm,
		expected,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update algorithm status: %w", err)
	}
	return n == 1, nil
}

// MarkRearmDue records when a running algorithm is expected back in idle.
// It is a no-op for algorithms that are not running.
func (d *Database) MarkRearmDue(ctx context.Context, cameraID, algorithm string, due time.Time) error {
	_, err := d.execAffected(ctx,
		"UPDATE algorithm_status SET rearm_due_at = $1 WHERE camera_id = $2 AND algorithm = $3 AND status = $4",
		due.UTC(),
		cameraID,
		algorithm,
		models.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to set re-arm deadline of %s: %w", algorithm, err)
	}
	return nil
}

// FindStuckAlgorithms returns running algorithms whose re-arm is overdue by
// more than grace. Algorithms still waiting for a result have no deadline
// and are never returned.
func (d *Database) FindStuckAlgorithms(ctx context.Context, grace time.Duration) ([]models.StatusEntry, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT camera_id, algorithm, status, updated_at, rearm_due_at
		FROM algorithm_status
		WHERE status = $1
		AND rearm_due_at IS NOT NULL
		AND rearm_due_at < $2
		ORDER BY rearm_due_at
	`, models.StatusRunning, time.Now().UTC().Add(-grace))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.StatusEntry
	for rows.Next() {
		var e models.StatusEntry
		if err := rows.Scan(&e.CameraID, &e.Algorithm, &e.Status, &e.UpdatedAt, &e.RearmDueAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (d *Database) insertIdleStatus(ctx context.Context, cameraID, algorithm string) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		`INSERT INTO algorithm_status (camera_id, algorithm, status, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (camera_id, algorithm) DO NOTHING`,
		cameraID,
		algorithm,
		models.StatusIdle,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert status of %s: %w", algorithm, err)
	}
	return nil
}

// statusesByCamera loads status maps keyed by camera id; an empty cameraID loads all cameras
func (d *Database) statusesByCamera(ctx context.Context, cameraID string) (map[string]map[string]models.AlgorithmStatus, error) {
	query := "SELECT camera_id, algorithm, status FROM algorithm_status"
	var args []any
	if cameraID != "" {
		query += " WHERE camera_id = $1"
		args = append(args, cameraID)
	}

	rows, err := d.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load algorithm statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]models.AlgorithmStatus)
	for rows.Next() {
		var (
			camera, algorithm string
			status            models.AlgorithmStatus
		)
		if err := rows.Scan(&camera, &algorithm, &status); err != nil {
			return nil, err
		}
		if out[camera] == nil {
			out[camera] = make(map[string]models.AlgorithmStatus)
		}
		out[camera][algorithm] = status
	}

	return out, rows.Err()
}
