package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

// CreateCamera inserts a camera together with an idle status for each of its algorithms
func (d *Database) CreateCamera(ctx context.Context, camera *models.Camera) error {
	dict, err := json.Marshal(camera.ActionDict)
	if err != nil {
		return fmt.Errorf("failed to marshal action dict: %w", err)
	}

	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "cameras", camera.Name, camera.ID); err != nil {
			return err
		}

		camera.UpdatedAt = time.Now().UTC()
		_, err := d.querier(ctx).ExecContext(ctx,
			"INSERT INTO cameras (id, name, streaming_url, action_dict, updated_at) VALUES ($1, $2, $3, $4, $5)",
			camera.ID,
			camera.Name,
			camera.StreamingURL,
			string(dict),
			camera.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("camera %q: %w", camera.Name, models.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert camera: %w", err)
		}

		camera.AlgorithmStatus = make(map[string]models.AlgorithmStatus, len(camera.ActionDict))
		for algorithm := range camera.ActionDict {
			if err := d.insertIdleStatus(ctx, camera.ID, algorithm); err != nil {
				return err
			}
			camera.AlgorithmStatus[algorithm] = models.StatusIdle
		}
		return nil
	})
}

// GetCamera retrieves a camera with its algorithm status map
func (d *Database) GetCamera(ctx context.Context, cameraID string) (models.Camera, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		"SELECT id, name, streaming_url, action_dict, updated_at FROM cameras WHERE id = $1",
		cameraID,
	)
	camera, err := scanCamera(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Camera{}, fmt.Errorf("camera %s: %w", cameraID, models.ErrNotFound)
		}
		return models.Camera{}, fmt.Errorf("failed to get camera: %w", err)
	}

	statuses, err := d.statusesByCamera(ctx, cameraID)
	if err != nil {
		return models.Camera{}, err
	}
	camera.AlgorithmStatus = statuses[cameraID]
	if camera.AlgorithmStatus == nil {
		camera.AlgorithmStatus = map[string]models.AlgorithmStatus{}
	}

	return camera, nil
}

// ListCameras returns all cameras, most recently updated first
func (d *Database) ListCameras(ctx context.Context) ([]models.Camera, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		"SELECT id, name, streaming_url, action_dict, updated_at FROM cameras ORDER BY updated_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	cameras := []models.Camera{}
	for rows.Next() {
		camera, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statuses, err := d.statusesByCamera(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range cameras {
		cameras[i].AlgorithmStatus = statuses[cameras[i].ID]
		if cameras[i].AlgorithmStatus == nil {
			cameras[i].AlgorithmStatus = map[string]models.AlgorithmStatus{}
		}
	}

	return cameras, nil
}

// UpdateCamera updates the name and streaming url of a camera
func (d *Database) UpdateCamera(ctx context.Context, camera *models.Camera) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "cameras", camera.Name, camera.ID); err != nil {
			return err
		}

		camera.UpdatedAt = time.Now().UTC()
		res, err := d.querier(ctx).ExecContext(ctx,
			"UPDATE cameras SET name = $1, streaming_url = $2, updated_at = $3 WHERE id = $4",
			camera.Name,
			camera.StreamingURL,
			camera.UpdatedAt,
			camera.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("camera %q: %w", camera.Name, models.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to update camera: %w", err)
		}
		return expectOneRow(res, "camera", camera.ID)
	})
}

// ReplaceCameraActions stores a validated action dict and brings the status
// map in line with it: new algorithms start idle, dropped ones are removed,
// retained ones keep their current status.
func (d *Database) ReplaceCameraActions(ctx context.Context, cameraID string, dict models.ActionDict) error {
	payload, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("failed to marshal action dict: %w", err)
	}

	return d.InTx(ctx, func(ctx context.Context) error {
		res, err := d.querier(ctx).ExecContext(ctx,
			"UPDATE cameras SET action_dict = $1, updated_at = $2 WHERE id = $3",
			string(payload),
			time.Now().UTC(),
			cameraID,
		)
		if err != nil {
			return fmt.Errorf("failed to update camera actions: %w", err)
		}
		if err := expectOneRow(res, "camera", cameraID); err != nil {
			return err
		}

		statuses, err := d.statusesByCamera(ctx, cameraID)
		if err != nil {
			return err
		}
		current := lo.Keys(statuses[cameraID])
		wanted := lo.Keys(dict)

		for _, algorithm := range lo.Without(current, wanted...) {
			if _, err := d.querier(ctx).ExecContext(ctx,
				"DELETE FROM algorithm_status WHERE camera_id = $1 AND algorithm = $2",
				cameraID,
				algorithm,
			); err != nil {
				return fmt.Errorf("failed to drop status of %s: %w", algorithm, err)
			}
		}
		for _, algorithm := range lo.Without(wanted, current...) {
			if err := d.insertIdleStatus(ctx, cameraID, algorithm); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCamera removes a camera and its status rows
func (d *Database) DeleteCamera(ctx context.Context, cameraID string) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if _, err := d.querier(ctx).ExecContext(ctx,
			"DELETE FROM algorithm_status WHERE camera_id = $1", cameraID,
		); err != nil {
			return fmt.Errorf("failed to delete camera statuses: %w", err)
		}

		res, err := d.querier(ctx).ExecContext(ctx, "DELETE FROM cameras WHERE id = $1", cameraID)
		if err != nil {
			return fmt.Errorf("failed to delete camera: %w", err)
		}
		return expectOneRow(res, "camera", cameraID)
	})
}

func scanCamera(row scanner) (models.Camera, error) {
	var (
		c    models.Camera
		dict string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.StreamingURL, &dict, &c.UpdatedAt); err != nil {
		return models.Camera{}, err
	}
	if err := json.Unmarshal([]byte(dict), &c.ActionDict); err != nil {
		return models.Camera{}, fmt.Errorf("camera %s: corrupt action dict: %w", c.ID, err)
	}
	if c.ActionDict == nil {
		c.ActionDict = models.ActionDict{}
	}
	return c, nil
}

// ensureNameFree checks that no other row of table already uses name
func (d *Database) ensureNameFree(ctx context.Context, table, name, id string) error {
	var exists int
	err := d.querier(ctx).QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE name = $1 AND id <> $2",
		name,
		id,
	).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%s name %q: %w", table, name, models.ErrAlreadyExists)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("failed to check %s name: %w", table, err)
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return nil
}
