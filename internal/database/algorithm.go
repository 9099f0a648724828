package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// CreateAlgorithm creates a new algorithm record
func (d *Database) CreateAlgorithm(ctx context.Context, algorithm *models.Algorithm) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "algorithms", algorithm.Name, algorithm.ID); err != nil {
			return err
		}
		return d.saveAlgorithm(ctx, algorithm,
			"INSERT INTO algorithms (name, description, options, updated_at, id) VALUES ($1, $2, $3, $4, $5)")
	})
}

// UpdateAlgorithm updates an existing algorithm
func (d *Database) UpdateAlgorithm(ctx context.Context, algorithm *models.Algorithm) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "algorithms", algorithm.Name, algorithm.ID); err != nil {
			return err
		}
		return d.saveAlgorithm(ctx, algorithm,
			"UPDATE algorithms SET name = $1, description = $2, options = $3, updated_at = $4 WHERE id = $5")
	})
}

func (d *Database) saveAlgorithm(ctx context.Context, algorithm *models.Algorithm, query string) error {
	if algorithm.Options == nil {
		algorithm.Options = []string{}
	}
	options, err := json.Marshal(algorithm.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	algorithm.UpdatedAt = time.Now().UTC()
	res, err := d.querier(ctx).ExecContext(ctx, query,
		algorithm.Name,
		algorithm.Description,
		string(options),
		algorithm.UpdatedAt,
		algorithm.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("algorithm %q: %w", algorithm.Name, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save algorithm: %w", err)
	}
	return expectOneRow(res, "algorithm", algorithm.ID)
}

// GetAlgorithm retrieves an algorithm by its ID
func (d *Database) GetAlgorithm(ctx context.Context, algorithmID string) (models.Algorithm, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		"SELECT id, name, description, options, updated_at FROM algorithms WHERE id = $1",
		algorithmID,
	)
	algorithm, err := scanAlgorithm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Algorithm{}, fmt.Errorf("algorithm %s: %w", algorithmID, models.ErrNotFound)
	}
	return algorithm, err
}

// ListAlgorithms returns every algorithm ordered by name
func (d *Database) ListAlgorithms(ctx context.Context) ([]models.Algorithm, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		"SELECT id, name, description, options, updated_at FROM algorithms ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list algorithms: %w", err)
	}
	defer rows.Close()

	algorithms := []models.Algorithm{}
	for rows.Next() {
		algorithm, err := scanAlgorithm(rows)
		if err != nil {
			return nil, err
		}
		algorithms = append(algorithms, algorithm)
	}
	return algorithms, rows.Err()
}

// DeleteAlgorithm removes an algorithm unless a camera still references it
func (d *Database) DeleteAlgorithm(ctx context.Context, algorithmID string) (models.Algorithm, error) {
	var algorithm models.Algorithm
	err := d.InTx(ctx, func(ctx context.Context) error {
		var err error
		algorithm, err = d.GetAlgorithm(ctx, algorithmID)
		if err != nil {
			return err
		}

		users, err := d.camerasReferencing(ctx, func(dict models.ActionDict) bool {
			_, ok := dict[algorithm.Name]
			return ok
		})
		if err != nil {
			return err
		}
		if len(users) > 0 {
			return fmt.Errorf("algorithm %q is used by cameras %v: %w", algorithm.Name, users, models.ErrInUse)
		}

		res, err := d.querier(ctx).ExecContext(ctx, "DELETE FROM algorithms WHERE id = $1", algorithmID)
		if err != nil {
			return fmt.Errorf("failed to delete algorithm: %w", err)
		}
		return expectOneRow(res, "algorithm", algorithmID)
	})
	return algorithm, err
}

func scanAlgorithm(row scanner) (models.Algorithm, error) {
	var (
		a       models.Algorithm
		options string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &options, &a.UpdatedAt); err != nil {
		return models.Algorithm{}, err
	}
	if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
		return models.Algorithm{}, fmt.Errorf("algorithm %s: corrupt options: %w", a.ID, err)
	}
	return a, nil
}

// camerasReferencing returns names of cameras whose action dict matches
func (d *Database) camerasReferencing(ctx context.Context, match func(models.ActionDict) bool) ([]string, error) {
	cameras, err := d.ListCameras(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, c := range cameras {
		if match(c.ActionDict) {
			names = append(names, c.Name)
		}
	}
	return names, nil
}
