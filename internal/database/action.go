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

// CreateAction creates a new action record
func (d *Database) CreateAction(ctx context.Context, action *models.Action) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "actions", action.Name, action.ID); err != nil {
			return err
		}
		return d.saveAction(ctx, action,
			"INSERT INTO actions (name, description, params, updated_at, id) VALUES ($1, $2, $3, $4, $5)")
	})
}

// UpdateAction updates an existing action
func (d *Database) UpdateAction(ctx context.Context, action *models.Action) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.ensureNameFree(ctx, "actions", action.Name, action.ID); err != nil {
			return err
		}
		return d.saveAction(ctx, action,
			"UPDATE actions SET name = $1, description = $2, params = $3, updated_at = $4 WHERE id = $5")
	})
}

func (d *Database) saveAction(ctx context.Context, action *models.Action, query string) error {
	if action.Params == nil {
		action.Params = map[string]models.ParamSpec{}
	}
	params, err := json.Marshal(action.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	action.UpdatedAt = time.Now().UTC()
	res, err := d.querier(ctx).ExecContext(ctx, query,
		action.Name,
		action.Description,
		string(params),
		action.UpdatedAt,
		action.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("action %q: %w", action.Name, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save action: %w", err)
	}
	return expectOneRow(res, "action", action.ID)
}

// GetAction retrieves an action by its ID
func (d *Database) GetAction(ctx context.Context, actionID string) (models.Action, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		"SELECT id, name, description, params, updated_at FROM actions WHERE id = $1",
		actionID,
	)
	action, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Action{}, fmt.Errorf("action %s: %w", actionID, models.ErrNotFound)
	}
	return action, err
}

// ListActions returns every action ordered by name
func (d *Database) ListActions(ctx context.Context) ([]models.Action, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		"SELECT id, name, description, params, updated_at FROM actions ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	actions := []models.Action{}
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// DeleteAction removes an action unless a camera rule still references it
func (d *Database) DeleteAction(ctx context.Context, actionID string) (models.Action, error) {
	var action models.Action
	err := d.InTx(ctx, func(ctx context.Context) error {
		var err error
		action, err = d.GetAction(ctx, actionID)
		if err != nil {
			return err
		}

		users, err := d.camerasReferencing(ctx, func(dict models.ActionDict) bool {
			for _, options := range dict {
				for _, rules := range options {
					for _, r := range rules {
						if r.Action == action.Name {
							return true
						}
					}
				}
			}
			return false
		})
		if err != nil {
			return err
		}
		if len(users) > 0 {
			return fmt.Errorf("action %q is used by cameras %v: %w", action.Name, users, models.ErrInUse)
		}

		res, err := d.querier(ctx).ExecContext(ctx, "DELETE FROM actions WHERE id = $1", actionID)
		if err != nil {
			return fmt.Errorf("failed to delete action: %w", err)
		}
		return expectOneRow(res, "action", actionID)
	})
	return action, err
}

func scanAction(row scanner) (models.Action, error) {
	var (
		a      models.Action
		params string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &params, &a.UpdatedAt); err != nil {
		return models.Action{}, err
	}
	if err := json.Unmarshal([]byte(params), &a.Params); err != nil {
		return models.Action{}, fmt.Errorf("action %s: corrupt params: %w", a.ID, err)
	}
	return a, nil
}
