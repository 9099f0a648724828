// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/database"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// NewDatabase opens a migrated SQLite-backed Database in a temp dir.
// The repository SQL is written to run unchanged on SQLite and PostgreSQL.
func NewDatabase(t *testing.T) *database.Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orchestrator.db")
	db, err := database.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_foreign_keys=on")
	require.NoError(t, err)

	// one connection: SQLite has a single writer
	db.DB.SetMaxOpenConns(1)
	require.NoError(t, db.Init())

	t.Cleanup(func() { db.Close() })
	return db
}

// SeedReference stores a "motion" and a "face" algorithm plus "email" and
// "siren" actions.
func SeedReference(t *testing.T, db *database.Database) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, db.CreateAlgorithm(ctx, &models.Algorithm{
		ID: uuid.NewString(), Name: "motion", Options: []string{"detected", "not_detected"},
	}))
	require.NoError(t, db.CreateAlgorithm(ctx, &models.Algorithm{
		ID: uuid.NewString(), Name: "face", Options: []string{"known", "unknown"},
	}))
	require.NoError(t, db.CreateAction(ctx, &models.Action{
		ID:   uuid.NewString(),
		Name: "email",
		Params: map[string]models.ParamSpec{
			"to":      {Type: "string", Required: true},
			"subject": {Type: "string"},
		},
	}))
	require.NoError(t, db.CreateAction(ctx, &models.Action{
		ID: uuid.NewString(), Name: "siren",
	}))
}

// NewCamera stores a camera with the given action dict and returns it.
func NewCamera(t *testing.T, db *database.Database, name string, dict models.ActionDict) models.Camera {
	t.Helper()

	if dict == nil {
		dict = models.ActionDict{}
	}
	camera := models.Camera{
		ID:           uuid.NewString(),
		Name:         name,
		StreamingURL: "rtmp://stream.local/live/" + name,
		ActionDict:   dict,
	}
	require.NoError(t, db.CreateCamera(context.Background(), &camera))
	return camera
}
