package orchestrator

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/metrics"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/scheduler"
)

const (
	OriginCooldown = "cooldown"
	OriginWatchdog = "watchdog"
)

// Rearmer returns a running algorithm to idle and resets its worker-side
// instance.
type Rearmer struct {
	repo StatusStore
	gw   gateway.Gateway
}

func NewRearmer(repo StatusStore, gw gateway.Gateway) *Rearmer {
	return &Rearmer{repo: repo, gw: gw}
}

// Rearm is the scheduler handler for cooldown re-arms.
func (r *Rearmer) Rearm(ctx context.Context, task scheduler.Task) {
	_, _ = r.RearmFrom(ctx, OriginCooldown, task.CameraID, task.Algorithm)
}

// RearmFrom re-arms one algorithm and reports whether its status changed.
// The running -> idle move and the reset call share a transaction. A reset
// the worker rejects is logged and the status still goes back to idle; a
// reset that could not be recorded rolls the move back.
func (r *Rearmer) RearmFrom(ctx context.Context, origin, cameraID, algorithm string) (bool, error) {
	logger := log.With().
		Str("camera_id", cameraID).
		Str("algorithm", algorithm).
		Str("origin", origin).
		Logger()

	var changed bool
	err := r.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		changed, err = r.repo.CompareAndSetStatus(ctx, cameraID, algorithm, models.StatusRunning, models.StatusIdle)
		if err != nil || !changed {
			return err
		}

		if err := r.gw.StopAndReset(ctx, algorithm); err != nil {
			if errors.Is(err, gateway.ErrNotRecorded) {
				return err
			}
			logger.Error().Err(err).Msg("Failed to reset algorithm, re-arming anyway")
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to re-arm algorithm")
		return false, err
	}
	metrics.Rearms.WithLabelValues(origin, strconv.FormatBool(changed)).Inc()

	if !changed {
		logger.Debug().Msg("Algorithm was not running, nothing to re-arm")
		metrics.StatusConflicts.WithLabelValues(string(models.StatusRunning), string(models.StatusIdle)).Inc()
		return false, nil
	}

	logger.Info().Msg("Algorithm re-armed")
	return true, nil
}
