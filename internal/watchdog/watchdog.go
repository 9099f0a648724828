package watchdog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/orchestrator"
)

const defaultWatchInterval = 30 * time.Second

type store interface {
	FindStuckAlgorithms(ctx context.Context, grace time.Duration) ([]models.StatusEntry, error)
}

type rearmer interface {
	RearmFrom(ctx context.Context, origin, cameraID, algorithm string) (bool, error)
}

// Watchdog re-arms algorithms left running after a lost cooldown, e.g. when
// the process restarted before the scheduled re-arm fired. Algorithms still
// waiting for their result are left alone.
type Watchdog struct {
	db         store
	rearmer    rearmer
	interval   time.Duration
	staleAfter time.Duration
}

func New(db store, rearmer rearmer, interval, staleAfter time.Duration) *Watchdog {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watchdog{
		db:         db,
		rearmer:    rearmer,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Enabled reports whether sweeps do anything.
func (w *Watchdog) Enabled() bool {
	return w.staleAfter > 0
}

func (w *Watchdog) Start(ctx context.Context) {
	if !w.Enabled() {
		log.Info().Msg("Watchdog disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Watchdog stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to find stuck algorithms")
			}
		}
	}
}

// Sweep re-arms every algorithm whose re-arm is overdue by more than the
// stale threshold and returns how many went back to idle.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	if !w.Enabled() {
		return 0, nil
	}

	stuck, err := w.db.FindStuckAlgorithms(ctx, w.staleAfter)
	if err != nil {
		return 0, err
	}

	rearmed := 0
	for _, entry := range stuck {
		log.Warn().
			Str("camera_id", entry.CameraID).
			Str("algorithm", entry.Algorithm).
			Time("rearm_due_at", lo.FromPtr(entry.RearmDueAt)).
			Msg("Found overdue re-arm, re-arming")

		changed, err := w.rearmer.RearmFrom(ctx, orchestrator.OriginWatchdog, entry.CameraID, entry.Algorithm)
		if err != nil {
			continue
		}
		if changed {
			rearmed++
		}
	}

	return rearmed, nil
}
