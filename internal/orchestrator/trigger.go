package orchestrator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/gateway"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/metrics"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

const (
	StatusTriggered   = "Triggered."
	StatusNoAlgorithm = "No algorithm specified."
)

type TriggerReport struct {
	Status string `json:"status"`
	// Started algorithms went idle -> running and their start call was accepted.
	Started []string `json:"started,omitempty"`
	// Skipped algorithms were not idle, or another trigger won the race.
	Skipped []string `json:"skipped,omitempty"`
	// Failed maps an algorithm to the error that put it back to idle.
	Failed map[string]string `json:"failed,omitempty"`
}

// Trigger starts every idle algorithm of the camera. A start failure affects
// only that algorithm. Concurrent triggers never start one algorithm twice:
// each start is preceded by an idle -> running compare-and-set.
func (s *Service) Trigger(ctx context.Context, cameraID string) (TriggerReport, error) {
	camera, err := s.repo.GetCamera(ctx, cameraID)
	if err != nil {
		return TriggerReport{}, err
	}

	if len(camera.ActionDict) == 0 {
		metrics.Triggers.WithLabelValues("no_algorithm").Inc()
		return TriggerReport{Status: StatusNoAlgorithm}, nil
	}

	report := TriggerReport{Status: StatusTriggered}
	payload := gateway.StartPayload{
		StreamingURL:      camera.StreamingURL,
		CameraID:          camera.ID,
		ResultCallbackURL: s.ResultCallbackURL(camera.ID),
	}

	for _, algorithm := range sortedKeys(camera.ActionDict) {
		logger := log.With().Str("camera_id", camera.ID).Str("algorithm", algorithm).Logger()

		if camera.AlgorithmStatus[algorithm] != models.StatusIdle {
			report.Skipped = append(report.Skipped, algorithm)
			metrics.AlgorithmStarts.WithLabelValues(algorithm, "skipped").Inc()
			continue
		}

		err := s.start(ctx, camera.ID, algorithm, payload)
		if errors.Is(err, errNotIdle) {
			logger.Debug().Msg("Algorithm is no longer idle, skipping")
			metrics.StatusConflicts.WithLabelValues(string(models.StatusIdle), string(models.StatusRunning)).Inc()
			report.Skipped = append(report.Skipped, algorithm)
			metrics.AlgorithmStarts.WithLabelValues(algorithm, "skipped").Inc()
			continue
		}
		if err != nil {
			logger.Error().Err(err).Msg("Failed to start algorithm, left idle")
			report.fail(algorithm, err)
			continue
		}

		logger.Info().Msg("Algorithm started")
		report.Started = append(report.Started, algorithm)
		metrics.AlgorithmStarts.WithLabelValues(algorithm, "started").Inc()
	}

	metrics.Triggers.WithLabelValues("triggered").Inc()
	return report, nil
}

func (r *TriggerReport) fail(algorithm string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]string)
	}
	r.Failed[algorithm] = err.Error()
	metrics.AlgorithmStarts.WithLabelValues(algorithm, "failed").Inc()
}

var errNotIdle = errors.New("algorithm is not idle")

// start marks the algorithm running and asks the worker to start it in one
// transaction. A failed start leaves the algorithm idle.
func (s *Service) start(ctx context.Context, cameraID, algorithm string, payload gateway.StartPayload) error {
	return s.repo.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.CompareAndSetStatus(ctx, cameraID, algorithm, models.StatusIdle, models.StatusRunning)
		if err != nil {
			return err
		}
		if !ok {
			return errNotIdle
		}
		return s.gw.StartAlgorithm(ctx, algorithm, payload)
	})
}
