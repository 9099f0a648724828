package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Capitan-Parrot/camera-orchestrator/internal/metrics"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
	"github.com/Capitan-Parrot/camera-orchestrator/internal/scheduler"
)

type DispatchedAction struct {
	Algorithm string `json:"algorithm"`
	Option    string `json:"option"`
	Action    string `json:"action"`
	Error     string `json:"error,omitempty"`
}

type ResultReport struct {
	Dispatched []DispatchedAction `json:"dispatched"`
	Failed     []DispatchedAction `json:"failed,omitempty"`
	// Rearming lists the algorithms scheduled to go back to idle.
	Rearming []string `json:"rearming"`
}

// ProcessResult dispatches the actions selected by each reported option and
// schedules the algorithm's re-arm. Pairs are handled independently: a failed
// action or an unknown algorithm never stops the others. Unknown algorithms
// are reported with a *StaleCallbackError after the rest is processed.
func (s *Service) ProcessResult(ctx context.Context, cameraID string, results map[string]string) (ResultReport, error) {
	report := ResultReport{Dispatched: []DispatchedAction{}, Rearming: []string{}}

	camera, err := s.repo.GetCamera(ctx, cameraID)
	if err != nil {
		return report, err
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveResult(ctx, cameraID, results); err != nil {
			log.Warn().Err(err).Str("camera_id", cameraID).Msg("Failed to archive result")
		}
	}

	var stale []string
	for _, algorithm := range sortedKeys(results) {
		option := results[algorithm]
		logger := log.With().Str("camera_id", cameraID).Str("algorithm", algorithm).Str("option", option).Logger()

		options, ok := camera.ActionDict[algorithm]
		if !ok {
			logger.Warn().Msg("Result for an algorithm the camera does not have")
			metrics.StaleCallbacks.Inc()
			stale = append(stale, algorithm)
			continue
		}
		metrics.Results.WithLabelValues(algorithm).Inc()

		if status := camera.AlgorithmStatus[algorithm]; status != models.StatusRunning {
			logger.Warn().Str("status", string(status)).Msg("Result for an algorithm that is not running")
		}

		rules, ok := options[option]
		if !ok {
			rules = options[models.DefaultOption]
		}
		s.dispatch(ctx, logger, cameraID, algorithm, option, rules, &report)

		s.scheduleRearm(ctx, scheduler.Task{CameraID: cameraID, Algorithm: algorithm})
		report.Rearming = append(report.Rearming, algorithm)
	}

	if len(stale) > 0 {
		return report, &StaleCallbackError{CameraID: cameraID, Algorithms: stale}
	}
	return report, nil
}

func (s *Service) dispatch(ctx context.Context, logger zerolog.Logger, cameraID, algorithm, option string, rules []models.Rule, report *ResultReport) {
	for _, rule := range rules {
		if rule.Action == "" {
			continue
		}

		entry := DispatchedAction{Algorithm: algorithm, Option: option, Action: rule.Action}
		payload := lo.Assign(rule.Params, map[string]any{"camera_id": cameraID})

		if err := s.gw.RunAction(ctx, rule.Action, payload); err != nil {
			logger.Error().Err(err).Str("action", rule.Action).Msg("Failed to run action")
			metrics.ActionsDispatched.WithLabelValues(rule.Action, "failed").Inc()
			entry.Error = err.Error()
			report.Failed = append(report.Failed, entry)
			continue
		}

		metrics.ActionsDispatched.WithLabelValues(rule.Action, "ok").Inc()
		report.Dispatched = append(report.Dispatched, entry)
	}
}

// scheduleRearm records the re-arm deadline, then schedules it. It re-arms
// right away when the task cannot be scheduled, so a scheduler outage never
// leaves the algorithm running.
func (s *Service) scheduleRearm(ctx context.Context, task scheduler.Task) {
	logger := log.With().Str("camera_id", task.CameraID).Str("algorithm", task.Algorithm).Logger()

	due := time.Now().Add(s.cfg.Cooldown)
	if err := s.repo.MarkRearmDue(ctx, task.CameraID, task.Algorithm, due); err != nil {
		logger.Warn().Err(err).Msg("Failed to record re-arm deadline")
	}

	if err := s.sched.Schedule(ctx, task, s.cfg.Cooldown); err != nil {
		logger.Error().Err(err).Msg("Failed to schedule re-arm, re-arming now")
		s.rearmer.Rearm(ctx, task)
	}
}
