package utils

import (
	"github.com/Capitan-Parrot/camera-orchestrator/internal/models"
)

// IsValidStatusTransition проверяет допустимость перехода между статусами
func IsValidStatusTransition(currentStatus, newStatus models.AlgorithmStatus) bool {
	transitions := map[models.AlgorithmStatus][]models.AlgorithmStatus{
		models.StatusIdle:    {models.StatusRunning},
		models.StatusRunning: {models.StatusIdle},
	}

	for _, allowedStatus := range transitions[currentStatus] {
		if allowedStatus == newStatus {
			return true
		}
	}
	return false
}
