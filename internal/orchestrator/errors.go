package orchestrator

import (
	"fmt"
	"strings"
)

// StaleCallbackError is returned when a result names algorithms the camera
// is not configured with, usually after its actions were replaced.
type StaleCallbackError struct {
	CameraID   string
	Algorithms []string
}

func (e *StaleCallbackError) Error() string {
	return fmt.Sprintf("stale callback for camera %s: unknown algorithms %s", e.CameraID, strings.Join(e.Algorithms, ", "))
}
