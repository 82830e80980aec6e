package activity

import (
	"sync"

	"github.com/nomis52/feo/ids"
)

// StatusHandler stores activity status messages by ActivityID. This is the
// shared storage that all StatusLines write to, the same handler/writer
// split log/slog uses between Logger and Handler.
type StatusHandler struct {
	statuses map[ids.ActivityID]string
	mu       sync.RWMutex
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		statuses: make(map[ids.ActivityID]string),
	}
}

// Set updates the status for a specific activity. Called by StatusLine.
func (sh *StatusHandler) Set(activityID ids.ActivityID, status string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.statuses[activityID] = status
}

// Get returns the status for a specific activity.
func (sh *StatusHandler) Get(activityID ids.ActivityID) string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.statuses[activityID]
}

// All returns a copy of all activity statuses, e.g. for a diagnostics page.
func (sh *StatusHandler) All() map[ids.ActivityID]string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	out := make(map[ids.ActivityID]string, len(sh.statuses))
	for k, v := range sh.statuses {
		out[k] = v
	}
	return out
}
