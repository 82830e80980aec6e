package activity

import (
	"log/slog"

	"github.com/nomis52/feo/ids"
)

// StatusLine logs status with activity context and updates the shared
// handler. Activities use it to report within-cycle progress:
// statusLine.Set("waiting on camera frame").
type StatusLine struct {
	logger     *slog.Logger
	handler    *StatusHandler
	activityID ids.ActivityID
}

// NewStatusLine creates a status line bound to an activity ID. The handler
// is optional: if nil, status updates are only logged.
func NewStatusLine(activityID ids.ActivityID, logger *slog.Logger, handler *StatusHandler) *StatusLine {
	return &StatusLine{
		logger:     logger,
		handler:    handler,
		activityID: activityID,
	}
}

// Set logs the status with activity context and updates the handler if present.
func (sl *StatusLine) Set(status string) {
	sl.logger.Info(status, "activity", sl.activityID.String())
	if sl.handler != nil {
		sl.handler.Set(sl.activityID, status)
	}
}
