package domain

// Progress statuses emitted while an attempt is processed.
const (
	StatusStarted     = "started"
	StatusChunking    = "chunking"
	StatusProcessing  = "processing"
	StatusMerging     = "merging"
	StatusCalculating = "calculating"
	StatusComplete    = "complete"
	StatusFeedback    = "feedback"
	StatusSaving      = "saving"
	StatusDone        = "done"
	StatusError       = "error"
)

// ProgressEvent is a single pipeline notification.
type ProgressEvent struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc discards them.
type ProgressFunc func(ProgressEvent)

// Emit delivers ev if f is set.
func (f ProgressFunc) Emit(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
