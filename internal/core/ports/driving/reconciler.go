package driving

import (
	"context"
	"time"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int       `json:"checked"`
	Changed   int       `json:"changed"`
	Skipped   bool      `json:"skipped"`
	StartedAt time.Time `json:"started_at"`
}

// StatusReconciler exposes control over the background status reconciliation
// loop.
type StatusReconciler interface {
	// CheckNow runs a reconciliation pass immediately. With force set, every
	// connection is probed instead of only the active ones. Returns
	// domain.ErrCheckInProgress when a pass is already running.
	CheckNow(ctx context.Context, force bool) (*ReconcileReport, error)

	// Kick schedules a near-term pass (debounced). Used when the console
	// regains focus.
	Kick()

	// SetEnabled pauses or resumes the periodic loop
	SetEnabled(enabled bool)

	// LastRun reports when the last pass finished (zero if never)
	LastRun() time.Time
}
