package domain

import "time"

// SyncStatus tracks the lifecycle of a sync run.
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// SyncRun is the audit record for one sync attempt against one provider.
// It is created with status running before any external call is made and
// mutated exactly once when the sync terminates. Runs are never deleted.
//
// Invariant: FinishedAt is nil iff Status == running; Error is non-nil
// only when Status == error.
type SyncRun struct {
	ID         string
	UserID     string
	Provider   Provider
	Status     SyncStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      *string
	Meta       map[string]any
}

// SyncResult is the structured outcome of a provider-selection sync.
// Callers of SyncAny never see raw adapter errors; a failed sync carries
// the captured message here and in the run record.
type SyncResult struct {
	Provider Provider
	Run      *SyncRun
	Error    string
}
