package integration

import "time"

// SyncStatus is the outcome of a sync pass or stage
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
	SyncStatusSkipped SyncStatus = "SKIPPED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncResult summarizes one stage of a pass.
type SyncResult struct {
	Stage        string
	Status       SyncStatus
	TotalCount   int
	SuccessCount int
	SkippedCount int
	FailedCount  int
	FailedItems  []SyncFailure
	SyncedAt     time.Time
}

// SyncFailure is one unit of work that failed and was skipped
type SyncFailure struct {
	// Reference is the item code, remote id or order id of the unit
	Reference string
	Message   string
}

// NewSyncResult starts an empty result for a stage
func NewSyncResult(stage string) *SyncResult {
	return &SyncResult{Stage: stage, FailedItems: make([]SyncFailure, 0)}
}

// Succeeded counts a unit that completed
func (r *SyncResult) Succeeded() {
	r.TotalCount++
	r.SuccessCount++
}

// Skipped counts a unit that was intentionally not processed
func (r *SyncResult) Skipped() {
	r.TotalCount++
	r.SkippedCount++
}

// Failed records a unit that failed
func (r *SyncResult) Failed(reference string, err error) {
	r.TotalCount++
	r.FailedCount++
	r.FailedItems = append(r.FailedItems, SyncFailure{Reference: reference, Message: err.Error()})
}

// Finish derives the status from the counters and stamps the time.
func (r *SyncResult) Finish() *SyncResult {
	switch {
	case r.FailedCount == 0:
		r.Status = SyncStatusSuccess
	case r.SuccessCount > 0 || r.SkippedCount > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusFailed
	}
	r.SyncedAt = time.Now()
	return r
}
