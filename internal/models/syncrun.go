package models

import (
	"sync"
	"time"
)

// Document stages recorded against SyncRun error entries.
const (
	StageDiscovery   = "DISCOVERY"
	StageFetch       = "FETCH"
	StageExtraction  = "EXTRACTION"
	StageParsing     = "PARSING"
	StageResolution  = "RESOLUTION"
	StagePersistence = "PERSISTENCE"
)

// DocumentError records a single per-document failure inside a run.
type DocumentError struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name,omitempty"`
	Stage        string `json:"stage"`
	Message      string `json:"message"`
	// PartialFields carries whatever the parser managed to extract before
	// failing, for manual review.
	PartialFields map[string]string `json:"partial_fields,omitempty"`
}

// SyncRun is the in-memory report for one pipeline invocation. It is the
// sole surface for both success and failure detail; it is never persisted
// mid-run.
type SyncRun struct {
	mu sync.Mutex

	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	LookbackHours int       `json:"lookback_hours"`
	Cancelled     bool      `json:"cancelled"`

	DocumentsSeen             int `json:"documents_seen"`
	DocumentsCreated          int `json:"documents_created"`
	DocumentsSkippedDuplicate int `json:"documents_skipped_duplicate"`
	DocumentsNeedsReview      int `json:"documents_needs_review"`
	DocumentsFailed           int `json:"documents_failed"`
	SheetRetriesSucceeded     int `json:"sheet_retries_succeeded"`

	Errors []DocumentError `json:"errors"`
}

// NewSyncRun starts a run report for the given lookback window.
func NewSyncRun(lookbackHours int) *SyncRun {
	return &SyncRun{
		StartedAt:     time.Now().UTC(),
		LookbackHours: lookbackHours,
	}
}

// RecordSeen increments the discovered-document counter.
func (r *SyncRun) RecordSeen(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DocumentsSeen += n
}

// RecordCreated notes a voucher persisted to both sinks or degraded to
// SheetPending. NeedsReview vouchers are counted separately.
func (r *SyncRun) RecordCreated(needsReview bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DocumentsCreated++
	if needsReview {
		r.DocumentsNeedsReview++
	}
}

// RecordDuplicate notes a document skipped because its voucher number is
// already persisted.
func (r *SyncRun) RecordDuplicate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DocumentsSkippedDuplicate++
}

// RecordFailure attaches a per-document error to the report.
func (r *SyncRun) RecordFailure(e DocumentError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DocumentsFailed++
	r.Errors = append(r.Errors, e)
}

// RecordSheetRetry notes a previously SheetPending voucher whose ledger
// append succeeded on this run.
func (r *SyncRun) RecordSheetRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SheetRetriesSucceeded++
}

// Finish stamps the end of the run.
func (r *SyncRun) Finish(cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	r.Cancelled = cancelled
}
