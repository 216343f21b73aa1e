// Package pipeline orchestrates the multi-tenant ingestion run: fetch,
// assignment, process/index, monitoring, cleanup, and the terminal
// notification.
package pipeline

import "time"

// Status of a stage or of one organization's slice of a stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Stage names used as keys in the monitoring input and in metrics labels.
const (
	StageFetch   = "fetch"
	StageAssign  = "assign"
	StageProcess = "process"
	StageMonitor = "monitor"
	StageCleanup = "cleanup"
)

// OrgStageResult is the outcome of one stage scoped to one organization.
// It is owned exclusively by the stage that produced it and read-only to
// every downstream consumer.
type OrgStageResult struct {
	OrganizationID string   `json:"organization_id"`
	Status         Status   `json:"status"`
	Processed      int      `json:"processed"`
	Created        int      `json:"created"`
	Errors         []string `json:"errors,omitempty"`
}

// StageResult is the uniform envelope every stage produces. The shared
// shape is what lets the monitoring engine treat all stages generically.
type StageResult struct {
	Status    Status                    `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	Duration  time.Duration             `json:"duration"`
	Errors    []string                  `json:"errors,omitempty"`
	Metrics   map[string]float64        `json:"metrics,omitempty"`
	PerOrg    map[string]OrgStageResult `json:"per_org,omitempty"`
}

// NewStageResult returns an empty envelope stamped with the current time.
func NewStageResult() StageResult {
	return StageResult{
		Status:    StatusPending,
		Timestamp: time.Now().UTC(),
		Metrics:   make(map[string]float64),
		PerOrg:    make(map[string]OrgStageResult),
	}
}

// TotalProcessed sums the per-organization processed counts.
func (r StageResult) TotalProcessed() int {
	total := 0
	for _, o := range r.PerOrg {
		total += o.Processed
	}
	return total
}

// TotalCreated sums the per-organization created counts.
func (r StageResult) TotalCreated() int {
	total := 0
	for _, o := range r.PerOrg {
		total += o.Created
	}
	return total
}

// OrgCounts returns the number of successful and failed organization tasks.
func (r StageResult) OrgCounts() (succeeded, failed int) {
	for _, o := range r.PerOrg {
		if o.Status == StatusSuccess {
			succeeded++
		} else if o.Status == StatusFailed {
			failed++
		}
	}
	return succeeded, failed
}

// CleanupResult is the outcome of the post-run cleanup stage.
type CleanupResult struct {
	Status      Status   `json:"status"`
	KeysFlushed int64    `json:"keys_flushed"`
	Errors      []string `json:"errors,omitempty"`
}
