// Package org defines the tenant organization model and the directory that
// resolves which organizations participate in an ingestion run.
package org

// Organization is a read-only snapshot of one tenant for the duration of a
// pipeline run. The core never mutates it.
type Organization struct {
	ID               string
	Name             string
	MaxUsers         int
	IsActive         bool
	IngestionAllowed bool
}

const (
	// minIngestionLimit guarantees even the smallest active tenant
	// receives at least one paper per run.
	minIngestionLimit = 1
	maxPriority       = 10
)

// IngestionLimit derives the maximum number of papers this organization may
// receive in one run: half its user capacity, at least one, capped at the
// configured ceiling.
func (o Organization) IngestionLimit(ceiling int) int {
	limit := o.MaxUsers / 2
	if limit < minIngestionLimit {
		limit = minIngestionLimit
	}
	if ceiling > 0 && limit > ceiling {
		limit = ceiling
	}
	return limit
}

// Priority derives the scheduling priority from user capacity. Larger
// tenants are served first; the value is capped so a single tenant cannot
// dominate ordering indefinitely.
func (o Organization) Priority() int {
	p := 1 + o.MaxUsers/50
	if p > maxPriority {
		p = maxPriority
	}
	return p
}

// Eligible reports whether the organization participates in ingestion runs.
func (o Organization) Eligible() bool {
	return o.IsActive && o.IngestionAllowed
}
