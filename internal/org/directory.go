package org

import (
	"context"
	"log/slog"
	"sort"

	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

// SecurityContext is the subset of the run's security context the directory
// needs. It is satisfied by *auth.Context without importing it, keeping the
// dependency direction pointing outward.
type SecurityContext interface {
	IsValidated() bool
	ResolvedOrganizations() []Organization
}

// Directory resolves the set of active, ingestion-eligible organizations
// for one pipeline run.
type Directory struct {
	repo   Repository
	logger *slog.Logger
}

// NewDirectory creates a Directory backed by the given repository.
func NewDirectory(repo Repository) *Directory {
	return &Directory{
		repo:   repo,
		logger: slog.Default().With("component", "org-directory"),
	}
}

// ActiveOrganizations returns the eligible organizations sorted descending
// by priority (ties broken by ID for determinism) and truncated to
// maxCount. An empty result is a valid outcome, not an error; it signals
// the orchestrator to take the skip path.
//
// When the security context already carries a resolved organization list it
// is filtered and reused, avoiding a second repository round trip. A
// security context that failed validation yields ErrAccessDenied.
func (d *Directory) ActiveOrganizations(ctx context.Context, sec SecurityContext, maxCount int) ([]Organization, error) {
	if sec != nil && !sec.IsValidated() {
		return nil, apperrors.New(apperrors.ErrAccessDenied, "security context failed validation")
	}

	var candidates []Organization
	if sec != nil && len(sec.ResolvedOrganizations()) > 0 {
		candidates = sec.ResolvedOrganizations()
		d.logger.Debug("reusing organizations from security context", "count", len(candidates))
	} else {
		listed, err := d.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		candidates = listed
	}

	eligible := make([]Organization, 0, len(candidates))
	for _, o := range candidates {
		if o.Eligible() {
			eligible = append(eligible, o)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		pi, pj := eligible[i].Priority(), eligible[j].Priority()
		if pi != pj {
			return pi > pj
		}
		return eligible[i].ID < eligible[j].ID
	})

	if maxCount > 0 && len(eligible) > maxCount {
		eligible = eligible[:maxCount]
	}
	d.logger.Info("resolved active organizations", "eligible", len(eligible))
	return eligible, nil
}
