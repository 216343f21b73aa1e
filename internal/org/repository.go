package org

import (
	"context"
	"time"
)

// Repository provides read access to organization records and persistence
// of per-paper ingestion status. Storage schema belongs to the collaborator
// behind this interface; the pipeline treats it as opaque.
type Repository interface {
	// List returns all organization records.
	List(ctx context.Context) ([]Organization, error)

	// Get returns one organization or ErrOrganizationNotFound.
	Get(ctx context.Context, id string) (Organization, error)

	// SaveIngested upserts the ingestion status of one paper for one
	// organization.
	SaveIngested(ctx context.Context, rec IngestedPaper) error
}

// IngestedPaper is the durable per-paper ingestion status row written by
// the process stage.
type IngestedPaper struct {
	OrganizationID string
	ArxivID        string
	Title          string
	Status         string
	ChunkCount     int
	IngestedAt     time.Time
}

const (
	IngestStatusIndexed = "indexed"
	IngestStatusFailed  = "failed"
)
