// Package index is the boundary to the search-index storage engine. The
// engine's internal structures are out of scope; the pipeline consumes it
// as a batch-upsert API. Tenant isolation is enforced here at the
// data-tagging layer: every document carries its owning organization ID.
package index

import "context"

// Document is one embedded chunk ready for indexing.
type Document struct {
	ID             string    `json:"id"`
	PaperID        string    `json:"paper_id"`
	OrganizationID string    `json:"organization_id"`
	ChunkIndex     int       `json:"chunk_index"`
	Title          string    `json:"title"`
	Text           string    `json:"text"`
	Vector         []float32 `json:"vector"`
}

// UpsertStats summarises one batch upsert.
type UpsertStats struct {
	Processed     int
	ChunksIndexed int
}

// Health is the engine's self-reported state.
type Health struct {
	Status      string
	ShardCounts map[string]int
}

// Client is the batch-upsert API of the search index.
type Client interface {
	// UpsertBatch indexes the documents under the given organization.
	// With replaceExisting, chunks previously indexed for the same
	// paper and organization are overwritten, not duplicated.
	UpsertBatch(ctx context.Context, docs []Document, organizationID string, replaceExisting bool) (UpsertStats, error)

	// Health probes the engine.
	Health(ctx context.Context) (Health, error)
}
