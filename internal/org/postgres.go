package org

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/postgres"
)

// PostgresRepository persists organizations and per-paper ingestion status
// in PostgreSQL.
type PostgresRepository struct {
	db *postgres.Client
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires the shared postgres client.
func NewPostgresRepository(db *postgres.Client) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns all organization records.
func (r *PostgresRepository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, name, max_users, is_active, ingestion_allowed FROM organizations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.MaxUsers, &o.IsActive, &o.IngestionAllowed); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organizations: %w", err)
	}
	return orgs, nil
}

// Get returns one organization by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Organization, error) {
	var o Organization
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT id, name, max_users, is_active, ingestion_allowed FROM organizations WHERE id = $1`,
		id).Scan(&o.ID, &o.Name, &o.MaxUsers, &o.IsActive, &o.IngestionAllowed)
	if err == sql.ErrNoRows {
		return Organization{}, apperrors.Newf(apperrors.ErrOrganizationNotFound, "id %s", id)
	}
	if err != nil {
		return Organization{}, fmt.Errorf("querying organization %s: %w", id, err)
	}
	return o, nil
}

// SaveIngested upserts the ingestion status snapshot for one paper.
// Reprocessing the same paper overwrites the previous row.
func (r *PostgresRepository) SaveIngested(ctx context.Context, rec IngestedPaper) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO ingested_papers (organization_id, arxiv_id, title, status, chunk_count, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (organization_id, arxiv_id) DO UPDATE
		 SET title = EXCLUDED.title,
		     status = EXCLUDED.status,
		     chunk_count = EXCLUDED.chunk_count,
		     ingested_at = EXCLUDED.ingested_at`,
		rec.OrganizationID, rec.ArxivID, rec.Title, rec.Status, rec.ChunkCount, rec.IngestedAt)
	if err != nil {
		return fmt.Errorf("upserting ingested paper %s/%s: %w", rec.OrganizationID, rec.ArxivID, err)
	}
	return nil
}
