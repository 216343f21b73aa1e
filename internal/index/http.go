package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
)

// HTTPClient talks to an OpenSearch-style bulk API. Large upserts are split
// into batches; a semaphore bounds how many batches are in flight at once.
type HTTPClient struct {
	baseURL   string
	indexName string
	bulkSize  int
	http      *http.Client
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a bulk client from config.
func NewHTTPClient(cfg config.IndexConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	bulkSize := cfg.BulkSize
	if bulkSize <= 0 {
		bulkSize = 200
	}
	concurrent := int64(cfg.MaxConcurrentBulks)
	if concurrent <= 0 {
		concurrent = 4
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		indexName: cfg.IndexName,
		bulkSize:  bulkSize,
		http:      httpClient,
		sem:       semaphore.NewWeighted(concurrent),
		logger:    slog.Default().With("component", "index-client"),
	}
}

// UpsertBatch indexes documents in bulk batches. Each document ID embeds
// the organization, paper, and chunk index, so re-indexing the same paper
// with replaceExisting overwrites rather than duplicates; replaceExisting
// additionally deletes stale chunks beyond the new chunk count.
func (c *HTTPClient) UpsertBatch(ctx context.Context, docs []Document, organizationID string, replaceExisting bool) (UpsertStats, error) {
	if len(docs) == 0 {
		return UpsertStats{}, nil
	}

	papers := make(map[string]struct{})
	for i := range docs {
		docs[i].OrganizationID = organizationID
		docs[i].ID = fmt.Sprintf("%s:%s:%d", organizationID, docs[i].PaperID, docs[i].ChunkIndex)
		papers[docs[i].PaperID] = struct{}{}
	}

	if replaceExisting {
		for paperID := range papers {
			if err := c.deletePaperChunks(ctx, organizationID, paperID); err != nil {
				return UpsertStats{}, err
			}
		}
	}

	indexed := 0
	for start := 0; start < len(docs); start += c.bulkSize {
		end := start + c.bulkSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return UpsertStats{}, apperrors.Newf(apperrors.ErrIndexUnavailable, "acquiring bulk slot: %v", err)
		}
		err := c.sendBulk(ctx, docs[start:end])
		c.sem.Release(1)
		if err != nil {
			return UpsertStats{}, err
		}
		indexed += end - start
	}

	c.logger.Debug("bulk upsert completed",
		"organization", organizationID,
		"papers", len(papers),
		"chunks", indexed,
	)
	return UpsertStats{Processed: len(papers), ChunksIndexed: indexed}, nil
}

// sendBulk writes one newline-delimited bulk request.
func (c *HTTPClient) sendBulk(ctx context.Context, docs []Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]map[string]string{
			"index": {"_index": c.indexName, "_id": doc.ID},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding bulk document: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk", &buf)
	if err != nil {
		return fmt.Errorf("building bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.ErrIndexUnavailable, "bulk request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Newf(apperrors.ErrIndexUnavailable, "bulk returned %s: %s", resp.Status, body)
	}
	return nil
}

// deletePaperChunks removes every previously indexed chunk of one paper
// for one organization.
func (c *HTTPClient) deletePaperChunks(ctx context.Context, organizationID, paperID string) error {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]string{"organization_id": organizationID}},
					{"term": map[string]string{"paper_id": paperID}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encoding delete query: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_delete_by_query", c.baseURL, c.indexName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Newf(apperrors.ErrIndexUnavailable, "delete by query: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return apperrors.Newf(apperrors.ErrIndexUnavailable, "delete by query returned %s", resp.Status)
	}
	return nil
}

// Health probes the cluster health endpoint.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_cluster/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("building health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Health{}, apperrors.Newf(apperrors.ErrIndexUnavailable, "health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}, apperrors.Newf(apperrors.ErrIndexUnavailable, "health returned %s", resp.Status)
	}

	var payload struct {
		Status        string `json:"status"`
		ActiveShards  int    `json:"active_shards"`
		RelocShards   int    `json:"relocating_shards"`
		UnassignedSh  int    `json:"unassigned_shards"`
		InitializingS int    `json:"initializing_shards"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Health{}, fmt.Errorf("decoding health response: %w", err)
	}
	return Health{
		Status: payload.Status,
		ShardCounts: map[string]int{
			"active":       payload.ActiveShards,
			"relocating":   payload.RelocShards,
			"initializing": payload.InitializingS,
			"unassigned":   payload.UnassignedSh,
		},
	}, nil
}
