// Package process runs the content pipeline for each organization's
// assigned papers: extraction, chunking, embedding, index upsert, and
// durable ingestion-status persistence. Like the fetch stage, it fans
// per-organization tasks out over a bounded worker pool with a local
// failure boundary per task.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/chunker"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/embedder"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/index"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/assign"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/resilience"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/tracing"
)

// IngestMarker records that a paper completed ingestion, so future fetch
// runs can skip it. Best-effort.
type IngestMarker interface {
	MarkSeen(ctx context.Context, arxivID string) error
}

// Options configures a Coordinator.
type Options struct {
	Workers         int
	StageTimeout    time.Duration
	ChunkSize       int
	ChunkOverlap    int
	ReplaceExisting bool
}

// Coordinator processes each organization's assignment on a worker pool.
type Coordinator struct {
	extractor ContentProcessor
	embedder  embedder.Embedder
	index     index.Client
	repo      org.Repository
	marker    IngestMarker
	opts      Options
	tracer    tracing.Tracer
	logger    *slog.Logger
}

// New creates a Coordinator. repo, marker, and tracer may be nil.
func New(extractor ContentProcessor, emb embedder.Embedder, idx index.Client, repo org.Repository, marker IngestMarker, tracer tracing.Tracer, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = chunker.DefaultOverlap
	}
	if extractor == nil {
		extractor = AbstractExtractor{}
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}
	return &Coordinator{
		extractor: extractor,
		embedder:  emb,
		index:     idx,
		repo:      repo,
		marker:    marker,
		opts:      opts,
		tracer:    tracer,
		logger:    slog.Default().With("component", "process-coordinator"),
	}
}

type taskResult struct {
	orgID  string
	result pipeline.OrgStageResult
}

// Run processes every organization's papers concurrently. Per-paper and
// per-organization failures are folded into the stage envelope; the stage
// fails only when the pool cannot be started.
func (c *Coordinator) Run(ctx context.Context, a *assign.Assignment) pipeline.StageResult {
	result := pipeline.NewStageResult()
	start := time.Now()

	if a == nil || len(a.Order) == 0 {
		result.Status = pipeline.StatusSuccess
		result.Duration = time.Since(start)
		return result
	}

	pool, err := ants.NewPool(c.opts.Workers)
	if err != nil {
		result.Status = pipeline.StatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("starting worker pool: %v", err))
		result.Duration = time.Since(start)
		return result
	}
	defer pool.Release()

	results := make(chan taskResult, len(a.Order))
	submitted := 0
	var submittedIDs []string
	for _, orgID := range a.Order {
		oa := a.PerOrg[orgID]
		if oa == nil || len(oa.Papers) == 0 {
			continue
		}
		task := c.processTask(ctx, oa, results)
		if err := pool.Submit(task); err != nil {
			result.Status = pipeline.StatusFailed
			result.Errors = append(result.Errors, fmt.Sprintf("submitting task for %s: %v", orgID, err))
			break
		}
		submitted++
		submittedIDs = append(submittedIDs, orgID)
	}

	// Mutex-guarded collection point; the deadline check shares the mutex
	// so late stragglers never mutate the returned envelope.
	var mu sync.Mutex
	completed := make(map[string]bool, submitted)

	timeoutErr := resilience.WithTimeout(ctx, c.opts.StageTimeout, "process stage", func(tctx context.Context) error {
		for i := 0; i < submitted; i++ {
			select {
			case tr := <-results:
				mu.Lock()
				if tctx.Err() == nil {
					completed[tr.orgID] = true
					result.PerOrg[tr.orgID] = tr.result
				}
				mu.Unlock()
			case <-tctx.Done():
				return tctx.Err()
			}
		}
		return nil
	})
	if timeoutErr != nil {
		c.logger.Warn("stage timeout, abandoning stragglers", "timeout", c.opts.StageTimeout)
	}

	mu.Lock()
	for _, orgID := range submittedIDs {
		if !completed[orgID] {
			result.PerOrg[orgID] = pipeline.OrgStageResult{
				OrganizationID: orgID,
				Status:         pipeline.StatusFailed,
				Errors:         []string{fmt.Sprintf("processing timed out after %v", c.opts.StageTimeout)},
			}
		}
	}
	mu.Unlock()

	if result.Status != pipeline.StatusFailed {
		result.Status = pipeline.StatusSuccess
	}
	result.Duration = time.Since(start)

	succeeded, failed := result.OrgCounts()
	result.Metrics["papers_indexed"] = float64(result.TotalProcessed())
	result.Metrics["chunks_indexed"] = float64(result.TotalCreated())
	result.Metrics["orgs_succeeded"] = float64(succeeded)
	result.Metrics["orgs_failed"] = float64(failed)
	if secs := result.Duration.Seconds(); secs > 0 {
		result.Metrics["papers_per_second"] = float64(result.TotalProcessed()) / secs
	}

	c.logger.Info("process stage completed",
		"status", result.Status,
		"papers_indexed", result.TotalProcessed(),
		"chunks_indexed", result.TotalCreated(),
		"orgs_succeeded", succeeded,
		"orgs_failed", failed,
		"duration", result.Duration,
	)
	return result
}

// processTask builds the pool task for one organization's assignment.
func (c *Coordinator) processTask(ctx context.Context, oa *assign.OrgAssignment, results chan<- taskResult) func() {
	orgID := oa.Organization.ID
	papers := oa.Papers
	return func() {
		tr := taskResult{
			orgID:  orgID,
			result: pipeline.OrgStageResult{OrganizationID: orgID, Status: pipeline.StatusSuccess},
		}
		defer func() {
			if r := recover(); r != nil {
				tr.result.Status = pipeline.StatusFailed
				tr.result.Errors = append(tr.result.Errors, fmt.Sprintf("panic in process task: %v", r))
			}
			results <- tr
		}()

		taskCtx, span := c.tracer.StartSpan(ctx, "process-org")
		span.SetAttr("organization", orgID)
		span.SetAttr("papers", len(papers))
		defer span.End()

		for _, p := range papers {
			chunksIndexed, err := c.processPaper(taskCtx, orgID, p)
			if err != nil {
				c.tracer.RecordError(pipeline.StageProcess, err)
				tr.result.Errors = append(tr.result.Errors, fmt.Sprintf("%s: %v", p.ArxivID, err))
				continue
			}
			tr.result.Processed++
			tr.result.Created += chunksIndexed
		}

		// A task with papers but zero successes is a failed organization.
		if len(papers) > 0 && tr.result.Processed == 0 {
			tr.result.Status = pipeline.StatusFailed
		}
		span.SetAttr("indexed", tr.result.Processed)
	}
}

// processPaper runs extraction, chunking, embedding, indexing, and status
// persistence for one paper. Every indexed chunk carries the owning
// organization so retrieval over one tenant's data can never surface
// another tenant's chunks.
func (c *Coordinator) processPaper(ctx context.Context, orgID string, p paper.Paper) (int, error) {
	extraction, err := c.extractor.Extract(ctx, p.PDFURL)
	if err != nil {
		return 0, err
	}

	text := buildDocumentText(p, extraction)
	chunks := chunker.Chunk(text, c.opts.ChunkSize, c.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no indexable text for %s", p.ArxivID)
	}

	vectors, err := c.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch for %s: %d chunks, %d vectors", p.ArxivID, len(chunks), len(vectors))
	}

	docs := make([]index.Document, len(chunks))
	for i := range chunks {
		docs[i] = index.Document{
			PaperID:        p.ArxivID,
			OrganizationID: orgID,
			ChunkIndex:     i,
			Title:          p.Title,
			Text:           chunks[i],
			Vector:         vectors[i],
		}
	}

	stats, err := c.index.UpsertBatch(ctx, docs, orgID, c.opts.ReplaceExisting)
	if err != nil {
		return 0, err
	}

	if c.repo != nil {
		rec := org.IngestedPaper{
			OrganizationID: orgID,
			ArxivID:        p.ArxivID,
			Title:          p.Title,
			Status:         org.IngestStatusIndexed,
			ChunkCount:     stats.ChunksIndexed,
			IngestedAt:     time.Now().UTC(),
		}
		if err := c.repo.SaveIngested(ctx, rec); err != nil {
			// Indexing already happened; a failed status write is logged
			// but does not undo the paper.
			c.logger.Warn("failed to persist ingestion status", "organization", orgID, "arxiv_id", p.ArxivID, "error", err)
		}
	}
	if c.marker != nil {
		_ = c.marker.MarkSeen(ctx, p.ArxivID)
	}
	return stats.ChunksIndexed, nil
}

// buildDocumentText combines metadata with extracted content so papers
// remain searchable even when full-text extraction is unavailable.
func buildDocumentText(p paper.Paper, ex Extraction) string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString("\n\n")
	if len(p.Authors) > 0 {
		b.WriteString(strings.Join(p.Authors, ", "))
		b.WriteString("\n\n")
	}
	b.WriteString(p.Abstract)
	if ex.Text != "" {
		b.WriteString("\n\n")
		b.WriteString(ex.Text)
	}
	return b.String()
}
