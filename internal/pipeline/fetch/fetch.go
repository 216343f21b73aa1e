// Package fetch runs one paper-retrieval task per organization on a
// bounded worker pool. Tasks are fully independent; a failing organization
// never aborts its siblings, and the stage itself fails only when the pool
// cannot be started.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/arxiv"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/resilience"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/tracing"
)

// SeenCache answers whether a paper was already ingested in a previous
// run. It is best-effort: lookup failures are treated as not-seen and
// never fail the fetch.
type SeenCache interface {
	Seen(ctx context.Context, arxivID string) bool
	MarkSeen(ctx context.Context, arxivID string) error
}

// Options configures a Coordinator.
type Options struct {
	// QueryTerms are the arXiv categories queried for every organization.
	QueryTerms []string
	// Workers bounds pool concurrency.
	Workers int
	// StageTimeout abandons waiting for straggler tasks.
	StageTimeout time.Duration
	// LimitCeiling caps the derived per-organization ingestion limit.
	LimitCeiling int
}

// Coordinator fans one fetch task per organization out over a worker pool
// and aggregates the results.
type Coordinator struct {
	source arxiv.Client
	seen   SeenCache
	opts   Options
	tracer tracing.Tracer
	logger *slog.Logger
}

// New creates a Coordinator. seen and tracer may be nil.
func New(source arxiv.Client, seen SeenCache, tracer tracing.Tracer, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 10 * time.Minute
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}
	return &Coordinator{
		source: source,
		seen:   seen,
		opts:   opts,
		tracer: tracer,
		logger: slog.Default().With("component", "fetch-coordinator"),
	}
}

type taskResult struct {
	orgID  string
	result pipeline.OrgStageResult
	papers []paper.Paper
}

// Run fetches papers for every organization concurrently and returns the
// stage envelope plus the flat list of fetched papers for the assignment
// engine. Per-organization failures are folded into the envelope.
func (c *Coordinator) Run(ctx context.Context, orgs []org.Organization, perOrgLimit int) (pipeline.StageResult, []paper.Paper) {
	result := pipeline.NewStageResult()
	start := time.Now()

	if len(orgs) == 0 {
		result.Status = pipeline.StatusSuccess
		result.Duration = time.Since(start)
		return result, nil
	}

	pool, err := ants.NewPool(c.opts.Workers)
	if err != nil {
		result.Status = pipeline.StatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("starting worker pool: %v", err))
		result.Duration = time.Since(start)
		return result, nil
	}
	defer pool.Release()

	results := make(chan taskResult, len(orgs))
	submitted := 0
	for _, o := range orgs {
		task := c.fetchTask(ctx, o, perOrgLimit, results)
		if err := pool.Submit(task); err != nil {
			result.Status = pipeline.StatusFailed
			result.Errors = append(result.Errors, fmt.Sprintf("submitting task for %s: %v", o.ID, err))
			break
		}
		submitted++
	}

	// Single mutex-guarded collection point. The deadline check shares the
	// mutex so a straggler arriving after the timeout never mutates the
	// envelope the caller already owns.
	var mu sync.Mutex
	var papers []paper.Paper
	completed := make(map[string]bool, submitted)

	timeoutErr := resilience.WithTimeout(ctx, c.opts.StageTimeout, "fetch stage", func(tctx context.Context) error {
		for i := 0; i < submitted; i++ {
			select {
			case tr := <-results:
				mu.Lock()
				if tctx.Err() == nil {
					completed[tr.orgID] = true
					result.PerOrg[tr.orgID] = tr.result
					papers = append(papers, tr.papers...)
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

	// Organizations that never reported before the deadline are marked
	// failed with a timeout error.
	mu.Lock()
	for _, o := range orgs[:min(submitted, len(orgs))] {
		if !completed[o.ID] {
			result.PerOrg[o.ID] = pipeline.OrgStageResult{
				OrganizationID: o.ID,
				Status:         pipeline.StatusFailed,
				Errors:         []string{fmt.Sprintf("fetch timed out after %v", c.opts.StageTimeout)},
			}
		}
	}
	mu.Unlock()

	if result.Status != pipeline.StatusFailed {
		result.Status = pipeline.StatusSuccess
	}
	result.Duration = time.Since(start)

	succeeded, failed := result.OrgCounts()
	result.Metrics["papers_fetched"] = float64(len(papers))
	result.Metrics["orgs_succeeded"] = float64(succeeded)
	result.Metrics["orgs_failed"] = float64(failed)
	if secs := result.Duration.Seconds(); secs > 0 {
		result.Metrics["papers_per_second"] = float64(len(papers)) / secs
	}

	c.logger.Info("fetch stage completed",
		"status", result.Status,
		"papers", len(papers),
		"orgs_succeeded", succeeded,
		"orgs_failed", failed,
		"duration", result.Duration,
	)
	return result, papers
}

// fetchTask builds the pool task for one organization. Any failure,
// including a panic in the source client, becomes a failed OrgStageResult.
func (c *Coordinator) fetchTask(ctx context.Context, o org.Organization, perOrgLimit int, results chan<- taskResult) func() {
	return func() {
		tr := taskResult{
			orgID:  o.ID,
			result: pipeline.OrgStageResult{OrganizationID: o.ID, Status: pipeline.StatusSuccess},
		}
		defer func() {
			if r := recover(); r != nil {
				tr.result.Status = pipeline.StatusFailed
				tr.result.Errors = append(tr.result.Errors, fmt.Sprintf("panic in fetch task: %v", r))
				tr.papers = nil
			}
			results <- tr
		}()

		taskCtx, span := c.tracer.StartSpan(ctx, "fetch-org")
		span.SetAttr("organization", o.ID)
		defer span.End()

		limit := o.IngestionLimit(c.opts.LimitCeiling)
		if perOrgLimit > 0 && perOrgLimit < limit {
			limit = perOrgLimit
		}

		fetched, err := c.source.Search(taskCtx, arxiv.SearchQuery{
			Terms:  c.opts.QueryTerms,
			Limit:  limit,
			SortBy: "submittedDate",
		})
		if err != nil {
			c.tracer.RecordError(pipeline.StageFetch, err)
			tr.result.Status = pipeline.StatusFailed
			tr.result.Errors = append(tr.result.Errors, err.Error())
			return
		}

		duplicates := 0
		for _, p := range fetched {
			if c.seen != nil && c.seen.Seen(taskCtx, p.ArxivID) {
				duplicates++
				continue
			}
			tr.papers = append(tr.papers, p.WithOrganization(o.ID))
		}
		tr.result.Processed = len(tr.papers)
		span.SetAttr("papers", len(tr.papers))
		span.SetAttr("duplicates_skipped", duplicates)
	}
}
