// Package orchestrator sequences a full ingestion run: resolve
// organizations, fetch, assign, process, monitor, clean up, and send the
// single terminal notification. Stage-level sequencing is strictly
// cooperative; parallelism lives inside the fetch and process coordinators.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/notify"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/paper"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/assign"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/monitor"
	apperrors "github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/errors"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/logger"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/metrics"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/redis"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/tracing"
)

// RunState tracks where the orchestrator is in the run lifecycle.
type RunState string

const (
	StateInit                  RunState = "init"
	StateSetupValidated        RunState = "setup_validated"
	StateSecurityValidated     RunState = "security_validated"
	StateOrganizationsResolved RunState = "organizations_resolved"
	StateFetching              RunState = "fetching"
	StateSkipped               RunState = "skipped"
	StateAssigning             RunState = "assigning"
	StateProcessing            RunState = "processing"
	StateMonitoring            RunState = "monitoring"
	StateCleanup               RunState = "cleanup"
	StateNotified              RunState = "notified"
	StateTerminal              RunState = "terminal"
)

// Terminal run statuses carried in the notification and the audit stream.
const (
	RunSuccess = "success"
	RunFailed  = "failed"
	RunSkipped = "skipped"
)

// Fetcher is the fetch stage seen from the orchestrator.
type Fetcher interface {
	Run(ctx context.Context, orgs []org.Organization, perOrgLimit int) (pipeline.StageResult, []paper.Paper)
}

// Processor is the process/index stage seen from the orchestrator.
type Processor interface {
	Run(ctx context.Context, a *assign.Assignment) pipeline.StageResult
}

// RunReport is the durable outcome of one run: every stage envelope, the
// monitoring report, and the cleanup result.
type RunReport struct {
	RunID      string                          `json:"run_id"`
	Status     string                          `json:"status"`
	State      RunState                        `json:"state"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
	Stages     map[string]pipeline.StageResult `json:"stages"`
	Monitoring monitor.Report                  `json:"monitoring"`
	Cleanup    pipeline.CleanupResult          `json:"cleanup"`
	SkipReason string                          `json:"skip_reason,omitempty"`
	FatalError string                          `json:"fatal_error,omitempty"`
}

// Options bound a single run.
type Options struct {
	MaxOrganizations int
	PerOrgFetchLimit int
	LimitCeiling     int
}

// Orchestrator drives the run state machine. The skip path and the full
// stage path both converge on exactly one notification per run.
type Orchestrator struct {
	directory *org.Directory
	fetcher   Fetcher
	processor Processor
	evaluator *monitor.Engine
	cleaner   *Cleaner
	notifier  notify.Notifier
	events    EventPublisher
	redis     *redis.Client
	tracer    tracing.Tracer
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
}

// New wires the stage coordinators together. events, redis, tracer, and
// metrics may be nil; the orchestrator substitutes no-ops.
func New(
	directory *org.Directory,
	fetcher Fetcher,
	processor Processor,
	evaluator *monitor.Engine,
	cleaner *Cleaner,
	notifier notify.Notifier,
	events EventPublisher,
	redisClient *redis.Client,
	tracer tracing.Tracer,
	m *metrics.Metrics,
	opts Options,
) *Orchestrator {
	if events == nil {
		events = NoopEvents{}
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}
	if cleaner == nil {
		cleaner = NewCleaner(redisClient)
	}
	if opts.MaxOrganizations <= 0 {
		opts.MaxOrganizations = 20
	}
	if opts.PerOrgFetchLimit <= 0 {
		opts.PerOrgFetchLimit = 10
	}
	return &Orchestrator{
		directory: directory,
		fetcher:   fetcher,
		processor: processor,
		evaluator: evaluator,
		cleaner:   cleaner,
		notifier:  notifier,
		events:    events,
		redis:     redisClient,
		tracer:    tracer,
		metrics:   m,
		opts:      opts,
		logger:    logger.WithComponent("orchestrator"),
	}
}

// Run executes one full pipeline run. The returned error is non-nil only
// for fatal pre-stage failures (configuration, access); in every case the
// terminal notification has already been sent exactly once.
func (o *Orchestrator) Run(ctx context.Context, sec org.SecurityContext) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		State:     StateInit,
		StartedAt: time.Now().UTC(),
		Stages:    make(map[string]pipeline.StageResult),
	}
	ctx = logger.WithRunID(ctx, report.RunID)
	log := logger.FromContext(ctx).With("component", "orchestrator")

	notified := false
	sendOnce := func(priority notify.Priority, subject, body string) {
		if notified {
			return
		}
		notified = true
		if o.notifier == nil {
			log.Warn("no notification sink configured; terminal notification dropped")
			report.State = StateNotified
			return
		}
		if err := o.notifier.Send(ctx, priority, subject, body); err != nil {
			log.Warn("terminal notification failed", "error", err)
		}
		report.State = StateNotified
	}

	ctx, span := o.tracer.StartSpan(ctx, "pipeline.run")
	span.SetAttr("run_id", report.RunID)
	defer span.End()

	o.publishEvent(ctx, RunEvent{
		RunID: report.RunID, Type: EventRunStarted, Status: "running",
		Timestamp: report.StartedAt,
	})
	log.Info("pipeline run started")

	// Setup and security gates run before any stage.
	if err := o.validateSetup(); err != nil {
		return o.finishFatal(ctx, report, err, sendOnce)
	}
	report.State = StateSetupValidated

	orgs, err := o.directory.ActiveOrganizations(ctx, sec, o.opts.MaxOrganizations)
	if err != nil {
		if !errors.Is(err, apperrors.ErrAccessDenied) {
			report.State = StateSecurityValidated
		}
		return o.finishFatal(ctx, report, err, sendOnce)
	}
	report.State = StateOrganizationsResolved

	if len(orgs) == 0 {
		report.State = StateSkipped
		report.SkipReason = "no eligible organizations"
		log.Info("run skipped", "reason", report.SkipReason)
		o.finish(ctx, report, RunSkipped)
		sendOnce(notify.PriorityNormal, o.subject(report, RunSkipped),
			fmt.Sprintf("Run %s skipped: %s.", report.RunID, report.SkipReason))
		report.State = StateTerminal
		return report, nil
	}

	report.State = StateFetching
	fetchResult, papers := o.fetcher.Run(ctx, orgs, o.opts.PerOrgFetchLimit)
	o.recordStage(ctx, report, pipeline.StageFetch, fetchResult)
	if o.metrics != nil {
		o.metrics.PapersFetchedTotal.Add(float64(len(papers)))
	}

	// A stage-level fetch failure (the pool itself, not individual
	// organizations) halts the dependent stages; the run still converges
	// on monitoring, cleanup, and the terminal notification.
	var processResult pipeline.StageResult
	if fetchResult.Status == pipeline.StatusFailed {
		log.Warn("fetch stage failed, skipping assignment and processing")
	} else {
		report.State = StateAssigning
		assignment, assignResult := o.runAssign(orgs, papers)
		o.recordStage(ctx, report, pipeline.StageAssign, assignResult)

		report.State = StateProcessing
		processResult = o.processor.Run(ctx, assignment)
		o.recordStage(ctx, report, pipeline.StageProcess, processResult)
		if o.metrics != nil {
			o.metrics.PapersIndexedTotal.Add(float64(processResult.TotalProcessed()))
			o.metrics.ChunksIndexedTotal.Add(float64(processResult.TotalCreated()))
		}
	}

	report.State = StateMonitoring
	report.Monitoring = o.evaluator.Evaluate(report.Stages)
	if o.metrics != nil {
		o.metrics.PipelineScore.Set(report.Monitoring.Score)
	}

	report.State = StateCleanup
	report.Cleanup = o.cleaner.Run(ctx, report.RunID)

	status := RunSuccess
	if fetchResult.Status == pipeline.StatusFailed || processResult.Status == pipeline.StatusFailed {
		status = RunFailed
	}
	o.finish(ctx, report, status)

	priority := notify.PriorityNormal
	if status == RunFailed {
		priority = notify.PriorityHigh
	}
	sendOnce(priority, o.subject(report, status), o.summaryBody(report, status))
	report.State = StateTerminal

	log.Info("pipeline run finished",
		"status", status,
		"score", report.Monitoring.Score,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

func (o *Orchestrator) validateSetup() error {
	if o.directory == nil || o.fetcher == nil || o.processor == nil || o.evaluator == nil {
		return apperrors.New(apperrors.ErrConfiguration, "orchestrator missing a required collaborator")
	}
	if o.notifier == nil {
		return apperrors.New(apperrors.ErrConfiguration, "orchestrator requires a notification sink")
	}
	return nil
}

func (o *Orchestrator) runAssign(orgs []org.Organization, papers []paper.Paper) (*assign.Assignment, pipeline.StageResult) {
	result := pipeline.NewStageResult()
	start := time.Now()

	a := assign.Assign(orgs, papers, o.opts.LimitCeiling)

	for id, oa := range a.PerOrg {
		result.PerOrg[id] = pipeline.OrgStageResult{
			OrganizationID: id,
			Status:         pipeline.StatusSuccess,
			Processed:      oa.AssignedCount,
		}
	}
	result.Status = pipeline.StatusSuccess
	result.Duration = time.Since(start)
	result.Metrics["papers_assigned"] = float64(a.TotalAssigned())
	result.Metrics["papers_unassigned"] = float64(a.Unassigned)
	if o.metrics != nil {
		o.metrics.PapersUnassigned.Add(float64(a.Unassigned))
	}
	return a, result
}

// recordStage stores the stage envelope, mirrors it into the run-scoped
// Redis key, updates Prometheus collectors, and emits an audit event. Every
// side effect here is best-effort.
func (o *Orchestrator) recordStage(ctx context.Context, report *RunReport, stage string, result pipeline.StageResult) {
	report.Stages[stage] = result

	if o.redis != nil {
		key := RunKey(report.RunID, "stage", stage)
		if err := o.redis.Set(ctx, key, string(result.Status), time.Hour); err != nil {
			o.logger.Debug("stage status key not written", "key", key, "error", err)
		}
	}
	if o.metrics != nil {
		o.metrics.StageDuration.WithLabelValues(stage).Observe(result.Duration.Seconds())
		succeeded, failed := result.OrgCounts()
		o.metrics.OrgTasksTotal.WithLabelValues(stage, string(pipeline.StatusSuccess)).Add(float64(succeeded))
		o.metrics.OrgTasksTotal.WithLabelValues(stage, string(pipeline.StatusFailed)).Add(float64(failed))
	}
	o.publishEvent(ctx, RunEvent{
		RunID: report.RunID, Type: EventStageCompleted, Stage: stage,
		Status: string(result.Status), Timestamp: time.Now().UTC(),
		Detail: fmt.Sprintf("processed=%d errors=%d", result.TotalProcessed(), len(result.Errors)),
	})
}

func (o *Orchestrator) finish(ctx context.Context, report *RunReport, status string) {
	report.Status = status
	report.FinishedAt = time.Now().UTC()
	if o.metrics != nil {
		o.metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	}
	o.publishEvent(ctx, RunEvent{
		RunID: report.RunID, Type: EventRunCompleted, Status: status,
		Timestamp: report.FinishedAt,
	})
}

// finishFatal handles pre-stage failures: the run still terminates through
// the notification path, never silently.
func (o *Orchestrator) finishFatal(ctx context.Context, report *RunReport, err error, sendOnce func(priority notify.Priority, subject, body string)) (*RunReport, error) {
	report.FatalError = err.Error()
	o.tracer.RecordError("run", err)
	o.finish(ctx, report, RunFailed)
	sendOnce(notify.PriorityCritical, o.subject(report, RunFailed),
		fmt.Sprintf("Run %s aborted before completion: %v.", report.RunID, err))
	report.State = StateTerminal
	logger.FromContext(ctx).Error("pipeline run aborted", "error", err)
	return report, err
}

func (o *Orchestrator) subject(report *RunReport, status string) string {
	return fmt.Sprintf("[ingestion] run %s: %s", report.RunID[:8], status)
}

// summaryBody renders the terminal notification: stage outcomes,
// categorized error counts, and up to five critical error excerpts.
func (o *Orchestrator) summaryBody(report *RunReport, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished with status %s (score %.2f).\n", report.RunID, status, report.Monitoring.Score)
	fmt.Fprintf(&b, "Stages: %d/%d succeeded.\n",
		report.Monitoring.Overview.StagesSucceeded, report.Monitoring.Overview.StagesTotal)

	if proc, ok := report.Stages[pipeline.StageProcess]; ok {
		fmt.Fprintf(&b, "Papers indexed: %d (chunks: %d).\n", proc.TotalProcessed(), proc.TotalCreated())
	}
	if ea := report.Monitoring.Errors; ea.Total > 0 {
		fmt.Fprintf(&b, "Errors: %d total.", ea.Total)
		cats := make([]string, 0, len(ea.ByCategory))
		for cat, n := range ea.ByCategory {
			cats = append(cats, fmt.Sprintf("%s=%d", cat, n))
		}
		sort.Strings(cats)
		fmt.Fprintf(&b, " By category: %s.\n", strings.Join(cats, ", "))
		for i, msg := range ea.CriticalErrors {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "  critical: %s\n", msg)
		}
	}
	if report.Cleanup.Status == pipeline.StatusFailed {
		fmt.Fprintf(&b, "Cleanup incomplete: %s\n", strings.Join(report.Cleanup.Errors, "; "))
	}
	return b.String()
}

func (o *Orchestrator) publishEvent(ctx context.Context, event RunEvent) {
	if err := o.events.PublishRunEvent(ctx, event); err != nil {
		o.logger.Debug("run event not published", "type", event.Type, "error", err)
	}
}
