// Package monitor computes run statistics, alerts, recommendations, and
// the scalar pipeline score from the stage result envelopes. Evaluation is
// a pure function of its input: the same stage results always produce the
// same report, and malformed or missing stages contribute zero instead of
// raising.
package monitor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
)

// AlertLevel grades an alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is derived data, recomputed each run and never persisted.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Metric    string     `json:"metric"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
}

// ErrorCategory buckets error messages by keyword.
type ErrorCategory string

const (
	CategoryConnectivity ErrorCategory = "connectivity"
	CategoryTimeout      ErrorCategory = "timeout"
	CategoryPermission   ErrorCategory = "permission"
	CategoryResource     ErrorCategory = "resource"
	CategoryDataFormat   ErrorCategory = "data_format"
	CategoryGeneral      ErrorCategory = "general"
)

// Overview aggregates stage-level outcomes.
type Overview struct {
	StagesTotal     int                `json:"stages_total"`
	StagesSucceeded int                `json:"stages_succeeded"`
	StagesFailed    int                `json:"stages_failed"`
	SuccessRate     float64            `json:"success_rate"`
	// ProcessedByStage reports each stage's processed count separately;
	// fetched, processed, and indexed counts measure different things
	// and are not averaged together.
	ProcessedByStage map[string]int `json:"processed_by_stage"`
	TotalDuration    time.Duration  `json:"total_duration"`
}

// OrgMetrics joins one organization's outcome across all stages.
type OrgMetrics struct {
	OrganizationID string            `json:"organization_id"`
	StageStatus    map[string]string `json:"stage_status"`
	ItemsProcessed int               `json:"items_processed"`
	ErrorCount     int               `json:"error_count"`
	SuccessRate    float64           `json:"success_rate"`
}

// ErrorAnalysis summarises and categorises every recorded error.
type ErrorAnalysis struct {
	Total          int                   `json:"total"`
	ByStage        map[string]int        `json:"by_stage"`
	ByCategory     map[ErrorCategory]int `json:"by_category"`
	CriticalErrors []string              `json:"critical_errors,omitempty"`
}

// ResourceSnapshot is an optional host-level reading taken at report time.
type ResourceSnapshot struct {
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryAvailable uint64  `json:"memory_available"`
	MemoryUsedPct   float64 `json:"memory_used_pct"`
	CPUPercent      float64 `json:"cpu_percent"`
}

// Report is the full monitoring output of one run.
type Report struct {
	Overview         Overview              `json:"overview"`
	PerOrg           map[string]OrgMetrics `json:"per_org"`
	LoadBalanceScore float64               `json:"load_balance_score"`
	Errors           ErrorAnalysis         `json:"errors"`
	Alerts           []Alert               `json:"alerts,omitempty"`
	Recommendations  []string              `json:"recommendations,omitempty"`
	Score            float64               `json:"score"`
	Resources        *ResourceSnapshot     `json:"resources,omitempty"`
}

// Engine evaluates stage results against configured thresholds.
type Engine struct {
	durationCeiling time.Duration
	snapshot        func() *ResourceSnapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithDurationCeiling sets the total-duration warning threshold.
func WithDurationCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.durationCeiling = d
		}
	}
}

// WithResourceSnapshot attaches a host resource snapshot source, read once
// per Evaluate call. Nil readings are tolerated.
func WithResourceSnapshot(fn func() *ResourceSnapshot) Option {
	return func(e *Engine) { e.snapshot = fn }
}

// NewEngine creates an Engine with a 30 minute default duration ceiling.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{durationCeiling: 30 * time.Minute}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes the full report. Stages absent from the map simply
// contribute nothing.
func (e *Engine) Evaluate(results map[string]pipeline.StageResult) Report {
	report := Report{
		Overview: Overview{ProcessedByStage: make(map[string]int)},
		PerOrg:   make(map[string]OrgMetrics),
		Errors: ErrorAnalysis{
			ByStage:    make(map[string]int),
			ByCategory: make(map[ErrorCategory]int),
		},
	}

	e.computeOverview(&report, results)
	e.computePerOrg(&report, results)
	e.computeErrors(&report, results)
	e.computeAlerts(&report, results)
	e.computeRecommendations(&report, results)
	report.Score = e.computeScore(&report)

	if e.snapshot != nil {
		report.Resources = e.snapshot()
	}
	return report
}

func (e *Engine) computeOverview(report *Report, results map[string]pipeline.StageResult) {
	var minStart, maxEnd time.Time
	for name, res := range results {
		report.Overview.StagesTotal++
		switch res.Status {
		case pipeline.StatusSuccess:
			report.Overview.StagesSucceeded++
		case pipeline.StatusFailed:
			report.Overview.StagesFailed++
		}
		report.Overview.ProcessedByStage[name] = res.TotalProcessed()

		if res.Timestamp.IsZero() {
			continue
		}
		if minStart.IsZero() || res.Timestamp.Before(minStart) {
			minStart = res.Timestamp
		}
		end := res.Timestamp.Add(res.Duration)
		if end.After(maxEnd) {
			maxEnd = end
		}
	}
	if report.Overview.StagesTotal > 0 {
		report.Overview.SuccessRate = float64(report.Overview.StagesSucceeded) / float64(report.Overview.StagesTotal)
	}
	if !minStart.IsZero() {
		report.Overview.TotalDuration = maxEnd.Sub(minStart)
	}
}

func (e *Engine) computePerOrg(report *Report, results map[string]pipeline.StageResult) {
	for stage, res := range results {
		for orgID, o := range res.PerOrg {
			m, ok := report.PerOrg[orgID]
			if !ok {
				m = OrgMetrics{OrganizationID: orgID, StageStatus: make(map[string]string)}
			}
			m.StageStatus[stage] = string(o.Status)
			m.ItemsProcessed += o.Processed
			m.ErrorCount += len(o.Errors)
			report.PerOrg[orgID] = m
		}
	}

	counts := make([]float64, 0, len(report.PerOrg))
	for orgID, m := range report.PerOrg {
		succeeded, total := 0, 0
		for _, status := range m.StageStatus {
			total++
			if status == string(pipeline.StatusSuccess) {
				succeeded++
			}
		}
		if total > 0 {
			m.SuccessRate = float64(succeeded) / float64(total)
		}
		report.PerOrg[orgID] = m
		counts = append(counts, float64(m.ItemsProcessed))
	}
	report.LoadBalanceScore = loadBalanceScore(counts)
}

// loadBalanceScore is max(0, 1 - coefficient of variation) over the
// per-organization item counts. A zero mean means nothing was distributed
// unevenly, so the score is defined as 1.
func loadBalanceScore(counts []float64) float64 {
	if len(counts) == 0 {
		return 1.0
	}
	var sum float64
	for _, c := range counts {
		sum += c
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 1.0
	}
	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	cv := math.Sqrt(variance) / mean
	return math.Max(0, 1-cv)
}

var criticalKeywords = []string{"panic", "fatal", "corrupt", "data loss", "security"}

func (e *Engine) computeErrors(report *Report, results map[string]pipeline.StageResult) {
	for stage, res := range results {
		var msgs []string
		msgs = append(msgs, res.Errors...)
		for _, o := range res.PerOrg {
			msgs = append(msgs, o.Errors...)
		}
		if len(msgs) == 0 {
			continue
		}
		report.Errors.ByStage[stage] += len(msgs)
		report.Errors.Total += len(msgs)
		for _, msg := range msgs {
			report.Errors.ByCategory[Categorize(msg)]++
			if isCritical(msg) {
				report.Errors.CriticalErrors = append(report.Errors.CriticalErrors, fmt.Sprintf("[%s] %s", stage, msg))
			}
		}
	}
	sort.Strings(report.Errors.CriticalErrors)
}

// Categorize buckets one error message by keyword match.
func Categorize(msg string) ErrorCategory {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "timeout", "timed out", "deadline"):
		return CategoryTimeout
	case containsAny(lower, "connection", "refused", "unreachable", "network", "dial", "unavailable"):
		return CategoryConnectivity
	case containsAny(lower, "permission", "unauthorized", "access denied", "forbidden"):
		return CategoryPermission
	case containsAny(lower, "memory", "disk", "capacity", "exhausted", "too many"):
		return CategoryResource
	case containsAny(lower, "parse", "unmarshal", "decode", "invalid", "malformed"):
		return CategoryDataFormat
	default:
		return CategoryGeneral
	}
}

func isCritical(msg string) bool {
	return containsAny(strings.ToLower(msg), criticalKeywords...)
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (e *Engine) computeAlerts(report *Report, results map[string]pipeline.StageResult) {
	if report.Overview.StagesTotal > 0 && report.Overview.SuccessRate < 0.5 {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertCritical,
			Message:   "pipeline success rate below threshold",
			Metric:    "pipeline_success_rate",
			Value:     report.Overview.SuccessRate,
			Threshold: 0.5,
		})
	}
	if report.Overview.StagesFailed > 2 {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertCritical,
			Message:   "multiple pipeline stages failed",
			Metric:    "stages_failed",
			Value:     float64(report.Overview.StagesFailed),
			Threshold: 2,
		})
	}
	if e.durationCeiling > 0 && report.Overview.TotalDuration > e.durationCeiling {
		report.Alerts = append(report.Alerts, Alert{
			Level:     AlertWarning,
			Message:   "pipeline run exceeded its duration ceiling",
			Metric:    "total_duration_seconds",
			Value:     report.Overview.TotalDuration.Seconds(),
			Threshold: e.durationCeiling.Seconds(),
		})
	}
}

func (e *Engine) computeRecommendations(report *Report, results map[string]pipeline.StageResult) {
	if report.Overview.StagesTotal > 0 && report.Overview.SuccessRate < 0.8 {
		report.Recommendations = append(report.Recommendations,
			"investigate failing stages; success rate is below 0.8")
	}
	if report.Overview.TotalDuration > time.Hour {
		report.Recommendations = append(report.Recommendations,
			"run took over an hour; consider raising worker counts or lowering per-organization limits")
	}
	if report.Errors.Total > 10 {
		report.Recommendations = append(report.Recommendations,
			"error count exceeds 10; review error categories for a dominant cause")
	}
	if res, ok := results[pipeline.StageProcess]; ok {
		if tp, ok := res.Metrics["papers_per_second"]; ok && tp > 0 && tp < 1 {
			report.Recommendations = append(report.Recommendations,
				"processing throughput is below 1 paper/s; check embedder and index latency")
		}
	}
}

// computeScore blends stage success, per-organization success, error
// volume, and duration into a single [0,1] health value.
func (e *Engine) computeScore(report *Report) float64 {
	orgSuccess := 1.0
	if len(report.PerOrg) > 0 {
		var sum float64
		for _, m := range report.PerOrg {
			sum += m.SuccessRate
		}
		orgSuccess = sum / float64(len(report.PerOrg))
	}

	errPenalty := math.Min(1, float64(report.Errors.Total)/10.0)

	durPenalty := 0.0
	if e.durationCeiling > 0 && report.Overview.TotalDuration > e.durationCeiling {
		excess := report.Overview.TotalDuration - e.durationCeiling
		durPenalty = math.Min(1, excess.Seconds()/e.durationCeiling.Seconds())
	}

	score := 0.4*report.Overview.SuccessRate +
		0.3*orgSuccess +
		0.2*(1-errPenalty) +
		0.1*(1-durPenalty)
	return math.Max(0, math.Min(1, score))
}
