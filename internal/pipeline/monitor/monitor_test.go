package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
)

func stageResultAt(status pipeline.Status, start time.Time, duration time.Duration, perOrg map[string]pipeline.OrgStageResult) pipeline.StageResult {
	return pipeline.StageResult{
		Status:    status,
		Timestamp: start,
		Duration:  duration,
		PerOrg:    perOrg,
	}
}

func TestEvaluateIsPure(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	results := map[string]pipeline.StageResult{
		pipeline.StageFetch: stageResultAt(pipeline.StatusSuccess, start, time.Minute, map[string]pipeline.OrgStageResult{
			"a": {OrganizationID: "a", Status: pipeline.StatusSuccess, Processed: 4},
			"b": {OrganizationID: "b", Status: pipeline.StatusFailed, Errors: []string{"connection refused"}},
		}),
		pipeline.StageProcess: stageResultAt(pipeline.StatusSuccess, start.Add(time.Minute), 2*time.Minute, map[string]pipeline.OrgStageResult{
			"a": {OrganizationID: "a", Status: pipeline.StatusSuccess, Processed: 4, Created: 12},
		}),
	}
	e := NewEngine()
	first := e.Evaluate(results)
	second := e.Evaluate(results)
	assert.Equal(t, first, second, "same input must yield an identical report")
}

func TestEvaluateOverview(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	results := map[string]pipeline.StageResult{
		pipeline.StageFetch:   stageResultAt(pipeline.StatusSuccess, start, time.Minute, nil),
		pipeline.StageAssign:  stageResultAt(pipeline.StatusSuccess, start.Add(time.Minute), time.Second, nil),
		pipeline.StageProcess: stageResultAt(pipeline.StatusFailed, start.Add(2*time.Minute), 3*time.Minute, nil),
	}
	report := NewEngine().Evaluate(results)

	assert.Equal(t, 3, report.Overview.StagesTotal)
	assert.Equal(t, 2, report.Overview.StagesSucceeded)
	assert.Equal(t, 1, report.Overview.StagesFailed)
	assert.InDelta(t, 2.0/3.0, report.Overview.SuccessRate, 1e-9)
	// Span runs from the earliest start to the latest end.
	assert.Equal(t, 5*time.Minute, report.Overview.TotalDuration)
}

func TestEvaluateEmptyInput(t *testing.T) {
	report := NewEngine().Evaluate(nil)
	assert.Zero(t, report.Overview.StagesTotal)
	assert.Zero(t, report.Errors.Total)
	assert.Equal(t, 1.0, report.LoadBalanceScore)
	assert.Empty(t, report.Alerts)
}

func TestLoadBalanceScore(t *testing.T) {
	assert.Equal(t, 1.0, loadBalanceScore(nil))
	assert.Equal(t, 1.0, loadBalanceScore([]float64{0, 0, 0}), "all-zero counts are perfectly balanced")
	assert.Equal(t, 1.0, loadBalanceScore([]float64{5, 5, 5}))

	balanced := loadBalanceScore([]float64{5, 5, 6})
	skewed := loadBalanceScore([]float64{1, 1, 14})
	assert.Greater(t, balanced, skewed, "score must decrease as variance grows")
	assert.GreaterOrEqual(t, skewed, 0.0)
}

func TestEvaluatePerOrgJoin(t *testing.T) {
	start := time.Now().UTC()
	results := map[string]pipeline.StageResult{
		pipeline.StageFetch: stageResultAt(pipeline.StatusSuccess, start, time.Minute, map[string]pipeline.OrgStageResult{
			"a": {OrganizationID: "a", Status: pipeline.StatusSuccess, Processed: 6},
			"b": {OrganizationID: "b", Status: pipeline.StatusSuccess, Processed: 4},
		}),
		pipeline.StageProcess: stageResultAt(pipeline.StatusSuccess, start, time.Minute, map[string]pipeline.OrgStageResult{
			"a": {OrganizationID: "a", Status: pipeline.StatusSuccess, Processed: 6},
			"b": {OrganizationID: "b", Status: pipeline.StatusFailed, Errors: []string{"index timeout"}},
		}),
	}
	report := NewEngine().Evaluate(results)

	require.Len(t, report.PerOrg, 2)
	assert.Equal(t, 1.0, report.PerOrg["a"].SuccessRate)
	assert.Equal(t, 0.5, report.PerOrg["b"].SuccessRate)
	assert.Equal(t, 12, report.PerOrg["a"].ItemsProcessed)
	assert.Equal(t, 1, report.PerOrg["b"].ErrorCount)
}

func TestEvaluateErrorCategorization(t *testing.T) {
	cases := map[string]ErrorCategory{
		"dial tcp: connection refused":     CategoryConnectivity,
		"context deadline exceeded":        CategoryTimeout,
		"request timed out after 30s":      CategoryTimeout,
		"access denied for tenant":         CategoryPermission,
		"disk full, capacity exhausted":    CategoryResource,
		"failed to parse listing page":     CategoryDataFormat,
		"something unexpected happened":    CategoryGeneral,
	}
	for msg, want := range cases {
		assert.Equal(t, want, Categorize(msg), "message %q", msg)
	}
}

func TestEvaluateCriticalErrorsFlagged(t *testing.T) {
	results := map[string]pipeline.StageResult{
		pipeline.StageProcess: {
			Status:    pipeline.StatusFailed,
			Timestamp: time.Now().UTC(),
			Errors:    []string{"panic recovered in worker", "plain failure"},
		},
	}
	report := NewEngine().Evaluate(results)
	require.Len(t, report.Errors.CriticalErrors, 1)
	assert.Contains(t, report.Errors.CriticalErrors[0], "panic recovered")
	assert.Equal(t, 2, report.Errors.Total)
}

func TestEvaluateCriticalAlertOnLowSuccessRate(t *testing.T) {
	// 2 of 5 stages succeed: success rate 0.4, below the 0.5 threshold.
	start := time.Now().UTC()
	results := map[string]pipeline.StageResult{
		"s1": stageResultAt(pipeline.StatusSuccess, start, time.Second, nil),
		"s2": stageResultAt(pipeline.StatusSuccess, start, time.Second, nil),
		"s3": stageResultAt(pipeline.StatusFailed, start, time.Second, nil),
		"s4": stageResultAt(pipeline.StatusFailed, start, time.Second, nil),
		"s5": stageResultAt(pipeline.StatusFailed, start, time.Second, nil),
	}
	report := NewEngine().Evaluate(results)

	var found bool
	for _, a := range report.Alerts {
		if a.Metric == "pipeline_success_rate" {
			found = true
			assert.Equal(t, AlertCritical, a.Level)
			assert.InDelta(t, 0.4, a.Value, 1e-9)
		}
	}
	assert.True(t, found, "expected a critical alert on pipeline_success_rate")
}

func TestEvaluateDurationWarning(t *testing.T) {
	start := time.Now().UTC()
	results := map[string]pipeline.StageResult{
		pipeline.StageFetch: stageResultAt(pipeline.StatusSuccess, start, 10*time.Minute, nil),
	}
	report := NewEngine(WithDurationCeiling(5 * time.Minute)).Evaluate(results)

	var found bool
	for _, a := range report.Alerts {
		if a.Metric == "total_duration_seconds" {
			found = true
			assert.Equal(t, AlertWarning, a.Level)
		}
	}
	assert.True(t, found, "expected a duration warning")
}

func TestEvaluateScoreBounds(t *testing.T) {
	start := time.Now().UTC()
	good := map[string]pipeline.StageResult{
		pipeline.StageFetch: stageResultAt(pipeline.StatusSuccess, start, time.Second, map[string]pipeline.OrgStageResult{
			"a": {OrganizationID: "a", Status: pipeline.StatusSuccess, Processed: 5},
		}),
	}
	bad := map[string]pipeline.StageResult{
		pipeline.StageFetch: {
			Status:    pipeline.StatusFailed,
			Timestamp: start,
			Duration:  2 * time.Hour,
			Errors: []string{
				"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9", "e10", "e11",
			},
			PerOrg: map[string]pipeline.OrgStageResult{
				"a": {OrganizationID: "a", Status: pipeline.StatusFailed},
			},
		},
	}
	e := NewEngine(WithDurationCeiling(30 * time.Minute))

	goodScore := e.Evaluate(good).Score
	badScore := e.Evaluate(bad).Score
	assert.Equal(t, 1.0, goodScore)
	assert.GreaterOrEqual(t, badScore, 0.0)
	assert.LessOrEqual(t, badScore, 1.0)
	assert.Greater(t, goodScore, badScore)
}

func TestEvaluateRecommendations(t *testing.T) {
	start := time.Now().UTC()
	results := map[string]pipeline.StageResult{
		"s1": stageResultAt(pipeline.StatusFailed, start, 2*time.Hour, nil),
		"s2": stageResultAt(pipeline.StatusSuccess, start, time.Minute, nil),
	}
	report := NewEngine().Evaluate(results)
	assert.NotEmpty(t, report.Recommendations)
}
