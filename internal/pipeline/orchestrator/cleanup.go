package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/logger"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/redis"
)

// RunKey builds a run-scoped Redis key. All scratch state a run writes
// lives under "run:<id>:" so the cleanup stage can remove it with one
// pattern flush.
func RunKey(runID string, parts ...string) string {
	key := "run:" + runID
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Cleaner removes a run's scratch keys after the terminal stages.
type Cleaner struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewCleaner creates a Cleaner. A nil Redis client turns cleanup into a
// no-op that still reports success.
func NewCleaner(client *redis.Client) *Cleaner {
	return &Cleaner{
		redis:  client,
		logger: logger.WithComponent("cleanup"),
	}
}

// Run flushes every key under the run's prefix. Cleanup failure is
// reported in the result but never fails the run.
func (c *Cleaner) Run(ctx context.Context, runID string) pipeline.CleanupResult {
	result := pipeline.CleanupResult{Status: pipeline.StatusSuccess}
	if c.redis == nil {
		return result
	}

	flushed, err := c.redis.FlushByPattern(ctx, RunKey(runID)+":*")
	result.KeysFlushed = flushed
	if err != nil {
		result.Status = pipeline.StatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("flushing run keys: %v", err))
		c.logger.Warn("cleanup incomplete", "run_id", runID, "flushed", flushed, "error", err)
		return result
	}
	c.logger.Info("run keys flushed", "run_id", runID, "flushed", flushed)
	return result
}
