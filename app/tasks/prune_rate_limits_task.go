package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// PruneRateLimitsTask removes cooldown entries that can no longer deny anyone.
type PruneRateLimitsTask struct {
	Task
	pruner RateLimitPruner
}

func NewPruneRateLimitsTask(pruner RateLimitPruner) *PruneRateLimitsTask {
	return &PruneRateLimitsTask{
		Task:   NewTask(TaskTypePruneRateLimits, "rate_limits"),
		pruner: pruner,
	}
}

func (t *PruneRateLimitsTask) Execute(ctx context.Context) error {
	deleted, err := t.pruner.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune rate limits: %w", err)
	}

	if deleted > 0 {
		slog.Debug("Pruned expired rate limit entries", "deleted", deleted)
	}
	return nil
}
