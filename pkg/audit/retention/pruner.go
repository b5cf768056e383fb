// Package retention enforces how long audit records are kept.
package retention

import (
	"context"
	"fmt"
	"log/slog"

	"modex-hq/aegis/pkg/audit"
	"modex-hq/aegis/pkg/config"
)

// Pruner enforces the retention policy on the decision audit log.
type Pruner struct {
	storage audit.Storage
	cfg     config.RetentionConfig
	logger  *slog.Logger
	clock   Clock
}

// NewPruner creates a retention pruner.
func NewPruner(storage audit.Storage, cfg config.RetentionConfig) *Pruner {
	return &Pruner{
		storage: storage,
		cfg:     cfg,
		logger:  slog.Default().With("component", "audit.retention"),
		clock:   systemClock{},
	}
}

// Prune deletes records outside the retention policy.
//
// Pruning happens in two phases:
//  1. Age-based: delete records older than retention_days
//  2. Count-based: if total records > max_records, delete oldest
//
// Both can apply together. Returns the total number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.cfg.RetentionDays > 0 {
		cutoff := p.clock.Now().AddDate(0, 0, -p.cfg.RetentionDays)
		deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Info("pruned audit records by age",
			"deleted_count", deleted,
			"retention_days", p.cfg.RetentionDays,
		)
	}

	if p.cfg.MaxRecords > 0 {
		count, err := p.storage.Count(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
		if excess := count - p.cfg.MaxRecords; excess > 0 {
			deleted, err := p.storage.DeleteOldest(ctx, excess)
			if err != nil {
				return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
			}
			totalDeleted += deleted
			p.logger.Info("pruned audit records by count",
				"deleted_count", deleted,
				"max_records", p.cfg.MaxRecords,
			)
		}
	}

	return totalDeleted, nil
}

// Schedule returns the configured cron expression.
func (p *Pruner) Schedule() string {
	return p.cfg.PruneSchedule
}
