package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"deepscan/internal/logging"
)

// Pruner periodically deletes records older than a retention window. Extra
// maintenance tasks, such as log retention, run on the same schedule.
type Pruner struct {
	store     *Store
	retention time.Duration
	schedule  string
	tasks     []func(context.Context)
	logger    *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner validates schedule (standard five-field cron or a descriptor
// such as "@daily") and returns a stopped pruner. retentionDays <= 0
// disables record pruning; extra tasks still run.
func NewPruner(store *Store, retentionDays int, schedule string, logger *slog.Logger, tasks ...func(context.Context)) (*Pruner, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return nil, errors.New("prune schedule is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", schedule, err)
	}
	var retention time.Duration
	if retentionDays > 0 {
		retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &Pruner{
		store:     store,
		retention: retention,
		schedule:  schedule,
		tasks:     tasks,
		logger:    logging.NewComponentLogger(logger, "history-pruner"),
	}, nil
}

// Start schedules the pruner. It stops when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pruner already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() { p.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	c.Start()
	p.cron = c
	p.running = true
	p.logger.Info("history pruning scheduled",
		logging.String("schedule", p.schedule),
		logging.Duration("retention", p.retention),
	)
	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.running = false
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce prunes immediately and returns the number of records removed.
func (p *Pruner) RunOnce(ctx context.Context) int64 {
	var removed int64
	if p.store != nil && p.retention > 0 {
		cutoff := time.Now().Add(-p.retention)
		n, err := p.store.Prune(ctx, cutoff)
		if err != nil {
			logging.WarnWithContext(p.logger, "history prune failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history database connectivity"),
				logging.String(logging.FieldImpact, "old detection records retained until next run"),
			)
		} else {
			removed = n
			if n > 0 {
				p.logger.Info("pruned detection history",
					logging.Int64("removed", n),
					logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
					logging.String(logging.FieldEventType, "history_pruned"),
				)
			}
		}
	}
	for _, task := range p.tasks {
		task(ctx)
	}
	return removed
}
