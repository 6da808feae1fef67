package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler fires the cache warmer on a cron expression. A run that is still
// going when the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	expr   string
	warmer *Warmer

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

func newScheduler(expr string, warmer *Warmer) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		expr:   expr,
		warmer: warmer,
	}
}

// Start registers the warmer and starts the cron runner. An empty
// expression leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.expr == "" {
		slog.Info("Warmer schedule disabled")
		return nil
	}
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.expr, s.fire); err != nil {
		return fmt.Errorf("invalid warmer schedule %q: %w", s.expr, err)
	}
	s.cron.Start()
	slog.Info("Warmer scheduler started", "expr", s.expr, "repos", len(s.warmer.Repos()))
	return nil
}

// Stop halts the cron runner and waits for a running warm to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("Warmer still running, skipping scheduled run", "expr", s.expr)
		return
	}
	s.running = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	outcomes := s.warmer.Run(ctx)
	failed := 0
	for _, o := range outcomes {
		if o.Status != "ok" {
			failed++
		}
	}
	slog.Info("Scheduled cache warm finished", "repos", len(outcomes), "failed", failed)
}

// ValidateSchedule checks that expr is parseable by robfig/cron without
// adding it permanently to any runner.
func ValidateSchedule(expr string) error {
	tmp := cron.New()
	id, err := tmp.AddFunc(expr, func() {})
	if err != nil {
		return err
	}
	tmp.Remove(id)
	return nil
}
