package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/metrics"
)

// scanRunner is the part of the dispatcher the warmer needs.
type scanRunner interface {
	Run(ctx context.Context, repoURL, clientIP string) (*anonscan.Report, error)
}

// Warmer keeps the fresh-scan cache populated for a fixed list of example
// repositories so first visitors get an instant report.
type Warmer struct {
	runner scanRunner
	repos  []string
	now    func() time.Time
}

// NewWarmer returns a Warmer over repos.
func NewWarmer(runner scanRunner, repos []string) *Warmer {
	return &Warmer{runner: runner, repos: repos, now: time.Now}
}

// Repos returns the configured allowlist.
func (w *Warmer) Repos() []string { return w.repos }

// Run scans every repository in order with no client IP, so the hourly
// allowance never applies. A failing repository is recorded and the loop
// moves on; Run itself never fails.
func (w *Warmer) Run(ctx context.Context) []WarmOutcome {
	outcomes := make([]WarmOutcome, 0, len(w.repos))
	for _, url := range w.repos {
		if ctx.Err() != nil {
			break
		}
		start := w.now()
		rep, err := w.runner.Run(ctx, url, "")
		out := WarmOutcome{RepoURL: url, DurationMS: w.now().Sub(start).Milliseconds()}
		if err != nil {
			se := anonscan.AsScanError(err)
			out.Status = "error"
			out.Code = se.Code
			slog.Warn("Cache warm failed", "repo_url", url, "code", se.Code, "duration_ms", out.DurationMS, "error", err)
		} else {
			out.Status = "ok"
			out.Cached = rep.Cached
			out.ReportID = rep.ReportID
			slog.Info("Cache warmed", "repo_url", url, "cached", rep.Cached, "report_id", rep.ReportID, "duration_ms", out.DurationMS)
		}
		metrics.WarmerOutcomes.WithLabelValues(out.Status).Inc()
		outcomes = append(outcomes, out)
	}
	return outcomes
}
