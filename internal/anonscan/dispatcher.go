// Package anonscan runs the anonymous repository scan pipeline: resolve,
// fetch and extract, prioritise, scan, polish and persist.
package anonscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/backend"
	"github.com/CosmoTheDev/anonscan/internal/extract"
	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/internal/metrics"
	"github.com/CosmoTheDev/anonscan/internal/repository"
	"github.com/CosmoTheDev/anonscan/internal/store"
	"github.com/CosmoTheDev/anonscan/models"
	"golang.org/x/sync/singleflight"
)

// ScanStore is the persistence used by a run.
type ScanStore interface {
	FindFresh(ctx context.Context, repoName string, window time.Duration) (*models.AnonymousScan, error)
	Create(ctx context.Context, repoURL, repoName string, result *models.ScanResult, ip string) (*models.AnonymousScan, error)
}

// Scanner submits files to the scanning backend.
type Scanner interface {
	Scan(ctx context.Context, req backend.ScanRequest, files []models.ExtractedFile) (*models.ScanResult, error)
}

// Options tunes a Dispatcher. Zero values select defaults. RunTimeout bounds
// a whole run, including time spent after every waiting caller has gone away.
type Options struct {
	FreshWindow   time.Duration
	FetchTimeout  time.Duration
	RunTimeout    time.Duration
	Limits        extract.Limits
	MaxScanFiles  int
	Polish        findings.PolishOptions
	Coalesce      bool
	ClientVersion string
	Now           func() time.Time
}

func (o *Options) applyDefaults() {
	if o.FreshWindow <= 0 {
		o.FreshWindow = time.Hour
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 60 * time.Second
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	if o.Limits == (extract.Limits{}) {
		o.Limits = extract.DefaultLimits()
	}
	if o.MaxScanFiles <= 0 {
		o.MaxScanFiles = extract.DefaultMaxScanFiles
	}
	if o.Polish == (findings.PolishOptions{}) {
		o.Polish = findings.DefaultPolishOptions()
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "anonscan/dev"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Report is the outcome of a run.
type Report struct {
	ReportID  string
	RepoName  string
	RepoURL   string
	Result    *models.ScanResult
	ScannedAt time.Time
	Cached    bool
}

// Dispatcher executes scan runs.
type Dispatcher struct {
	source  repository.RepoSource
	scanner Scanner
	store   ScanStore
	opts    Options
	group   singleflight.Group
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(source repository.RepoSource, scanner Scanner, st ScanStore, opts Options) *Dispatcher {
	opts.applyDefaults()
	return &Dispatcher{source: source, scanner: scanner, store: st, opts: opts}
}

// Run scans repoURL on behalf of clientIP (empty for internal callers).
// Expected failures are returned as *ScanError; anything else is an
// unexpected fault. Rate limiting is the caller's job.
//
// With coalescing on, concurrent runs for the same repository share one
// execution and every caller but the one that ran it sees Cached=true.
func (d *Dispatcher) Run(ctx context.Context, repoURL, clientIP string) (*Report, error) {
	owner, repo, err := repository.ParseRepoURL(repoURL)
	if err != nil {
		d.count(CodeInvalidURL)
		return nil, newScanError(CodeInvalidURL, http.StatusBadRequest, "Invalid GitHub repository URL", err)
	}
	name := repository.NormalizeRepoName(owner, repo)

	var rep *Report
	if d.opts.Coalesce {
		ran := false
		ch := d.group.DoChan(name, func() (interface{}, error) {
			ran = true
			// Detached so one caller leaving does not fail the others;
			// RunTimeout still bounds it.
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.RunTimeout)
			defer cancel()
			return d.run(runCtx, repoURL, owner, repo, clientIP)
		})
		select {
		case <-ctx.Done():
			err := fmt.Errorf("waiting for scan of %s: %w", name, ctx.Err())
			d.countErr(err)
			return nil, err
		case res := <-ch:
			if res.Err != nil {
				d.countErr(res.Err)
				return nil, res.Err
			}
			shared := *res.Val.(*Report)
			if !ran {
				shared.Cached = true
			}
			rep = &shared
		}
	} else {
		runCtx, cancel := context.WithTimeout(ctx, d.opts.RunTimeout)
		rep, err = d.run(runCtx, repoURL, owner, repo, clientIP)
		cancel()
		if err != nil {
			d.countErr(err)
			return nil, err
		}
	}

	if rep.Cached {
		d.count("cached")
	} else {
		d.count("ok")
	}
	return rep, nil
}

func (d *Dispatcher) run(ctx context.Context, repoURL, owner, repo, clientIP string) (*Report, error) {
	name := repository.NormalizeRepoName(owner, repo)
	log := slog.With("repo", name)

	cached, err := d.store.FindFresh(ctx, name, d.opts.FreshWindow)
	switch {
	case err == nil:
		result, err := cached.Result()
		if err != nil {
			return nil, fmt.Errorf("decoding cached report %s: %w", cached.ID, err)
		}
		log.Debug("Serving cached scan", "report_id", cached.ID)
		return &Report{
			ReportID:  cached.ID,
			RepoName:  cached.RepoName,
			RepoURL:   cached.RepoURL,
			Result:    result,
			ScannedAt: parseTimeOr(cached.CreatedAt, result.ScannedAt),
			Cached:    true,
		}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("cache lookup for %s: %w", name, err)
	}

	meta, err := d.source.GetRepoMetadata(ctx, owner, repo)
	if err != nil {
		return nil, newScanError(CodeCloneFailed, http.StatusBadRequest, "Repository not found or is private", err)
	}

	files, err := d.fetchFiles(ctx, owner, repo, meta.DefaultBranch)
	if err != nil {
		return nil, err
	}

	selected := extract.Prioritize(files, d.opts.MaxScanFiles)
	if len(selected) == 0 {
		return nil, newScanError(CodeScanFailed, http.StatusBadRequest, "No scannable files found in repository", nil)
	}
	log.Info("Submitting files to scan backend", "extracted", len(files), "selected", len(selected))

	result, err := d.scanner.Scan(ctx, backend.NewScanRequest(d.opts.ClientVersion, name), selected)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusGatewayTimeout || se.StatusCode == http.StatusRequestTimeout {
				return nil, newScanError(CodeRepoTooLarge, http.StatusBadGateway,
					"Repository is too large to scan anonymously. Use the CLI to scan large repositories.", err)
			}
			return nil, newScanError(CodeScanFailed, http.StatusBadGateway, "Scan backend returned an error", err)
		}
		return nil, fmt.Errorf("scanning %s: %w", name, err)
	}

	if result.AgentName == "" {
		result.AgentName = name
	}
	result.AttachMetadata(*meta)
	result.ScannedAt = d.opts.Now().UTC()
	findings.Polish(result, d.opts.Polish)

	row, err := d.store.Create(ctx, repoURL, name, result, clientIP)
	if err != nil {
		return nil, fmt.Errorf("persisting scan for %s: %w", name, err)
	}
	log.Info("Anonymous scan complete", "report_id", row.ID, "findings", result.FindingsCount)

	return &Report{
		ReportID:  row.ID,
		RepoName:  name,
		RepoURL:   repoURL,
		Result:    result,
		ScannedAt: result.ScannedAt,
	}, nil
}

// fetchFiles streams and extracts the tarball under the fetch deadline.
func (d *Dispatcher) fetchFiles(ctx context.Context, owner, repo, branch string) ([]models.ExtractedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.FetchTimeout)
	defer cancel()

	body, err := d.source.OpenTarball(ctx, owner, repo, branch)
	if err != nil {
		if errors.Is(err, repository.ErrRepoNotFound) {
			return nil, newScanError(CodeCloneFailed, http.StatusNotFound, "Repository archive not found", err)
		}
		return nil, fmt.Errorf("fetching tarball: %w", err)
	}
	defer body.Close()

	files, stats, err := extract.Extract(body, d.opts.Limits)
	if err != nil {
		return nil, fmt.Errorf("extracting tarball: %w", err)
	}
	metrics.ExtractedFiles.Observe(float64(stats.Kept))
	metrics.ExtractedBytes.Observe(float64(stats.KeptBytes))
	slog.Debug("Tarball extracted",
		"repo", owner+"/"+repo,
		"entries", stats.Entries,
		"kept", stats.Kept,
		"binary", stats.Binary,
		"oversized", stats.Oversized,
		"cap_reached", stats.CapReached,
	)
	return files, nil
}

func (d *Dispatcher) count(outcome string) {
	metrics.ScansTotal.WithLabelValues(outcome).Inc()
}

func (d *Dispatcher) countErr(err error) {
	d.count(AsScanError(err).Code)
}

func parseTimeOr(s string, fallback time.Time) time.Time {
	t, err := models.ParseTime(s)
	if err != nil {
		return fallback
	}
	return t
}
