package anonscan

import (
	"fmt"

	"github.com/CosmoTheDev/anonscan/internal/backend"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/CosmoTheDev/anonscan/internal/extract"
	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/internal/repository"
	"github.com/CosmoTheDev/anonscan/internal/store"
)

// Service bundles the collaborators of the scan pipeline built from config.
type Service struct {
	Dispatcher *Dispatcher
	Store      *store.Store
	Limiter    *RateLimiter
	GitHub     *repository.GitHubClient
	Backend    *backend.Client
}

// NewService wires the GitHub client, backend client, store, limiter and
// dispatcher from cfg on top of db.
func NewService(cfg *config.Config, db database.DB, clientVersion string) (*Service, error) {
	gh, err := repository.NewGitHubClient(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	bc := backend.New(cfg.Backend)

	st := store.New(db, store.Options{
		Retention: cfg.Scan.Retention,
		L1Size:    cfg.Cache.L1Size,
		L1TTL:     cfg.Cache.L1TTL,
	})

	d := NewDispatcher(gh, bc, st, Options{
		FreshWindow:  cfg.Cache.FreshWindow,
		FetchTimeout: cfg.Extract.FetchTimeout,
		RunTimeout:   cfg.Scan.RunTimeout,
		Limits: extract.Limits{
			MaxFiles:      cfg.Extract.MaxFiles,
			MaxFileBytes:  cfg.Extract.MaxFileBytes,
			MaxTotalBytes: cfg.Extract.MaxTotalBytes,
		},
		MaxScanFiles: cfg.Scan.MaxFiles,
		Polish: findings.PolishOptions{
			MinConfidence:       cfg.Scan.MinConfidence,
			MaxRemediationSteps: cfg.Scan.MaxRemediationSteps,
		},
		Coalesce:      cfg.Scan.Coalesce,
		ClientVersion: clientVersion,
	})

	return &Service{
		Dispatcher: d,
		Store:      st,
		Limiter:    NewRateLimiter(st, cfg.RateLimit.ScansPerHour),
		GitHub:     gh,
		Backend:    bc,
	}, nil
}
