// Package gateway serves the anonymous scan HTTP API and runs the cache
// warmer schedule.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/auth"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/internal/store"
	"github.com/CosmoTheDev/anonscan/models"
)

// reportStore is the persistence the API reads and claims through.
type reportStore interface {
	GetByID(ctx context.Context, id string) (*models.AnonymousScan, error)
	Claim(ctx context.Context, id, userID string) error
}

// scanLimiter admits scans per client IP.
type scanLimiter interface {
	Acquire(ctx context.Context, ip string) (release func(), err error)
}

// Deps are the collaborators behind the HTTP API.
type Deps struct {
	Runner   scanRunner
	Reports  reportStore
	Limiter  scanLimiter
	Verifier *auth.Verifier
	// Ping reports backing-store health for /health; nil skips the check.
	Ping func(ctx context.Context) error
}

// DepsFromService adapts an anonscan.Service.
func DepsFromService(svc *anonscan.Service, verifier *auth.Verifier, ping func(context.Context) error) Deps {
	return Deps{
		Runner:   svc.Dispatcher,
		Reports:  svc.Store,
		Limiter:  svc.Limiter,
		Verifier: verifier,
		Ping:     ping,
	}
}

var _ reportStore = (*store.Store)(nil)

// Gateway is the long-running daemon that combines:
//   - the anonymous scan REST API
//   - the cron-driven cache warmer
type Gateway struct {
	cfg       *config.Config
	deps      Deps
	warmer    *Warmer
	scheduler *Scheduler
	traffic   *trafficLimiter
	ungated   int
	startedAt time.Time
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, deps Deps) *Gateway {
	warmer := NewWarmer(deps.Runner, cfg.Warmer.Repos)
	ungated := cfg.Scan.UngatedFindings
	if ungated <= 0 {
		ungated = findings.DefaultUngated
	}
	return &Gateway{
		cfg:       cfg,
		deps:      deps,
		warmer:    warmer,
		scheduler: newScheduler(cfg.Warmer.Schedule, warmer),
		traffic:   newTrafficLimiter(cfg.RateLimit.APIRPS, cfg.RateLimit.APIBurst),
		ungated:   ungated,
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP handler with every route and middleware.
func (gw *Gateway) Handler() http.Handler { return buildHandler(gw) }

// Start runs the scheduler and the HTTP server until ctx is cancelled, then
// shuts both down gracefully.
func (gw *Gateway) Start(ctx context.Context) error {
	addr := gw.cfg.Gateway.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:6080"
	}

	// 1. Start scheduler.
	if err := gw.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	// 2. HTTP server. Scans can take minutes, so only headers get a tight
	// read deadline.
	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shut down HTTP server when ctx is cancelled.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		timeout := gw.cfg.Gateway.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway: shutdown incomplete", "error", err)
		}
		gw.scheduler.Stop()
		gw.traffic.Stop()
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		gw.scheduler.Stop()
		return fmt.Errorf("http server: %w", err)
	}
	<-done
	return nil
}
