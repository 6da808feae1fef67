package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/auth"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/CosmoTheDev/anonscan/internal/gateway"
	"github.com/spf13/cobra"
)

var (
	serveListen string
	serveLogDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the anonymous scan gateway",
	Long: `Starts the HTTP gateway for anonymous repository scans and, when
warmer.schedule is set, the in-process cache warmer.

The database is opened on the first request and the schema is applied
once, so the gateway comes up even while the database is still starting.

API reference:
  POST /api/anonymous-scan              scan ({"repo_url":"..."}) or claim
                                        ({"report_id":"...","user_id":"..."})
  GET  /api/anonymous-scan?report_id=   fetch a stored report
  GET  /api/cron/warm-cache             run the cache warmer (bearer secret)
  GET  /health                          liveness and database check
  GET  /metrics                         Prometheus metrics

Example schedules:
  "*/30 * * * *"  every 30 minutes
  "@hourly"       once an hour`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "",
		"address to listen on (default 127.0.0.1:6080, overrides config)")
	serveCmd.Flags().StringVar(&serveLogDir, "log-dir", "",
		"directory to write gateway logs for later inspection (default ~/"+config.DefaultLogDir+")")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveListen != "" {
		cfg.Gateway.ListenAddr = serveListen
	}
	if cfg.Warmer.Schedule != "" {
		if err := gateway.ValidateSchedule(cfg.Warmer.Schedule); err != nil {
			return fmt.Errorf("invalid warmer.schedule %q: %w", cfg.Warmer.Schedule, err)
		}
	}

	logDir := serveLogDir
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		logDir = filepath.Join(home, config.DefaultLogDir)
	}
	logFilePath, closeLog, err := setupGatewayFileLogger(logDir)
	if err != nil {
		return fmt.Errorf("initialising gateway logger: %w", err)
	}
	defer closeLog()

	db := database.NewLazy(cfg.Database)
	defer db.Close()

	svc, err := anonscan.NewService(cfg, db, "anonscan/"+Version)
	if err != nil {
		return err
	}
	verifier, err := auth.New(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring token verification: %w", err)
	}

	fmt.Printf("anonscan gateway starting\n")
	fmt.Printf("  API        : http://%s/api/anonymous-scan\n", cfg.Gateway.ListenAddr)
	fmt.Printf("  Database   : %s\n", cfg.Database.Driver)
	fmt.Printf("  Backend    : %s\n", cfg.Backend.APIBaseURL)
	fmt.Printf("  Auth       : %s\n", authMode(cfg.Auth))
	fmt.Printf("  Warmer     : %s\n", scheduleLabel(cfg.Warmer.Schedule))
	fmt.Printf("  Logs       : %s\n\n", logFilePath)
	fmt.Println("Press Ctrl+C to stop gracefully.")
	fmt.Println()

	slog.Info("gateway logger initialised", "file", logFilePath)
	gw := gateway.New(cfg, gateway.DepsFromService(svc, verifier, db.Ping))
	return gw.Start(ctx)
}

func authMode(a config.AuthConfig) string {
	switch {
	case a.JWKSURL != "":
		return "JWKS " + a.JWKSURL
	case a.HMACSecret != "":
		return "HMAC"
	default:
		return "disabled (every caller is anonymous)"
	}
}

func scheduleLabel(expr string) string {
	if expr == "" {
		return "cron endpoint only"
	}
	return expr
}

func setupGatewayFileLogger(logDir string) (string, func(), error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	ts := time.Now().UTC().Format("20060102-150405")
	runLogPath := filepath.Join(logDir, fmt.Sprintf("gateway-%s.log", ts))
	runFile, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("opening run log file: %w", err)
	}

	latestPath := filepath.Join(logDir, "gateway.log")
	latestFile, err := os.OpenFile(latestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = runFile.Close()
		return "", nil, fmt.Errorf("opening latest log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, runFile, latestFile), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	cleanup := func() {
		_ = latestFile.Close()
		_ = runFile.Close()
	}
	return runLogPath, cleanup, nil
}
