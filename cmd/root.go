package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "anonscan",
	Short: "Anonymous security scans of public GitHub repositories",
	Long: `anonscan fetches a public GitHub repository as a tarball, picks the
files most worth scanning, submits them to the scanning backend and keeps
the report for 30 days so it can be shared and later claimed by an account.

Get started:
  anonscan doctor     Verify configuration, database and backend
  anonscan scan       Scan a repository once from the terminal
  anonscan serve      Start the HTTP gateway with the cache warmer
  anonscan report     Show or claim a stored report`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.anonscan/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		scanCmd,
		reportCmd,
		warmCmd,
		migrateCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}

// openService loads config, opens and migrates the database and wires the
// scan pipeline. The returned close func releases the database.
func openService(ctx context.Context) (*config.Config, *anonscan.Service, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	svc, err := anonscan.NewService(cfg, db, "anonscan/"+Version)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return cfg, svc, func() { _ = db.Close() }, nil
}
