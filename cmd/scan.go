package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/spf13/cobra"
)

var (
	scanRepoURL   string
	scanOutputFmt string
	scanGated     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a public GitHub repository",
	Long: `Runs the anonymous scan pipeline once: resolve the repository, fetch
and extract its tarball, submit the prioritised files to the backend and
store the report. A report created within the last hour is reused.

Examples:
  anonscan scan --repo https://github.com/example/myapp
  anonscan scan --repo https://github.com/example/myapp --output json
  anonscan scan --repo https://github.com/example/myapp --gated`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRepoURL, "repo", "", "Repository URL to scan (required)")
	scanCmd.Flags().StringVar(&scanOutputFmt, "output", "table", "Output format: table|json|yaml")
	scanCmd.Flags().BoolVar(&scanGated, "gated", false, "Show the report as an anonymous visitor would see it")
	_ = scanCmd.MarkFlagRequired("repo")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	slog.Info("Starting scan", "repo", scanRepoURL, "backend", cfg.Backend.APIBaseURL)

	// Terminal runs are not attributed to an address, so the hourly
	// allowance does not apply.
	rep, err := svc.Dispatcher.Run(ctx, scanRepoURL, "")
	if err != nil {
		se := anonscan.AsScanError(err)
		slog.Debug("Scan failed", "error", err)
		return fmt.Errorf("%s (%s)", se.Message, se.Code)
	}

	return writeReport(os.Stdout, reportOutput{
		ReportID:   rep.ReportID,
		RepoName:   rep.RepoName,
		RepoURL:    rep.RepoURL,
		Cached:     rep.Cached,
		ScannedAt:  rep.ScannedAt,
		ScanResult: findings.Gate(rep.Result, !scanGated, cfg.Scan.UngatedFindings),
	}, scanOutputFmt)
}
