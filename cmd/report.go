package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/internal/store"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reportOutputFmt string
	reportGated     bool
	reportClaimUser string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show or claim stored anonymous reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print a stored report (counts as a view)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

var reportClaimCmd = &cobra.Command{
	Use:   "claim <report-id>",
	Short: "Attach a report to a user account",
	Long: `Records the given user as the owner of the report. Claiming again,
by the same or another user, overwrites the previous claim.`,
	Args: cobra.ExactArgs(1),
	RunE: runReportClaim,
}

func init() {
	reportShowCmd.Flags().StringVar(&reportOutputFmt, "output", "table", "Output format: table|json|yaml")
	reportShowCmd.Flags().BoolVar(&reportGated, "gated", false, "Show the report as an anonymous visitor would see it")
	reportClaimCmd.Flags().StringVar(&reportClaimUser, "user", "", "User id claiming the report (required)")
	_ = reportClaimCmd.MarkFlagRequired("user")

	reportCmd.AddCommand(reportShowCmd, reportClaimCmd)
}

func parseReportID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid report id %q", raw)
	}
	return id.String(), nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id, err := parseReportID(args[0])
	if err != nil {
		return err
	}

	cfg, svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	row, err := svc.Store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("report %s not found or expired", id)
	}
	if err != nil {
		return err
	}
	result, err := row.Result()
	if err != nil {
		return fmt.Errorf("decoding report %s: %w", id, err)
	}

	out := reportOutput{
		ReportID:    row.ID,
		RepoName:    row.RepoName,
		RepoURL:     row.RepoURL,
		Claimed:     row.Claimed(),
		AccessCount: row.AccessCount,
		ScannedAt:   result.ScannedAt,
		ScanResult:  findings.Gate(result, !reportGated, cfg.Scan.UngatedFindings),
	}
	if t, err := models.ParseTime(row.CreatedAt); err == nil {
		out.ScannedAt = t
	}
	if t, err := models.ParseTime(row.ExpiresAt); err == nil {
		out.ExpiresAt = &t
	}
	return writeReport(os.Stdout, out, reportOutputFmt)
}

func runReportClaim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id, err := parseReportID(args[0])
	if err != nil {
		return err
	}
	user := strings.TrimSpace(reportClaimUser)
	if user == "" {
		return errors.New("--user must not be empty")
	}

	_, svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := svc.Store.Claim(ctx, id, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("report %s not found or expired", id)
		}
		return err
	}
	fmt.Println(okStyle.Render("✓") + " Report " + id + " claimed by " + user)
	return nil
}
