package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CosmoTheDev/anonscan/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.yaml.in/yaml/v3"
)

// reportOutput is what scan and report print in json and yaml mode. It
// mirrors the HTTP response shape.
type reportOutput struct {
	ReportID    string             `json:"report_id"              yaml:"report_id"`
	RepoName    string             `json:"repo_name"              yaml:"repo_name"`
	RepoURL     string             `json:"repo_url,omitempty"     yaml:"repo_url,omitempty"`
	Cached      bool               `json:"cached"                 yaml:"cached"`
	Claimed     bool               `json:"claimed"                yaml:"claimed"`
	AccessCount int                `json:"access_count,omitempty" yaml:"access_count,omitempty"`
	ScannedAt   time.Time          `json:"scanned_at"             yaml:"scanned_at"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"   yaml:"expires_at,omitempty"`
	ScanResult  *models.ScanResult `json:"scan_result"            yaml:"scan_result"`
}

func writeReport(w io.Writer, out reportOutput, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		printReportTable(w, out)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (valid: table, json, yaml)", format)
	}
}

func printReportTable(w io.Writer, out reportOutput) {
	r := out.ScanResult
	fmt.Fprintln(w, titleStyle.Render("anonscan report · "+out.RepoName))
	fmt.Fprintln(w)

	row := func(label, value string) {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
	}
	row("Report", out.ReportID)
	if out.RepoURL != "" {
		row("Repository", out.RepoURL)
	}
	scanned := humanize.Time(out.ScannedAt)
	if out.Cached {
		scanned += dimStyle.Render(" (cached)")
	}
	row("Scanned", scanned)
	if out.ExpiresAt != nil {
		row("Expires", humanize.Time(*out.ExpiresAt))
	}
	if out.AccessCount > 0 {
		row("Views", humanize.Comma(int64(out.AccessCount)))
	}
	if out.Claimed {
		row("Claimed", okStyle.Render("yes"))
	}
	if r.Language != "" || r.StargazersCount > 0 {
		row("Repo", fmt.Sprintf("%s · %s stars · branch %s",
			orDash(r.Language), humanize.Comma(int64(r.StargazersCount)), orDash(r.DefaultBranch)))
	}
	row("Files", humanize.Comma(int64(r.FilesScanned))+" scanned")
	if r.RiskScore != nil {
		row("Risk score", fmt.Sprintf("%.1f", *r.RiskScore))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		headStyle.Render(fmt.Sprintf("%d findings", r.FindingsCount)),
		criticalStyle.Render(fmt.Sprintf("%d critical", r.CriticalCount)),
		highStyle.Render(fmt.Sprintf("%d high", r.HighCount)),
		mediumStyle.Render(fmt.Sprintf("%d medium", r.MediumCount)),
		lowStyle.Render(fmt.Sprintf("%d low", r.LowCount)),
	)
	fmt.Fprintln(w)

	if len(r.Findings) == 0 && len(r.GatedFindings) == 0 {
		fmt.Fprintln(w, okStyle.Render("No findings."))
		return
	}

	for _, f := range r.Findings {
		sev := severityStyle(f.Severity).Render(fmt.Sprintf("%-8s", f.Severity))
		loc := f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		fmt.Fprintf(w, "%s %s %s\n", sev, findingTitle(f.DisplayTitle, f.PatternID), dimStyle.Render(loc))
		if f.Message != "" {
			fmt.Fprintf(w, "         %s\n", f.Message)
		}
		if f.Remediation != nil {
			for i, step := range f.Remediation.Steps {
				fmt.Fprintf(w, "         %s %s\n", dimStyle.Render(fmt.Sprintf("%d.", i+1)), step)
			}
		}
	}

	if len(r.GatedFindings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d more findings are available after signing in:", len(r.GatedFindings))))
		for _, g := range r.GatedFindings {
			sev := severityStyle(g.Severity).Render(fmt.Sprintf("%-8s", g.Severity))
			fmt.Fprintf(w, "%s %s\n", sev, findingTitle(g.DisplayTitle, g.PatternID))
		}
	}
}

func findingTitle(display, pattern string) string {
	if display != "" {
		return display
	}
	return pattern
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
