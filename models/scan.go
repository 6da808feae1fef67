package models

import (
	"encoding/json"
	"time"
)

// ScanResult is the normalised report stored for an anonymous scan and
// returned to clients.
type ScanResult struct {
	ScanID        string                `json:"scan_id,omitempty"        yaml:"scan_id,omitempty"`
	AgentName     string                `json:"agent_name"               yaml:"agent_name"`
	RiskScore     *float64              `json:"risk_score,omitempty"     yaml:"risk_score,omitempty"`
	Findings      []Finding             `json:"findings"                 yaml:"findings"`
	GatedFindings []GatedFindingSummary `json:"gated_findings,omitzero"  yaml:"gated_findings,omitempty"`
	FindingsCount int                   `json:"findings_count"           yaml:"findings_count"`
	CriticalCount int                   `json:"critical_count"           yaml:"critical_count"`
	HighCount     int                   `json:"high_count"               yaml:"high_count"`
	MediumCount   int                   `json:"medium_count"             yaml:"medium_count"`
	LowCount      int                   `json:"low_count"                yaml:"low_count"`
	FilesScanned  int                   `json:"files_scanned"            yaml:"files_scanned"`
	// Governance is passed through from the backend untouched.
	Governance json.RawMessage `json:"governance,omitempty" yaml:"-"`

	StargazersCount int    `json:"stargazers_count" yaml:"stargazers_count"`
	DefaultBranch   string `json:"default_branch"   yaml:"default_branch"`
	Description     string `json:"description"      yaml:"description"`
	Language        string `json:"language"         yaml:"language"`

	ScannedAt time.Time `json:"scanned_at" yaml:"scanned_at"`
}

// AttachMetadata copies repository metadata onto the result.
func (r *ScanResult) AttachMetadata(meta RepoMetadata) {
	r.StargazersCount = meta.StargazersCount
	r.DefaultBranch = meta.DefaultBranch
	r.Description = meta.Description
	r.Language = meta.Language
}

// RecountFindings recomputes every derived count from r.Findings.
func (r *ScanResult) RecountFindings() {
	r.FindingsCount = len(r.Findings)
	r.CriticalCount, r.HighCount, r.MediumCount, r.LowCount = 0, 0, 0, 0
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			r.CriticalCount++
		case SeverityHigh:
			r.HighCount++
		case SeverityMedium:
			r.MediumCount++
		case SeverityLow:
			r.LowCount++
		}
	}
}

// AnonymousScan is a persisted scan report created without an account.
// Timestamps are fixed-width UTC text (see TimeLayout).
type AnonymousScan struct {
	ID              string  `json:"id"                 db:"id"`
	RepoURL         string  `json:"repo_url"           db:"repo_url"`
	RepoName        string  `json:"repo_name"          db:"repo_name"`
	ScanResult      string  `json:"scan_result"        db:"scan_result"` // JSON
	IPAddress       *string `json:"ip_address"         db:"ip_address"`
	CreatedAt       string  `json:"created_at"         db:"created_at"`
	ExpiresAt       string  `json:"expires_at"         db:"expires_at"`
	ClaimedByUserID *string `json:"claimed_by_user_id" db:"claimed_by_user_id"`
	ClaimedAt       *string `json:"claimed_at"         db:"claimed_at"`
	AccessCount     int     `json:"access_count"       db:"access_count"`
	LastAccessedAt  *string `json:"last_accessed_at"   db:"last_accessed_at"`
}

// TimeLayout is the storage format for AnonymousScan timestamps. Fixed width
// keeps lexical and chronological ordering identical in every SQL dialect.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Result decodes the stored scan_result JSON.
func (a *AnonymousScan) Result() (*ScanResult, error) {
	var r ScanResult
	if err := json.Unmarshal([]byte(a.ScanResult), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Claimed reports whether a user has claimed this scan.
func (a *AnonymousScan) Claimed() bool {
	return a.ClaimedByUserID != nil && *a.ClaimedByUserID != ""
}
