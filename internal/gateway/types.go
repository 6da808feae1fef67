package gateway

import (
	"time"

	"github.com/CosmoTheDev/anonscan/models"
)

// scanOrClaimRequest is the POST body. repo_url selects a scan; report_id
// together with user_id selects a claim.
type scanOrClaimRequest struct {
	RepoURL  string `json:"repo_url"`
	ReportID string `json:"report_id"`
	UserID   string `json:"user_id"`
}

func (r scanOrClaimRequest) isClaim() bool {
	return r.RepoURL == "" && (r.ReportID != "" || r.UserID != "")
}

type scanRequest struct {
	RepoURL string `validate:"required"`
}

type claimRequest struct {
	ReportID string `validate:"required,uuid"`
	UserID   string `validate:"required,max=255"`
}

type reportQuery struct {
	ReportID string `validate:"required,uuid"`
}

// scanResponse answers a successful scan.
type scanResponse struct {
	ReportID   string             `json:"report_id"`
	RepoName   string             `json:"repo_name"`
	ScanResult *models.ScanResult `json:"scan_result"`
	Cached     bool               `json:"cached"`
	ScannedAt  time.Time          `json:"scanned_at"`
}

// reportResponse answers a report lookup.
type reportResponse struct {
	ReportID   string             `json:"report_id"`
	RepoName   string             `json:"repo_name"`
	RepoURL    string             `json:"repo_url"`
	ScanResult *models.ScanResult `json:"scan_result"`
	ScannedAt  time.Time          `json:"scanned_at"`
	Claimed    bool               `json:"claimed"`
}

type claimResponse struct {
	Success bool `json:"success"`
}

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// WarmOutcome is the result of warming one repository.
type WarmOutcome struct {
	RepoURL    string `json:"repo_url"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	ReportID   string `json:"report_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}
