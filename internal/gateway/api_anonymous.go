package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/auth"
	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/internal/repository"
	"github.com/CosmoTheDev/anonscan/internal/store"
	"github.com/CosmoTheDev/anonscan/models"
)

// handleAnonymousScanPost runs a scan for {repo_url} or claims a report for
// {report_id, user_id}.
func (gw *Gateway) handleAnonymousScanPost(w http.ResponseWriter, r *http.Request) {
	var body scanOrClaimRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), anonscan.CodeInvalidURL)
		return
	}
	if body.isClaim() {
		gw.claimReport(w, r, body)
		return
	}
	gw.runScan(w, r, body)
}

func (gw *Gateway) runScan(w http.ResponseWriter, r *http.Request, body scanOrClaimRequest) {
	req := scanRequest{RepoURL: strings.TrimSpace(body.RepoURL)}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), anonscan.CodeInvalidURL)
		return
	}
	// Reject malformed URLs before the limiter touches the database.
	if _, _, err := repository.ParseRepoURL(req.RepoURL); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid GitHub repository URL", anonscan.CodeInvalidURL)
		return
	}

	ip := anonscan.ClientIP(r)
	release, err := gw.deps.Limiter.Acquire(r.Context(), ip)
	if err != nil {
		writeScanError(w, r, err)
		return
	}
	defer release()

	rep, err := gw.deps.Runner.Run(r.Context(), req.RepoURL, ip)
	if err != nil {
		writeScanError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		ReportID:   rep.ReportID,
		RepoName:   rep.RepoName,
		ScanResult: findings.Gate(rep.Result, isAuthenticated(r), gw.ungated),
		Cached:     rep.Cached,
		ScannedAt:  rep.ScannedAt,
	})
}

func (gw *Gateway) claimReport(w http.ResponseWriter, r *http.Request, body scanOrClaimRequest) {
	req := claimRequest{
		ReportID: strings.ToLower(strings.TrimSpace(body.ReportID)),
		UserID:   strings.TrimSpace(body.UserID),
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), anonscan.CodeInvalidURL)
		return
	}

	// With an identity provider configured only the signed-in user may
	// claim on their own behalf.
	if gw.deps.Verifier != nil {
		id := auth.IdentityFrom(r.Context())
		if id == nil || id.Subject != req.UserID {
			writeError(w, http.StatusUnauthorized, "Sign in as this user to claim the report", anonscan.CodeUnauthorized)
			return
		}
	}

	if err := gw.deps.Reports.Claim(r.Context(), req.ReportID, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Report not found or expired", anonscan.CodeNotFound)
			return
		}
		slog.Error("Claiming report failed", "report_id", req.ReportID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to claim report", anonscan.CodeScanFailed)
		return
	}
	slog.Info("Report claimed", "report_id", req.ReportID, "user_id", req.UserID)
	writeJSON(w, http.StatusOK, claimResponse{Success: true})
}

// handleGetReport returns a stored report, gated for anonymous callers.
func (gw *Gateway) handleGetReport(w http.ResponseWriter, r *http.Request) {
	q := reportQuery{ReportID: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("report_id")))}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report ID", anonscan.CodeInvalidURL)
		return
	}

	row, err := gw.deps.Reports.GetByID(r.Context(), q.ReportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Report not found or expired", anonscan.CodeNotFound)
			return
		}
		slog.Error("Loading report failed", "report_id", q.ReportID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load report", anonscan.CodeScanFailed)
		return
	}

	result, err := row.Result()
	if err != nil {
		slog.Error("Decoding stored report failed", "report_id", row.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load report", anonscan.CodeScanFailed)
		return
	}
	scannedAt, err := models.ParseTime(row.CreatedAt)
	if err != nil {
		scannedAt = result.ScannedAt
	}

	writeJSON(w, http.StatusOK, reportResponse{
		ReportID:   row.ID,
		RepoName:   row.RepoName,
		RepoURL:    row.RepoURL,
		ScanResult: findings.Gate(result, isAuthenticated(r), gw.ungated),
		ScannedAt:  scannedAt,
		Claimed:    row.Claimed(),
	})
}

func isAuthenticated(r *http.Request) bool {
	return auth.IdentityFrom(r.Context()) != nil
}
