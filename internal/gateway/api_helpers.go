package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// --- HTTP response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeScanError answers with the taxonomy entry for err. Unexpected errors
// are logged here and surfaced as a generic scan_failed.
func writeScanError(w http.ResponseWriter, r *http.Request, err error) {
	se := anonscan.AsScanError(err)
	if se.Status >= http.StatusInternalServerError {
		slog.Error("Anonymous scan request failed", "path", r.URL.Path, "code", se.Code, "error", err)
	} else {
		slog.Info("Anonymous scan request rejected", "path", r.URL.Path, "code", se.Code, "error", err)
	}
	if se.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(se.RetryAfter))
	}
	writeJSON(w, se.Status, errorResponse{Error: se.Message, Code: se.Code, RetryAfter: se.RetryAfter})
}

// decodeBody reads a JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a UUID"
	default:
		return field + " is invalid"
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "RepoURL":
		return "repo_url"
	case "ReportID":
		return "report_id"
	case "UserID":
		return "user_id"
	}
	return field
}
