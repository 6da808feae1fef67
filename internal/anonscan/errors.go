package anonscan

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeInvalidURL   = "invalid_url"
	CodeCloneFailed  = "clone_failed"
	CodeRateLimited  = "rate_limited"
	CodeScanFailed   = "scan_failed"
	CodeRepoTooLarge = "repo_too_large"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
)

// RetryAfterSeconds is sent with every rate_limited answer.
const RetryAfterSeconds = 3600

// ScanError is an expected pipeline failure with a client-facing message,
// a machine-readable code and the HTTP status to answer with. Any other
// error from the pipeline is an unexpected fault.
type ScanError struct {
	Message    string
	Code       string
	Status     int
	RetryAfter int
	Err        error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *ScanError) Unwrap() error { return e.Err }

func newScanError(code string, status int, msg string, err error) *ScanError {
	return &ScanError{Message: msg, Code: code, Status: status, Err: err}
}

// AsScanError maps err onto the client taxonomy. Unexpected errors become
// scan_failed/500 with a generic message.
func AsScanError(err error) *ScanError {
	var se *ScanError
	if errors.As(err, &se) {
		return se
	}
	return newScanError(CodeScanFailed, http.StatusInternalServerError, "Scan failed unexpectedly", err)
}
