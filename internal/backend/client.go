package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/metrics"
	"github.com/CosmoTheDev/anonscan/models"
)

// DefaultTimeout bounds one scan call; there are no retries.
const DefaultTimeout = 180 * time.Second

// maxResponseBytes caps how much of a backend answer is read.
const maxResponseBytes = 32 << 20

// Client submits files to the scanning backend.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// New returns a Client configured from cfg.
func New(cfg config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		// The per-call context carries the deadline; the client has none so
		// a slow upload is not cut off twice.
		http: &http.Client{},
	}
}

// Scan posts req and files to {base}/api/v1/scan as multipart/form-data and
// returns the decoded result with severities normalised. The body is
// streamed, so files are never copied into a second buffer.
func (c *Client) Scan(ctx context.Context, req ScanRequest, files []models.ExtractedFile) (*models.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeMultipart(mw, req, files))
	}()
	defer pr.Close()

	start := time.Now()
	b, status, err := c.do(ctx, http.MethodPost, "/api/v1/scan", mw.FormDataContentType(), pr)
	metrics.BackendDuration.WithLabelValues(statusLabel(status, err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var out models.ScanResult
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding scan response: %w", err)
	}
	normalizeSeverities(&out)
	if out.FilesScanned == 0 {
		out.FilesScanned = len(files)
	}
	return &out, nil
}

// Ping calls GET {base}/health.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	return err
}

func writeMultipart(mw *multipart.Writer, req ScanRequest, files []models.ExtractedFile) error {
	meta, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request part: %w", err)
	}
	if err := mw.WriteField("request", string(meta)); err != nil {
		return fmt.Errorf("writing request part: %w", err)
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Path)
		if err != nil {
			return fmt.Errorf("creating part for %s: %w", f.Path, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return fmt.Errorf("writing part for %s: %w", f.Path, err)
		}
	}
	return mw.Close()
}

// do executes an authenticated HTTP request and returns the response body.
// Non-2xx responses are converted to *StatusError.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req) // #nosec G107 -- backend URL is operator configuration
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", c.baseURL+path, err)
	}
	defer res.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, res.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		// Try to extract a human-readable error from the response body.
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		msg := ""
		if jsonErr := json.Unmarshal(b, &apiErr); jsonErr == nil {
			switch {
			case apiErr.Error != "":
				msg = apiErr.Error
			case apiErr.Message != "":
				msg = apiErr.Message
			case apiErr.Detail != "":
				msg = apiErr.Detail
			}
		}
		return nil, res.StatusCode, &StatusError{StatusCode: res.StatusCode, Message: msg}
	}

	return b, res.StatusCode, nil
}

// normalizeSeverities maps backend spellings onto SeverityLevel. Values
// with no known mapping are kept upper-cased so they still sort last.
func normalizeSeverities(r *models.ScanResult) {
	for i := range r.Findings {
		raw := string(r.Findings[i].Severity)
		sev := models.MapSeverity(raw)
		if sev == models.SeverityUnknown && raw != "" {
			sev = models.SeverityLevel(strings.ToUpper(raw))
		}
		r.Findings[i].Severity = sev
	}
}

func statusLabel(status int, err error) string {
	if status == 0 && err != nil {
		return "error"
	}
	return strconv.Itoa(status)
}
