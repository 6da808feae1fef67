package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSendsMultipart(t *testing.T) {
	var gotReq ScanRequest
	gotFiles := map[string]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scan", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &gotReq))
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			require.NoError(t, err)
			b, _ := io.ReadAll(f)
			f.Close()
			gotFiles[fh.Filename] = string(b)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"scan_id": "s-1",
			"agent_name": "acme/widgets",
			"findings": [
				{"id": "f1", "severity": "critical", "pattern_id": "p1", "file": "a.py", "line": 3, "message": "m"},
				{"id": "f2", "severity": "moderate", "pattern_id": "p2"},
				{"id": "f3", "severity": "weird", "pattern_id": "p3"}
			],
			"findings_count": 3,
			"governance": {"score": 7}
		}`))
	}))
	t.Cleanup(srv.Close)

	c := New(config.BackendConfig{APIBaseURL: srv.URL + "/", APIKey: "sk-test"})
	files := []models.ExtractedFile{
		{Path: "src/a.py", Content: []byte("print(1)")},
		{Path: "README.md", Content: []byte("# hi")},
	}

	res, err := c.Scan(context.Background(), NewScanRequest("anonscan/test", "acme/widgets"), files)
	require.NoError(t, err)

	assert.Equal(t, ContractVersion, gotReq.ContractVersion)
	assert.Equal(t, "comprehensive", gotReq.ScanPolicy)
	assert.Equal(t, "acme/widgets", gotReq.AgentName)
	assert.Equal(t, 0, gotReq.SecretsRedacted)
	assert.Equal(t, 0, gotReq.FilesRedacted)
	assert.Equal(t, map[string]string{"src/a.py": "print(1)", "README.md": "# hi"}, gotFiles)

	require.Len(t, res.Findings, 3)
	assert.Equal(t, models.SeverityCritical, res.Findings[0].Severity)
	assert.Equal(t, models.SeverityMedium, res.Findings[1].Severity)
	assert.Equal(t, models.SeverityLevel("WEIRD"), res.Findings[2].Severity)
	assert.Equal(t, 2, res.FilesScanned)
	assert.JSONEq(t, `{"score": 7}`, string(res.Governance))
}

func TestScanStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte(`{"detail":"upstream timed out"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(config.BackendConfig{APIBaseURL: srv.URL})
	_, err := c.Scan(context.Background(), NewScanRequest("v", "a/b"), nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusGatewayTimeout, se.StatusCode)
	assert.Equal(t, "upstream timed out", se.Message)
}

func TestScanTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := New(config.BackendConfig{APIBaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Scan(context.Background(), NewScanRequest("v", "a/b"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, New(config.BackendConfig{APIBaseURL: srv.URL}).Ping(context.Background()))
}
