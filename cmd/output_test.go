package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/findings"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func sampleOutput(gated bool) reportOutput {
	c := 0.8
	r := &models.ScanResult{AgentName: "acme/widgets", FilesScanned: 42, StargazersCount: 12345, Language: "Go", DefaultBranch: "main"}
	for _, s := range []models.SeverityLevel{models.SeverityHigh, models.SeverityLow, models.SeverityCritical, models.SeverityMedium} {
		r.Findings = append(r.Findings, models.Finding{
			ID: "id-" + string(s), Severity: s, PatternID: "p-" + string(s), Confidence: &c,
			File: "main.go", Line: 3, Message: "secret " + string(s),
		})
	}
	r.RecountFindings()
	return reportOutput{
		ReportID:   "7d0c5a4e-4b8e-4c5e-9a3e-2f1d0c9b8a7f",
		RepoName:   "acme/widgets",
		RepoURL:    "https://github.com/acme/widgets",
		ScannedAt:  time.Now().Add(-2 * time.Minute),
		ScanResult: findings.Gate(r, !gated, 3),
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleOutput(true), "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "acme/widgets", got["repo_name"])
	res := got["scan_result"].(map[string]any)
	assert.Len(t, res["findings"], 3)
	assert.Len(t, res["gated_findings"], 1)
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleOutput(false), "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "7d0c5a4e-4b8e-4c5e-9a3e-2f1d0c9b8a7f", got["report_id"])
	res := got["scan_result"].(map[string]any)
	assert.Len(t, res["findings"], 4)
	assert.NotContains(t, res, "gated_findings")
}

func TestWriteReportTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleOutput(true), "table"))
	out := buf.String()
	assert.Contains(t, out, "acme/widgets")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "2 minutes ago")
	assert.Contains(t, out, "1 more findings are available after signing in")
	assert.NotContains(t, out, "secret LOW")
}

func TestWriteReportUnknownFormat(t *testing.T) {
	assert.Error(t, writeReport(&bytes.Buffer{}, sampleOutput(true), "xml"))
}
