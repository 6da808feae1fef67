package findings

import (
	"encoding/json"
	"testing"

	"github.com/CosmoTheDev/anonscan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conf(v float64) *float64 { return &v }

func finding(id string, sev models.SeverityLevel, c *float64) models.Finding {
	return models.Finding{
		ID:          id,
		Severity:    sev,
		PatternID:   "pat-" + id,
		Confidence:  c,
		File:        "src/" + id + ".py",
		Line:        7,
		Message:     "message " + id,
		CodeSnippet: "eval(x)",
		Remediation: &models.Remediation{Summary: "fix " + id},
	}
}

func TestGateAnonymousSplitsFindings(t *testing.T) {
	r := &models.ScanResult{Findings: []models.Finding{
		finding("low", models.SeverityLow, conf(0.9)),
		finding("high-a", models.SeverityHigh, conf(0.6)),
		finding("medium", models.SeverityMedium, conf(0.99)),
		finding("crit", models.SeverityCritical, conf(0.7)),
		finding("high-b", models.SeverityHigh, conf(0.8)),
	}}
	r.RecountFindings()

	got := Gate(r, false, DefaultUngated)

	require.Len(t, got.Findings, 3)
	assert.Equal(t, "crit", got.Findings[0].ID)
	assert.Equal(t, "high-b", got.Findings[1].ID)
	assert.Equal(t, "high-a", got.Findings[2].ID)
	require.Len(t, got.GatedFindings, 2)
	assert.Equal(t, "medium", got.GatedFindings[0].ID)
	assert.Equal(t, models.SeverityLow, got.GatedFindings[1].Severity)
	assert.Equal(t, 5, got.FindingsCount)

	// The encoded summaries must not carry location or detail keys.
	b, err := json.Marshal(got)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	gated := decoded["gated_findings"].([]any)
	require.Len(t, gated, 2)
	for _, g := range gated {
		m := g.(map[string]any)
		for _, key := range []string{"file", "line", "message", "code_snippet", "remediation", "compliance"} {
			_, ok := m[key]
			assert.False(t, ok, "gated summary has %q", key)
		}
		assert.Contains(t, m, "pattern_id")
	}

	// Input untouched.
	assert.Equal(t, "low", r.Findings[0].ID)
	assert.Nil(t, r.GatedFindings)
}

func TestGateAuthenticatedUnchanged(t *testing.T) {
	r := &models.ScanResult{Findings: []models.Finding{
		finding("low", models.SeverityLow, nil),
		finding("crit", models.SeverityCritical, conf(0.7)),
		finding("high", models.SeverityHigh, nil),
		finding("med", models.SeverityMedium, nil),
	}}

	got := Gate(r, true, DefaultUngated)
	require.Len(t, got.Findings, 4)
	assert.Equal(t, "low", got.Findings[0].ID)
	assert.Nil(t, got.GatedFindings)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "gated_findings")
}

func TestGateMissingConfidenceSortsAsZero(t *testing.T) {
	r := &models.ScanResult{Findings: []models.Finding{
		finding("none", models.SeverityHigh, nil),
		finding("some", models.SeverityHigh, conf(0.1)),
		finding("odd", models.SeverityLevel("WEIRD"), conf(1)),
	}}

	got := Gate(r, false, 1)
	assert.Equal(t, "some", got.Findings[0].ID)
	assert.Equal(t, "none", got.GatedFindings[0].ID)
	assert.Equal(t, "odd", got.GatedFindings[1].ID)
}

func TestGateFewFindings(t *testing.T) {
	r := &models.ScanResult{Findings: []models.Finding{finding("only", models.SeverityLow, nil)}}
	got := Gate(r, false, DefaultUngated)
	assert.Len(t, got.Findings, 1)
	assert.Empty(t, got.GatedFindings)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"gated_findings":[]`)
}

func TestPolish(t *testing.T) {
	r := &models.ScanResult{
		Findings: []models.Finding{
			finding("keep-crit", models.SeverityCritical, conf(0.5)),
			finding("drop-crit", models.SeverityCritical, conf(0.49)),
			finding("keep-nil", models.SeverityHigh, nil),
			finding("drop-low", models.SeverityLow, conf(0.1)),
			finding("keep-med", models.SeverityMedium, conf(0.9)),
		},
		FindingsCount: 5,
		CriticalCount: 2,
		LowCount:      1,
	}
	steps := []string{"one", "two", "three", "four", "five"}
	r.Findings[0].Remediation.Steps = steps

	Polish(r, DefaultPolishOptions())

	require.Len(t, r.Findings, 3)
	assert.Equal(t, 3, r.FindingsCount)
	assert.Equal(t, 1, r.CriticalCount)
	assert.Equal(t, 1, r.HighCount)
	assert.Equal(t, 1, r.MediumCount)
	assert.Equal(t, 0, r.LowCount)
	assert.Equal(t, []string{"one", "two", "three"}, r.Findings[0].Remediation.Steps)
	assert.Len(t, steps, 5)
}
