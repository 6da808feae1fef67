package models

// Finding is one issue reported by the scanning backend, with full detail.
type Finding struct {
	ID                 string              `json:"id"                            yaml:"id"`
	Severity           SeverityLevel       `json:"severity"                      yaml:"severity"`
	PatternID          string              `json:"pattern_id"                    yaml:"pattern_id"`
	FindingType        string              `json:"finding_type,omitempty"        yaml:"finding_type,omitempty"`
	Confidence         *float64            `json:"confidence,omitempty"          yaml:"confidence,omitempty"`
	GovernanceCategory string              `json:"governance_category,omitempty" yaml:"governance_category,omitempty"`
	DisplayTitle       string              `json:"display_title,omitempty"       yaml:"display_title,omitempty"`
	FixDifficulty      string              `json:"fix_difficulty,omitempty"      yaml:"fix_difficulty,omitempty"`
	File               string              `json:"file"                          yaml:"file"`
	Line               int                 `json:"line"                          yaml:"line"`
	Message            string              `json:"message"                       yaml:"message"`
	CodeSnippet        string              `json:"code_snippet,omitempty"        yaml:"code_snippet,omitempty"`
	Compliance         []ComplianceMapping `json:"compliance,omitempty"          yaml:"compliance,omitempty"`
	Remediation        *Remediation        `json:"remediation,omitempty"         yaml:"remediation,omitempty"`
}

// ConfidenceOrZero returns the finding confidence, treating a missing value as 0.
func (f Finding) ConfidenceOrZero() float64 {
	if f.Confidence == nil {
		return 0
	}
	return *f.Confidence
}

// ComplianceMapping ties a finding to a control in a governance framework.
type ComplianceMapping struct {
	Framework   string `json:"framework"             yaml:"framework"`
	Control     string `json:"control"               yaml:"control"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Remediation is the backend's suggested fix for a finding.
type Remediation struct {
	Summary    string   `json:"summary,omitempty"    yaml:"summary,omitempty"`
	Steps      []string `json:"steps,omitempty"      yaml:"steps,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// GatedFindingSummary is the text-only projection of a finding shown to
// anonymous viewers. It deliberately has no location, message, snippet,
// compliance or remediation fields so none of them reach the response body.
type GatedFindingSummary struct {
	ID                 string        `json:"id"                            yaml:"id"`
	Severity           SeverityLevel `json:"severity"                      yaml:"severity"`
	PatternID          string        `json:"pattern_id"                    yaml:"pattern_id"`
	FindingType        string        `json:"finding_type,omitempty"        yaml:"finding_type,omitempty"`
	Confidence         *float64      `json:"confidence,omitempty"          yaml:"confidence,omitempty"`
	GovernanceCategory string        `json:"governance_category,omitempty" yaml:"governance_category,omitempty"`
	DisplayTitle       string        `json:"display_title,omitempty"       yaml:"display_title,omitempty"`
	FixDifficulty      string        `json:"fix_difficulty,omitempty"      yaml:"fix_difficulty,omitempty"`
}
