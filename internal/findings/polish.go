// Package findings shapes backend findings into stored and displayed reports.
package findings

import "github.com/CosmoTheDev/anonscan/models"

// PolishOptions controls Polish. Zero values select the defaults.
type PolishOptions struct {
	MinConfidence       float64
	MaxRemediationSteps int
}

// DefaultPolishOptions drops findings under 0.5 confidence and keeps three
// remediation steps.
func DefaultPolishOptions() PolishOptions {
	return PolishOptions{MinConfidence: 0.5, MaxRemediationSteps: 3}
}

// Polish removes low-confidence findings, trims remediation steps and
// recomputes every count from what remains. Findings without a confidence
// value are kept. r is modified in place.
func Polish(r *models.ScanResult, opts PolishOptions) {
	if opts.MaxRemediationSteps <= 0 {
		opts.MaxRemediationSteps = DefaultPolishOptions().MaxRemediationSteps
	}

	kept := make([]models.Finding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.Confidence != nil && *f.Confidence < opts.MinConfidence {
			continue
		}
		if f.Remediation != nil && len(f.Remediation.Steps) > opts.MaxRemediationSteps {
			rem := *f.Remediation
			rem.Steps = append([]string(nil), rem.Steps[:opts.MaxRemediationSteps]...)
			f.Remediation = &rem
		}
		kept = append(kept, f)
	}
	r.Findings = kept
	r.RecountFindings()
}
