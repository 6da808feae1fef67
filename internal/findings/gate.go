package findings

import (
	"sort"

	"github.com/CosmoTheDev/anonscan/models"
)

// DefaultUngated is how many full findings an anonymous viewer receives.
const DefaultUngated = 3

// Gate shapes r for a viewer. Authenticated viewers get an unchanged copy.
// Anonymous viewers get the `ungated` most important findings in full and
// the rest as summaries without location, message or snippet. Ordering is
// severity first, then confidence descending (missing counts as 0), stable
// on ties. r is never modified.
func Gate(r *models.ScanResult, authenticated bool, ungated int) *models.ScanResult {
	out := *r
	sorted := append([]models.Finding(nil), r.Findings...)
	if authenticated {
		out.Findings = sorted
		return &out
	}
	if ungated < 0 {
		ungated = 0
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Severity.Rank(), sorted[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].ConfidenceOrZero() > sorted[j].ConfidenceOrZero()
	})

	if len(sorted) <= ungated {
		out.Findings = sorted
		out.GatedFindings = []models.GatedFindingSummary{}
		return &out
	}

	out.Findings = sorted[:ungated:ungated]
	out.GatedFindings = make([]models.GatedFindingSummary, 0, len(sorted)-ungated)
	for _, f := range sorted[ungated:] {
		out.GatedFindings = append(out.GatedFindings, Summarize(f))
	}
	return &out
}

// Summarize projects f onto the fields anonymous viewers may see.
func Summarize(f models.Finding) models.GatedFindingSummary {
	return models.GatedFindingSummary{
		ID:                 f.ID,
		Severity:           f.Severity,
		PatternID:          f.PatternID,
		FindingType:        f.FindingType,
		Confidence:         f.Confidence,
		GovernanceCategory: f.GovernanceCategory,
		DisplayTitle:       f.DisplayTitle,
		FixDifficulty:      f.FixDifficulty,
	}
}
