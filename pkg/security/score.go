package security

import (
	"math"
	"time"

	"github.com/forest6511/quantavault/pkg/vault"
)

// Component weights of the overall score.
const (
	WeightStrength   = 0.4
	WeightUniqueness = 0.3
	WeightAge        = 0.2
	WeightTwoFactor  = 0.1
)

// Score is the weighted security assessment of a collection.
type Score struct {
	// Overall is the weighted total (0-100).
	Overall   int       `json:"overall"`
	Breakdown Breakdown `json:"breakdown"`
}

// Breakdown holds the individual components, each 0-100.
type Breakdown struct {
	// Strength is the mean stored strength score.
	Strength int `json:"strength"`
	// Uniqueness is the percentage of distinct secret values.
	Uniqueness int `json:"uniqueness"`
	// Age is the percentage of credentials updated within FreshWithin.
	Age int `json:"age"`
	// TwoFactor is the caller-supplied two-factor coverage signal.
	TwoFactor int `json:"two_factor"`
}

// Score computes the weighted score of records. An empty collection scores 0 everywhere.
func (a *Auditor) Score(records []vault.Credential) Score {
	if len(records) == 0 {
		return Score{}
	}
	total := float64(len(records))

	var sum int
	var fresh int
	cutoff := a.now().Add(-FreshWithin)
	for _, r := range records {
		sum += r.StrengthScore
		if !r.UpdatedAt.Before(cutoff) {
			fresh++
		}
	}

	strengthPct := float64(sum) / total
	uniquenessPct := 100 * float64(a.distinctSecrets(records)) / total
	agePct := 100 * float64(fresh) / total
	twoFactor := float64(a.twoFactor)

	overall := WeightStrength*strengthPct + WeightUniqueness*uniquenessPct +
		WeightAge*agePct + WeightTwoFactor*twoFactor

	return Score{
		Overall: clamp(int(math.Round(overall))),
		Breakdown: Breakdown{
			Strength:   int(math.Round(strengthPct)),
			Uniqueness: int(math.Round(uniquenessPct)),
			Age:        int(math.Round(agePct)),
			TwoFactor:  a.twoFactor,
		},
	}
}

// Report bundles findings, score and suggestions for display.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Score       Score     `json:"score"`
	Findings    []Finding `json:"findings"`
	Suggestions []string  `json:"suggestions"`
}

// Report audits and scores records in one pass.
func (a *Auditor) Report(records []vault.Credential) *Report {
	findings := a.Audit(records)
	return &Report{
		GeneratedAt: a.now().UTC(),
		Total:       len(records),
		Score:       a.Score(records),
		Findings:    findings,
		Suggestions: generateSuggestions(findings),
	}
}

// Finding returns the finding of the given kind, or nil.
func (r *Report) Finding(kind Kind) *Finding {
	for i := range r.Findings {
		if r.Findings[i].Kind == kind {
			return &r.Findings[i]
		}
	}
	return nil
}

// generateSuggestions creates actionable recommendations based on findings.
func generateSuggestions(findings []Finding) []string {
	suggestions := []string{}
	for _, f := range findings {
		switch f.Kind {
		case KindWeak:
			suggestions = append(suggestions, "Update weak passwords with generated ones (16+ characters, all character classes)")
		case KindReused:
			suggestions = append(suggestions, "Replace reused passwords with a unique password per site")
		case KindStale:
			suggestions = append(suggestions, "Rotate passwords that have not changed in the last 90 days")
		}
	}
	return suggestions
}
