// Package security audits a credential collection for weak, reused and
// stale passwords and computes a weighted security score.
package security

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/forest6511/quantavault/pkg/strength"
	"github.com/forest6511/quantavault/pkg/vault"
)

// Audit thresholds
const (
	// StaleAfter is the age past which a password is reported as stale.
	StaleAfter = 90 * 24 * time.Hour
	// FreshWithin is the window counted as recently updated by the age component.
	FreshWithin = 30 * 24 * time.Hour
	// manyWeak is the weak-password count above which the finding escalates to high.
	manyWeak = 3
)

// Kind identifies the category of a finding.
type Kind string

const (
	KindWeak   Kind = "weak"
	KindReused Kind = "reused"
	KindStale  Kind = "stale"
)

// Severity indicates the urgency of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding is one detected problem and the credentials it affects.
type Finding struct {
	Kind          Kind     `json:"kind"`
	Severity      Severity `json:"severity"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	CredentialIDs []string `json:"credential_ids"`
}

// Auditor inspects credential collections. It holds no state between
// calls other than its configuration and a per-process comparison key.
type Auditor struct {
	now       func() time.Time
	twoFactor int
	hmacKey   []byte // session-local key for reuse detection, never persisted
}

// NewAuditor returns an Auditor using the wall clock and a two-factor signal of 0.
func NewAuditor() *Auditor {
	key := make([]byte, 32)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(key)
	return &Auditor{
		now:     time.Now,
		hmacKey: key,
	}
}

// WithClock sets the time source used for staleness and age.
func (a *Auditor) WithClock(now func() time.Time) *Auditor {
	a.now = now
	return a
}

// WithTwoFactorScore sets the externally sourced two-factor coverage signal (0-100).
func (a *Auditor) WithTwoFactorScore(score int) *Auditor {
	a.twoFactor = clamp(score)
	return a
}

// Audit returns the findings for records, in the order weak, reused, stale.
// Kinds with no affected credential are omitted.
func (a *Auditor) Audit(records []vault.Credential) []Finding {
	findings := make([]Finding, 0, 3)
	if f, ok := weakFinding(records); ok {
		findings = append(findings, f)
	}
	if f, ok := a.reusedFinding(records); ok {
		findings = append(findings, f)
	}
	if f, ok := staleFinding(records, a.now()); ok {
		findings = append(findings, f)
	}
	return findings
}

func weakFinding(records []vault.Credential) (Finding, bool) {
	var ids []string
	for _, r := range records {
		if strength.IsWeak(r.StrengthScore) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return Finding{}, false
	}

	severity := SeverityMedium
	if len(ids) > manyWeak {
		severity = SeverityHigh
	}
	return Finding{
		Kind:          KindWeak,
		Severity:      severity,
		Title:         "Weak Passwords",
		Description:   fmt.Sprintf("%s a low strength score.", countPasswords(len(ids), "has", "have")),
		CredentialIDs: ids,
	}, true
}

func (a *Auditor) reusedFinding(records []vault.Credential) (Finding, bool) {
	groups := a.ReusedGroups(records)
	if len(groups) == 0 {
		return Finding{}, false
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.CredentialIDs...)
	}
	return Finding{
		Kind:          KindReused,
		Severity:      SeverityCritical,
		Title:         "Reused Passwords",
		Description:   fmt.Sprintf("%d passwords are being reused across %d different sites.", len(ids), len(groups)),
		CredentialIDs: ids,
	}, true
}

func staleFinding(records []vault.Credential, now time.Time) (Finding, bool) {
	cutoff := now.Add(-StaleAfter)
	var ids []string
	for _, r := range records {
		if r.UpdatedAt.Before(cutoff) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return Finding{}, false
	}
	return Finding{
		Kind:          KindStale,
		Severity:      SeverityLow,
		Title:         "Old Passwords",
		Description:   fmt.Sprintf("%s not been updated in over 90 days.", countPasswords(len(ids), "has", "have")),
		CredentialIDs: ids,
	}, true
}

// countPasswords renders "1 password has" or "N passwords have".
func countPasswords(n int, singular, plural string) string {
	if n == 1 {
		return "1 password " + singular
	}
	return fmt.Sprintf("%d passwords %s", n, plural)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
