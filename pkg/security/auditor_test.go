package security

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/forest6511/quantavault/pkg/vault"
)

var auditNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAuditor() *Auditor {
	return NewAuditor().WithClock(func() time.Time { return auditNow })
}

func cred(id, secret string, score int, age time.Duration) vault.Credential {
	return vault.Credential{
		ID:            id,
		Owner:         "owner-1",
		Title:         id,
		Username:      "user",
		Secret:        secret,
		StrengthScore: score,
		UpdatedAt:     auditNow.Add(-age),
	}
}

func kinds(findings []Finding) []Kind {
	out := make([]Kind, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestAudit_Empty(t *testing.T) {
	findings := newTestAuditor().Audit(nil)
	if len(findings) != 0 {
		t.Errorf("Audit(nil) = %v, want no findings", findings)
	}
}

func TestAudit_WeakAndReused(t *testing.T) {
	records := []vault.Credential{
		cred("1", "a", 10, 0),
		cred("2", "a", 10, 0),
		cred("3", "b", 90, 0),
	}

	findings := newTestAuditor().Audit(records)
	if got, want := kinds(findings), []Kind{KindWeak, KindReused}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Audit() kinds = %v, want %v", got, want)
	}

	weak := findings[0]
	if weak.Severity != SeverityMedium {
		t.Errorf("weak severity = %s, want %s", weak.Severity, SeverityMedium)
	}
	if !reflect.DeepEqual(weak.CredentialIDs, []string{"1", "2"}) {
		t.Errorf("weak ids = %v, want [1 2]", weak.CredentialIDs)
	}
	if weak.Description != "2 passwords have a low strength score." {
		t.Errorf("weak description = %q", weak.Description)
	}

	reused := findings[1]
	if reused.Severity != SeverityCritical {
		t.Errorf("reused severity = %s, want %s", reused.Severity, SeverityCritical)
	}
	if !reflect.DeepEqual(reused.CredentialIDs, []string{"1", "2"}) {
		t.Errorf("reused ids = %v, want [1 2]", reused.CredentialIDs)
	}
	if reused.Description != "2 passwords are being reused across 1 different sites." {
		t.Errorf("reused description = %q", reused.Description)
	}
}

func TestAudit_WeakSeverity(t *testing.T) {
	tests := []struct {
		name string
		weak int
		want Severity
	}{
		{"one", 1, SeverityMedium},
		{"three", 3, SeverityMedium},
		{"four", 4, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []vault.Credential
			for i := 0; i < tt.weak; i++ {
				records = append(records, cred(string(rune('a'+i)), string(rune('a'+i)), 20, 0))
			}
			records = append(records, cred("strong", "Kx7!mQ2#vB9$tR4%", 100, 0))

			findings := newTestAuditor().Audit(records)
			if len(findings) != 1 || findings[0].Kind != KindWeak {
				t.Fatalf("Audit() = %v, want a single weak finding", findings)
			}
			if findings[0].Severity != tt.want {
				t.Errorf("severity = %s, want %s", findings[0].Severity, tt.want)
			}
			if len(findings[0].CredentialIDs) != tt.weak {
				t.Errorf("affected = %d, want %d", len(findings[0].CredentialIDs), tt.weak)
			}
		})
	}
}

func TestAudit_WeakBoundary(t *testing.T) {
	records := []vault.Credential{cred("49", "x", 49, 0), cred("50", "y", 50, 0)}
	findings := newTestAuditor().Audit(records)
	if len(findings) != 1 || !reflect.DeepEqual(findings[0].CredentialIDs, []string{"49"}) {
		t.Errorf("Audit() = %v, want only the score-49 record flagged", findings)
	}
	if findings[0].Description != "1 password has a low strength score." {
		t.Errorf("description = %q", findings[0].Description)
	}
}

func TestAudit_ReusedGroups(t *testing.T) {
	records := []vault.Credential{
		cred("1", "shared-b", 80, 0),
		cred("2", "shared-a", 80, 0),
		cred("3", "unique", 80, 0),
		cred("4", "shared-a", 80, 0),
		cred("5", "shared-b", 80, 0),
		cred("6", "shared-b", 80, 0),
	}

	a := newTestAuditor()
	groups := a.ReusedGroups(records)
	want := []ReuseGroup{
		{CredentialIDs: []string{"1", "5", "6"}, Count: 3},
		{CredentialIDs: []string{"2", "4"}, Count: 2},
	}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("ReusedGroups() = %v, want %v", groups, want)
	}

	findings := a.Audit(records)
	if len(findings) != 1 || findings[0].Kind != KindReused {
		t.Fatalf("Audit() = %v, want a single reused finding", findings)
	}
	if !strings.HasPrefix(findings[0].Description, "5 passwords are being reused across 2 ") {
		t.Errorf("description = %q", findings[0].Description)
	}
}

func TestAudit_ReuseIsExactMatch(t *testing.T) {
	records := []vault.Credential{
		cred("1", "Secret", 80, 0),
		cred("2", "secret", 80, 0),
		cred("3", "secret ", 80, 0),
	}
	if groups := newTestAuditor().ReusedGroups(records); len(groups) != 0 {
		t.Errorf("ReusedGroups() = %v, want none", groups)
	}
}

func TestAudit_Stale(t *testing.T) {
	day := 24 * time.Hour
	records := []vault.Credential{
		cred("fresh", "a1", 80, 10*day),
		cred("boundary", "a2", 80, 90*day),
		cred("old", "a3", 80, 91*day),
	}

	findings := newTestAuditor().Audit(records)
	if len(findings) != 1 || findings[0].Kind != KindStale {
		t.Fatalf("Audit() = %v, want a single stale finding", findings)
	}
	if findings[0].Severity != SeverityLow {
		t.Errorf("severity = %s, want %s", findings[0].Severity, SeverityLow)
	}
	if !reflect.DeepEqual(findings[0].CredentialIDs, []string{"old"}) {
		t.Errorf("stale ids = %v, want [old]", findings[0].CredentialIDs)
	}
}

func TestAudit_OrderIsStable(t *testing.T) {
	records := []vault.Credential{
		cred("1", "dup", 10, 200*24*time.Hour),
		cred("2", "dup", 90, 0),
	}
	a := newTestAuditor()
	first := a.Audit(records)
	if got, want := kinds(first), []Kind{KindWeak, KindReused, KindStale}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Audit() kinds = %v, want %v", got, want)
	}
	for i := 0; i < 5; i++ {
		if again := a.Audit(records); !reflect.DeepEqual(again, first) {
			t.Fatalf("Audit() not stable: %v vs %v", again, first)
		}
	}
}

func TestScore_Empty(t *testing.T) {
	got := newTestAuditor().WithTwoFactorScore(100).Score(nil)
	if got != (Score{}) {
		t.Errorf("Score(nil) = %+v, want zero", got)
	}
}

func TestScore_Example(t *testing.T) {
	records := []vault.Credential{
		cred("1", "a", 10, 0),
		cred("2", "a", 10, 0),
		cred("3", "b", 90, 0),
	}

	got := newTestAuditor().Score(records)
	want := Score{
		// 0.4*36.67 + 0.3*66.67 + 0.2*100 + 0.1*0 = 54.67
		Overall:   55,
		Breakdown: Breakdown{Strength: 37, Uniqueness: 67, Age: 100, TwoFactor: 0},
	}
	if got != want {
		t.Errorf("Score() = %+v, want %+v", got, want)
	}
}

func TestScore_Components(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name      string
		records   []vault.Credential
		twoFactor int
		want      Score
	}{
		{
			name:      "perfect",
			records:   []vault.Credential{cred("1", "x", 100, 0), cred("2", "y", 100, day)},
			twoFactor: 100,
			want:      Score{Overall: 100, Breakdown: Breakdown{100, 100, 100, 100}},
		},
		{
			name:    "all stale",
			records: []vault.Credential{cred("1", "x", 50, 31*day), cred("2", "y", 50, 100*day)},
			want:    Score{Overall: 50, Breakdown: Breakdown{50, 100, 0, 0}},
		},
		{
			name:    "freshness boundary",
			records: []vault.Credential{cred("1", "x", 0, 30*day), cred("2", "y", 0, 30*day+time.Second)},
			want:    Score{Overall: 40, Breakdown: Breakdown{0, 100, 50, 0}},
		},
		{
			name:      "two factor clamped",
			records:   []vault.Credential{cred("1", "x", 0, 100*day)},
			twoFactor: 250,
			want:      Score{Overall: 40, Breakdown: Breakdown{0, 100, 0, 100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestAuditor().WithTwoFactorScore(tt.twoFactor).Score(tt.records)
			if got != tt.want {
				t.Errorf("Score() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	a := newTestAuditor().WithTwoFactorScore(-5)
	for _, score := range []int{0, 1, 49, 50, 99, 100} {
		got := a.Score([]vault.Credential{cred("1", "x", score, 0)})
		if got.Overall < 0 || got.Overall > 100 {
			t.Errorf("Score() overall = %d, out of range", got.Overall)
		}
	}
}

func TestReport(t *testing.T) {
	records := []vault.Credential{
		cred("1", "a", 10, 0),
		cred("2", "a", 10, 0),
		cred("3", "b", 90, 0),
	}

	report := newTestAuditor().Report(records)
	if report.Total != 3 {
		t.Errorf("Total = %d, want 3", report.Total)
	}
	if !report.GeneratedAt.Equal(auditNow) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, auditNow)
	}
	if len(report.Suggestions) != len(report.Findings) {
		t.Errorf("got %d suggestions for %d findings", len(report.Suggestions), len(report.Findings))
	}
	if report.Finding(KindReused) == nil {
		t.Error("Finding(reused) = nil")
	}
	if report.Finding(KindStale) != nil {
		t.Error("Finding(stale) should be nil")
	}

	empty := newTestAuditor().Report(nil)
	if empty.Findings == nil || empty.Suggestions == nil {
		t.Error("empty report should carry empty, non-nil slices")
	}
}
