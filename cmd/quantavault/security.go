package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/strength"
	"github.com/forest6511/quantavault/pkg/vault"
)

// Security command flags
var (
	securityVerbose bool
	securityJSON    bool
)

// securityCmd is the root security command.
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Analyze vault security health",
	Long: `Analyze the security health of your vault and get recommendations.

The security score is a weighted blend of:
  - Password Strength (40%): Average password strength score
  - Uniqueness (30%):        Distinct passwords relative to credentials
  - Age (20%):               Share updated within the last 30 days
  - Two-Factor (10%):        security.two_factor_score from the config

Example:
  quantavault security              # Show security score and findings
  quantavault security --verbose    # Also show suggestions
  quantavault security --json       # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auditCredentials(cmd)
		if err != nil {
			return err
		}

		report := newAuditor().Report(creds)
		if securityJSON {
			return outputSecurityJSON(report)
		}
		fmt.Print(formatReport(report, securityVerbose))
		return nil
	},
}

// securityWeakCmd lists weak passwords.
var securityWeakCmd = &cobra.Command{
	Use:   "weak",
	Short: "List weak passwords",
	Long: `Show credentials whose password scores below 50.

Scores come from length, character variety and penalties for repeated
characters or common prefixes. Run 'quantavault strength' for hints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auditCredentials(cmd)
		if err != nil {
			return err
		}

		var weak []vault.Credential
		for _, c := range creds {
			if strength.IsWeak(c.StrengthScore) {
				weak = append(weak, c)
			}
		}

		if len(weak) == 0 {
			fmt.Println("No weak passwords found!")
			return nil
		}

		fmt.Printf("Weak Passwords (%d found)\n\n", len(weak))
		for i, c := range weak {
			fmt.Printf("%d. %s (%s)\n", i+1, c.Title, c.Username)
			fmt.Printf("   Strength %d/100\n\n", c.StrengthScore)
		}
		return nil
	},
}

// securityReusedCmd lists reused passwords.
var securityReusedCmd = &cobra.Command{
	Use:     "reused",
	Aliases: []string{"duplicates"},
	Short:   "List reused passwords",
	Long:    `Show groups of credentials that share the same password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auditCredentials(cmd)
		if err != nil {
			return err
		}

		groups := newAuditor().ReusedGroups(creds)
		if len(groups) == 0 {
			fmt.Println("No reused passwords found!")
			return nil
		}

		byID := make(map[string]vault.Credential, len(creds))
		for _, c := range creds {
			byID[c.ID] = c
		}

		fmt.Printf("Reused Passwords (%d groups found)\n\n", len(groups))
		for i, group := range groups {
			fmt.Printf("%d. %d credentials share the same password:\n", i+1, group.Count)
			for _, id := range group.CredentialIDs {
				c := byID[id]
				fmt.Printf("   - %s (%s)\n", c.Title, c.Username)
			}
			fmt.Println()
		}
		return nil
	},
}

// securityStaleCmd lists old passwords.
var securityStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List passwords not changed in 90 days",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auditCredentials(cmd)
		if err != nil {
			return err
		}

		now := time.Now()
		cutoff := now.Add(-security.StaleAfter)
		var stale []vault.Credential
		for _, c := range creds {
			if c.UpdatedAt.Before(cutoff) {
				stale = append(stale, c)
			}
		}

		if len(stale) == 0 {
			fmt.Println("No stale passwords found!")
			return nil
		}

		fmt.Printf("Old Passwords (%d found)\n\n", len(stale))
		for i, c := range stale {
			days := int(now.Sub(c.UpdatedAt).Hours() / 24)
			fmt.Printf("%d. %s (%s) - last changed %d days ago\n", i+1, c.Title, c.Username, days)
		}
		return nil
	},
}

// auditCredentials unlocks the vault and returns the owner's credentials.
func auditCredentials(cmd *cobra.Command) ([]vault.Credential, error) {
	if err := ensureUnlocked(cmd.Context(), audit.SourceCLI); err != nil {
		return nil, err
	}
	defer lockVault()
	return ownedCredentials(cmd)
}

func newAuditor() *security.Auditor {
	return security.NewAuditor().WithTwoFactorScore(cfg.Security.TwoFactorScore)
}

// outputSecurityJSON outputs the security report as JSON.
func outputSecurityJSON(report *security.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// formatReport renders the security report as text.
func formatReport(report *security.Report, verbose bool) string {
	var b strings.Builder

	// Score header
	var rating string
	switch {
	case report.Score.Overall >= 90:
		rating = "Excellent"
	case report.Score.Overall >= 70:
		rating = "Good"
	case report.Score.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs Attention"
	}
	fmt.Fprintf(&b, "Security Score: %d/100 (%s)\n", report.Score.Overall, rating)
	fmt.Fprintf(&b, "Credentials:    %d\n\n", report.Total)

	// Components
	bd := report.Score.Breakdown
	b.WriteString("Components:\n")
	fmt.Fprintf(&b, "  Password Strength: %3d/100 %s\n", bd.Strength, progressBar(bd.Strength, 100))
	fmt.Fprintf(&b, "  Uniqueness:        %3d/100 %s\n", bd.Uniqueness, progressBar(bd.Uniqueness, 100))
	fmt.Fprintf(&b, "  Age:               %3d/100 %s\n", bd.Age, progressBar(bd.Age, 100))
	fmt.Fprintf(&b, "  Two-Factor:        %3d/100 %s\n", bd.TwoFactor, progressBar(bd.TwoFactor, 100))
	b.WriteString("\n")

	// Findings
	if len(report.Findings) > 0 {
		fmt.Fprintf(&b, "Findings (%d):\n", len(report.Findings))
		for i, f := range report.Findings {
			fmt.Fprintf(&b, "  %d. [%s] %s: %s\n", i+1, strings.ToUpper(string(f.Severity)), f.Title, f.Description)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No issues found.\n\n")
	}

	// Suggestions
	if len(report.Suggestions) > 0 && verbose {
		b.WriteString("Suggestions:\n")
		for _, suggestion := range report.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// progressBar creates a simple ASCII progress bar.
func progressBar(value, maxVal int) string {
	width := 20
	filled := value * width / maxVal
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func init() {
	// Add security command to root
	rootCmd.AddCommand(securityCmd)

	// Add subcommands
	securityCmd.AddCommand(securityWeakCmd)
	securityCmd.AddCommand(securityReusedCmd)
	securityCmd.AddCommand(securityStaleCmd)

	// Add flags
	securityCmd.Flags().BoolVarP(&securityVerbose, "verbose", "v", false, "Show all details including suggestions")
	securityCmd.Flags().BoolVar(&securityJSON, "json", false, "Output in JSON format")
}
