package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/quantavault/pkg/generator"
	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/strength"
	"github.com/forest6511/quantavault/pkg/vault"
)

// PasswordGenerateInput represents input for password_generate tool.
// Nil fields take the generator defaults.
type PasswordGenerateInput struct {
	Length           *int  `json:"length,omitempty"`
	Lowercase        *bool `json:"lowercase,omitempty"`
	Uppercase        *bool `json:"uppercase,omitempty"`
	Digits           *bool `json:"digits,omitempty"`
	Symbols          *bool `json:"symbols,omitempty"`
	ExcludeAmbiguous *bool `json:"exclude_ambiguous,omitempty"`
}

// GeneratedOutput represents output for the generate tools.
type GeneratedOutput struct {
	Value string        `json:"value"`
	Score int           `json:"score"`
	Tier  strength.Tier `json:"tier"`
}

// PassphraseGenerateInput represents input for passphrase_generate tool.
type PassphraseGenerateInput struct {
	WordCount *int    `json:"word_count,omitempty"`
	Separator *string `json:"separator,omitempty"`
}

// PasswordStrengthInput represents input for password_strength tool.
type PasswordStrengthInput struct {
	Password string `json:"password"`
}

// CredentialListInput represents input for credential_list tool.
type CredentialListInput struct {
	Category      string `json:"category,omitempty"`
	Query         string `json:"query,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
}

// CredentialListOutput represents output for credential_list tool.
type CredentialListOutput struct {
	Credentials []CredentialInfo `json:"credentials"`
}

// CredentialInfo represents a credential with its secret masked.
type CredentialInfo struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Username      string        `json:"username"`
	URL           string        `json:"url,omitempty"`
	Category      string        `json:"category"`
	Favorite      bool          `json:"favorite"`
	MaskedSecret  string        `json:"masked_secret"`
	StrengthScore int           `json:"strength_score"`
	Tier          strength.Tier `json:"tier"`
	HasNotes      bool          `json:"has_notes"`
	UpdatedAt     string        `json:"updated_at"`
}

// SecurityReportInput represents input for security_report tool.
type SecurityReportInput struct{}

// SecurityReportOutput represents output for security_report tool.
type SecurityReportOutput struct {
	GeneratedAt string             `json:"generated_at"`
	Total       int                `json:"total"`
	Score       security.Score     `json:"score"`
	Findings    []security.Finding `json:"findings"`
	Suggestions []string           `json:"suggestions"`
}

// handlePasswordGenerate handles the password_generate tool call.
func (s *Server) handlePasswordGenerate(_ context.Context, _ *mcp.CallToolRequest, input PasswordGenerateInput) (*mcp.CallToolResult, GeneratedOutput, error) {
	cfg := generator.DefaultConfig()
	if input.Length != nil {
		cfg.Length = *input.Length
	}
	setBool(&cfg.Lowercase, input.Lowercase)
	setBool(&cfg.Uppercase, input.Uppercase)
	setBool(&cfg.Digits, input.Digits)
	setBool(&cfg.Symbols, input.Symbols)
	setBool(&cfg.ExcludeAmbiguous, input.ExcludeAmbiguous)

	if cfg.Length < generator.MinLength || cfg.Length > generator.MaxLength {
		return nil, GeneratedOutput{}, fmt.Errorf("length must be between %d and %d", generator.MinLength, generator.MaxLength)
	}

	password, err := generator.Random(cfg)
	if err != nil {
		return nil, GeneratedOutput{}, err
	}
	return nil, scored(password), nil
}

// handlePassphraseGenerate handles the passphrase_generate tool call.
func (s *Server) handlePassphraseGenerate(_ context.Context, _ *mcp.CallToolRequest, input PassphraseGenerateInput) (*mcp.CallToolResult, GeneratedOutput, error) {
	words := generator.DefaultWordCount
	if input.WordCount != nil {
		words = *input.WordCount
	}
	if words > generator.MaxWordCount {
		return nil, GeneratedOutput{}, fmt.Errorf("word_count must be at most %d", generator.MaxWordCount)
	}
	sep := generator.DefaultSeparator
	if input.Separator != nil {
		sep = *input.Separator
	}

	phrase, err := generator.Passphrase(words, sep)
	if err != nil {
		return nil, GeneratedOutput{}, err
	}
	return nil, scored(phrase), nil
}

// handlePasswordStrength handles the password_strength tool call.
func (s *Server) handlePasswordStrength(_ context.Context, _ *mcp.CallToolRequest, input PasswordStrengthInput) (*mcp.CallToolResult, strength.Result, error) {
	return nil, strength.Evaluate(input.Password), nil
}

// handleCredentialList handles the credential_list tool call.
func (s *Server) handleCredentialList(ctx context.Context, _ *mcp.CallToolRequest, input CredentialListInput) (*mcp.CallToolResult, CredentialListOutput, error) {
	creds, err := s.vault.List(ctx, s.owner)
	if err != nil {
		return nil, CredentialListOutput{}, fmt.Errorf("failed to list credentials: %w", err)
	}

	filter := vault.Filter{
		Category:      vault.Category(input.Category),
		FavoritesOnly: input.FavoritesOnly,
		Query:         input.Query,
	}

	// Convert to output format (no values!)
	output := CredentialListOutput{
		Credentials: make([]CredentialInfo, 0, len(creds)),
	}
	for _, c := range filter.Apply(creds) {
		output.Credentials = append(output.Credentials, CredentialInfo{
			ID:            c.ID,
			Title:         c.Title,
			Username:      c.Username,
			URL:           c.URL,
			Category:      string(c.Category),
			Favorite:      c.Favorite,
			MaskedSecret:  maskValue(c.Secret),
			StrengthScore: c.StrengthScore,
			Tier:          c.Tier(),
			HasNotes:      c.Notes != "",
			UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
		})
	}

	return nil, output, nil
}

// handleSecurityReport handles the security_report tool call.
func (s *Server) handleSecurityReport(ctx context.Context, _ *mcp.CallToolRequest, _ SecurityReportInput) (*mcp.CallToolResult, SecurityReportOutput, error) {
	creds, err := s.vault.List(ctx, s.owner)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, SecurityReportOutput{}, err
		}
		return nil, SecurityReportOutput{}, fmt.Errorf("failed to list credentials: %w", err)
	}
	report := s.auditor.Report(creds)
	s.logger.Debug("security report generated", "total", report.Total, "findings", len(report.Findings))

	findings := report.Findings
	if findings == nil {
		findings = []security.Finding{}
	}
	return nil, SecurityReportOutput{
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Total:       report.Total,
		Score:       report.Score,
		Findings:    findings,
		Suggestions: report.Suggestions,
	}, nil
}

func scored(value string) GeneratedOutput {
	score := strength.Score(value)
	return GeneratedOutput{Value: value, Score: score, Tier: strength.TierOf(score)}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// maskValue returns a masked representation of the value.
// 1-4 characters: all asterisks; 5-8: last 2 shown; 9+: last 4 shown.
func maskValue(value string) string {
	runes := []rune(value)
	length := utf8.RuneCountInString(value)
	if length == 0 {
		return ""
	}

	switch {
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + string(runes[length-2:])
	default:
		return strings.Repeat("*", length-4) + string(runes[length-4:])
	}
}
