package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/internal/cli"
	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/importer"
	"github.com/forest6511/quantavault/pkg/vault"
)

// maxImportFileSize caps the export file read into memory.
const maxImportFileSize = 5 * 1024 * 1024 // 5 MB

var (
	importFormat string
	importDryRun bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFormat, "format", "f", string(importer.FormatGeneric),
		"Export format: "+strings.Join(importer.Formats(), ", "))
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without making changes")
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import passwords exported from another manager",
	Long: `Import passwords from a browser or password manager export.

Rows without a password, or with too few columns, are skipped and reported.
Imported credentials land in the "imported" category.

Examples:
  # Chrome / Google password export
  quantavault import passwords.csv --format chrome

  # Bitwarden unencrypted JSON export
  quantavault import bitwarden.json --format bitwarden-json

  # Any CSV with a header row (name/url/username/password/notes)
  quantavault import export.csv

  # Preview import without making changes
  quantavault import export.csv --format lastpass --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: executeImport,
}

func executeImport(cmd *cobra.Command, args []string) error {
	format, err := importer.ParseFormat(importFormat)
	if err != nil {
		return err
	}

	data, err := readImportFile(args[0])
	if err != nil {
		return err
	}

	result := importer.ParseDetailed(data, format)
	fmt.Print(formatSkipped(result.Skipped))

	if len(result.Candidates) == 0 {
		return fmt.Errorf("no importable passwords found in %s", args[0])
	}

	if importDryRun {
		fmt.Printf("Would import %d credentials (%s format):\n", len(result.Candidates), result.Format)
		for _, c := range result.Candidates {
			fmt.Printf("  + %s (%s)\n", c.Title, c.Username)
		}
		return nil
	}

	ctx := cmd.Context()
	if err := ensureUnlocked(ctx, audit.SourceCLI); err != nil {
		return err
	}
	defer lockVault()

	summary := v.ImportAll(ctx, importer.Drafts(result.Candidates, cfg.Vault.Owner))
	fmt.Print(formatImportSummary(summary))
	if summary.Imported == 0 {
		return fmt.Errorf("import failed: none of %d credentials could be stored", summary.Failed)
	}
	return nil
}

// readImportFile reads the export, refusing files over maxImportFileSize.
func readImportFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxImportFileSize {
		return nil, fmt.Errorf("%s is too large (max %d MB)", path, maxImportFileSize/(1024*1024))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// formatSkipped groups skipped rows by reason.
func formatSkipped(skipped []importer.Skipped) string {
	if len(skipped) == 0 {
		return ""
	}
	byReason := make(map[string][]int)
	for _, s := range skipped {
		byReason[s.Reason] = append(byReason[s.Reason], s.Line)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Skipped %d rows:\n", len(skipped))
	for _, reason := range cli.MapKeys(byReason) {
		lines := byReason[reason]
		fmt.Fprintf(&b, "  %s: %d (line %s)\n", reason, len(lines), joinInts(lines))
	}
	return b.String()
}

// formatImportSummary renders the import outcome.
func formatImportSummary(s vault.ImportSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported: %d\n", s.Imported)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "Failed:   %d\n", s.Failed)
		for _, msg := range s.Errors {
			fmt.Fprintf(&b, "  - %s\n", msg)
		}
	}
	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, n := range values {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
