package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/pkg/audit"
)

// Journal flags
var (
	journalLimit int
	journalSince string
	journalJSON  bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalVerifyCmd)

	journalListCmd.Flags().IntVar(&journalLimit, "limit", 100, "Maximum number of events to show")
	journalListCmd.Flags().StringVar(&journalSince, "since", "", "Show events since duration (e.g., 24h, 7d)")
	journalVerifyCmd.Flags().BoolVar(&journalJSON, "json", false, "Output the result as JSON")
}

// journalCmd is the parent command for journal operations
var journalCmd = &cobra.Command{
	Use:     "journal",
	Aliases: []string{"audit"},
	Short:   "Tamper-evident operation journal",
}

// journalListCmd lists journal entries
var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if journalSince != "" {
			duration, err := parseDuration(journalSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}

		// Unlock to derive the journal key
		if err := ensureUnlocked(cmd.Context(), audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		events, err := journal.ListEvents(journalLimit, since)
		if err != nil {
			return fmt.Errorf("failed to list journal events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No journal events found")
			return nil
		}

		for _, event := range events {
			fmt.Println(formatEvent(event))
		}
		fmt.Printf("\nTotal: %d events\n", len(events))
		return nil
	},
}

// formatEvent renders: TIMESTAMP OPERATION SOURCE RESULT [target] [error]
func formatEvent(event audit.Event) string {
	line := fmt.Sprintf("%s %s %s %s", event.Timestamp, event.Operation, event.Source, event.Result)
	if event.Target != "" {
		// Show truncated target hash
		target := event.Target
		if len(target) > 16 {
			target = target[:16] + "..."
		}
		line += " target:" + target
	}
	if event.Error != nil {
		line += " error:" + event.Error.Code
	}
	return line
}

// journalVerifyCmd verifies journal integrity
var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify journal HMAC chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context(), audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		result, err := journal.Verify()
		if err != nil {
			return fmt.Errorf("failed to verify journal: %w", err)
		}

		if journalJSON {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		} else {
			fmt.Print(formatVerifyResult(result))
		}

		if !result.Valid {
			return errors.New("journal integrity check failed")
		}
		return nil
	},
}

func formatVerifyResult(result *audit.VerifyResult) string {
	if result.Valid {
		return fmt.Sprintf("Journal verified: %d records, chain intact\n", result.RecordsTotal)
	}
	s := "Journal verification FAILED\n"
	s += fmt.Sprintf("  Records total: %d\n", result.RecordsTotal)
	s += fmt.Sprintf("  Records verified: %d\n", result.RecordsVerified)
	s += "  Errors:\n"
	for _, e := range result.Errors {
		s += fmt.Sprintf("    - %s\n", e)
	}
	return s
}
