package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/vault"
)

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordChangeCmd)
}

// passwordCmd is the parent command for password operations.
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Master password operations",
}

// passwordChangeCmd changes the master password.
var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password",
	Long: `Change the master password by re-wrapping the data encryption key (DEK).

Stored credentials are not re-encrypted and remain accessible with the new
password. The keyring file is replaced atomically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kr := vault.NewKeyring(cfg.Vault.Dir)
		if !kr.Exists() {
			return fmt.Errorf("no vault at %s: run 'quantavault init' first", cfg.Vault.Dir)
		}

		fmt.Println("Changing master password...")

		current, err := readSecret("Enter current password: ")
		if err != nil {
			return err
		}
		next1, err := readSecret("Enter new password: ")
		if err != nil {
			return err
		}
		next2, err := readSecret("Confirm new password: ")
		if err != nil {
			return err
		}
		if next1 != next2 {
			return errors.New("new passwords do not match")
		}

		validation := vault.ValidateMasterPassword(next1)
		if !validation.Valid {
			return fmt.Errorf("password validation failed: %s", validation.Warnings[0])
		}
		fmt.Printf("New password strength: %s (%d/100)\n", validation.Tier, validation.Score)
		for _, warning := range validation.Warnings {
			fmt.Printf("Warning: %s\n", warning)
		}

		if err := kr.ChangePassword(current, next1); err != nil {
			if errors.Is(err, vault.ErrInvalidPassword) {
				return errors.New("current password is incorrect")
			}
			if errors.Is(err, vault.ErrSamePassword) {
				return errors.New("new password must be different from current password")
			}
			return fmt.Errorf("failed to change password: %w", err)
		}

		// The DEK is unchanged, so the journal key still derives from it.
		sess, err := kr.Unlock(next1)
		if err != nil {
			return fmt.Errorf("password changed but re-unlock failed: %w", err)
		}
		defer sess.Close()
		j := audit.NewLogger(cfg.JournalDir())
		if err := j.SetHMACKey(sess.KeyMaterial()); err == nil {
			if err := j.LogSuccess(audit.OpPasswordChange, audit.SourceCLI, ""); err != nil {
				log.Warn("journal write failed", "op", audit.OpPasswordChange, "error", err)
			}
		}

		fmt.Println("Password changed successfully!")
		return nil
	},
}
