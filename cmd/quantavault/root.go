package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forest6511/quantavault/internal/config"
	"github.com/forest6511/quantavault/internal/logger"
	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/crypto"
	"github.com/forest6511/quantavault/pkg/vault"
)

// PasswordEnv holds the master password for non-interactive commands.
const PasswordEnv = config.EnvPrefix + "PASSWORD"

var version = "dev"

var (
	vaultDir string

	cfg *config.Config
	log *slog.Logger

	// Set by ensureUnlocked, released by lockVault.
	v       *vault.Vault
	journal *audit.Logger
	session *vault.Session
)

var rootCmd = &cobra.Command{
	Use:          "quantavault",
	Short:        "quantavault is a local-first password manager",
	Long:         `Store, generate and audit passwords from the command line, over HTTP or through MCP.`,
	Version:      version,
	SilenceUsage: true,
	// PersistentPreRunE runs before the root command and all subcommands.
	// This loads the configuration and the logger; the vault stays locked.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(vaultDir)
		if err != nil {
			return err
		}
		cfg = c
		log = logger.New(os.Stderr, cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultDir, "dir", "", "Vault directory (default $QV_VAULT_DIR or ~/.quantavault)")
}

// ensureUnlocked unlocks the keyring, opens the journal and the configured
// store, and builds the vault facade. Callers must defer lockVault.
func ensureUnlocked(ctx context.Context, source string) error {
	if v != nil {
		return nil
	}

	kr := vault.NewKeyring(cfg.Vault.Dir)
	if !kr.Exists() {
		return fmt.Errorf("no vault at %s: run 'quantavault init' first", cfg.Vault.Dir)
	}

	password, err := masterPassword(source)
	if err != nil {
		return err
	}
	sess, err := kr.Unlock(password)
	if err != nil {
		log.Warn("unlock failed", "dir", cfg.Vault.Dir, "error", err)
		return fmt.Errorf("failed to unlock vault: %w", err)
	}

	j := audit.NewLogger(cfg.JournalDir())
	if err := j.SetHMACKey(sess.KeyMaterial()); err != nil {
		sess.Close()
		return err
	}
	if err := j.LogSuccess(audit.OpVaultUnlock, source, ""); err != nil {
		log.Warn("journal write failed", "op", audit.OpVaultUnlock, "error", err)
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		sess.Close()
		return err
	}

	session = sess
	journal = j
	v = vault.New(repo, sess.Sealer(),
		vault.WithRecorder(j, source),
		vault.WithLogger(log),
	)
	log.Debug("vault unlocked", "driver", cfg.Store.Driver, "source", source)
	return nil
}

// lockVault closes the store and wipes the session key.
func lockVault() {
	if v != nil {
		if err := v.Close(); err != nil {
			log.Warn("failed to close store", "error", err)
		}
		v = nil
	}
	if session != nil {
		session.Close()
		session = nil
	}
	journal = nil
}

// openRepository opens the backend selected by the configuration.
func openRepository(ctx context.Context, c *config.Config) (vault.Repository, error) {
	switch c.Store.Driver {
	case config.DriverSQLite:
		return vault.OpenSQLite(ctx, c.SQLitePath())
	case config.DriverPostgres:
		// OpenPostgres applies pending migrations
		return vault.OpenPostgres(ctx, c.Store.DSN)
	case config.DriverMemory:
		return vault.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
}

// masterPassword reads the master password from QV_PASSWORD for server
// sources, and from the terminal otherwise. The variable is cleared once read.
func masterPassword(source string) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok && source != audit.SourceCLI {
		_ = os.Unsetenv(PasswordEnv)
		if pw == "" {
			return "", fmt.Errorf("%s is empty", PasswordEnv)
		}
		return pw, nil
	}
	if source != audit.SourceCLI {
		return "", fmt.Errorf("%s environment variable is required", PasswordEnv)
	}
	return readSecret("Enter master password: ")
}

// readSecret prompts on stderr and reads a line without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr) // Add newline after hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		defer crypto.SecureWipe(b)
		return string(b), nil
	}
	// Fallback for piped input
	return readLine(stdin)
}

var stdin = bufio.NewReader(os.Stdin)

// readLine reads a single line, trimming the trailing newline
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(value, "\r"), nil
}

// prompt asks for a single line of visible input.
func prompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	return readLine(stdin)
}

// confirm asks a yes/no question; anything but y or yes is no.
func confirm(question string) bool {
	answer, err := prompt(question + " [y/N]")
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// parseDuration parses a duration string like "30d", "1y", "24h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return time.ParseDuration(s)
	}

	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		// Try standard time.ParseDuration
		return time.ParseDuration(s)
	}
}
