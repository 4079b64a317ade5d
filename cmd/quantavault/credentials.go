package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/internal/cli"
	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/generator"
	"github.com/forest6511/quantavault/pkg/vault"
)

// Flags for add and edit
var (
	credTitle    string
	credUsername string
	credURL      string
	credNotes    string
	credCategory string
	credFavorite bool
	credGenerate bool
	credLength   int
	editSecret   bool
)

// Flags for list and get
var (
	listCategory  string
	listFavorites bool
	listQuery     string
	listMatch     string
	listJSON      bool

	getShowMetadata bool

	deleteForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(favoriteCmd)

	addCmd.Flags().StringVarP(&credUsername, "username", "u", "", "Username or email (required)")
	addCmd.Flags().StringVar(&credURL, "url", "", "Website URL")
	addCmd.Flags().StringVar(&credNotes, "notes", "", "Free-form notes")
	addCmd.Flags().StringVar(&credCategory, "category", string(vault.DefaultCategory), "Category (personal, work, finance, social, imported, other)")
	addCmd.Flags().BoolVar(&credFavorite, "favorite", false, "Mark as favorite")
	addCmd.Flags().BoolVarP(&credGenerate, "generate", "g", false, "Generate a random password instead of prompting")
	addCmd.Flags().IntVarP(&credLength, "length", "l", generator.DefaultLength, "Generated password length (8-64)")

	editCmd.Flags().StringVar(&credTitle, "title", "", "New title")
	editCmd.Flags().StringVarP(&credUsername, "username", "u", "", "New username")
	editCmd.Flags().StringVar(&credURL, "url", "", "New URL")
	editCmd.Flags().StringVar(&credNotes, "notes", "", "New notes")
	editCmd.Flags().StringVar(&credCategory, "category", "", "New category")
	editCmd.Flags().BoolVar(&credFavorite, "favorite", false, "Set favorite flag")
	editCmd.Flags().BoolVar(&editSecret, "password", false, "Prompt for a new password")
	editCmd.Flags().BoolVarP(&credGenerate, "generate", "g", false, "Replace the password with a generated one")
	editCmd.Flags().IntVarP(&credLength, "length", "l", generator.DefaultLength, "Generated password length (8-64)")

	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Show favorites only")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, username and URL")
	listCmd.Flags().StringVar(&listMatch, "match", "", "Filter titles by glob pattern (e.g. 'AWS*')")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format (secrets masked)")

	getCmd.Flags().BoolVar(&getShowMetadata, "show-metadata", false, "Show all fields, not just the password")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

// initCmd initializes a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		kr := vault.NewKeyring(cfg.Vault.Dir)
		if kr.Exists() {
			return fmt.Errorf("vault already exists at %s", cfg.Vault.Dir)
		}

		fmt.Println("Initializing new vault...")

		password1, err := readSecret("Enter master password: ")
		if err != nil {
			return err
		}
		password2, err := readSecret("Confirm master password: ")
		if err != nil {
			return err
		}
		if password1 != password2 {
			return errors.New("passwords do not match")
		}

		result := vault.ValidateMasterPassword(password1)
		if !result.Valid {
			// Hard errors (length requirements)
			return fmt.Errorf("password validation failed: %s", result.Warnings[0])
		}
		// Warnings are advisory, not blocking
		fmt.Printf("Password strength: %s (%d/100)\n", result.Tier, result.Score)
		for _, warning := range result.Warnings {
			fmt.Printf("Warning: %s\n", warning)
		}

		if err := kr.Init(password1); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		sess, err := kr.Unlock(password1)
		if err != nil {
			return fmt.Errorf("failed to open new vault: %w", err)
		}
		defer sess.Close()
		j := audit.NewLogger(cfg.JournalDir())
		if err := j.SetHMACKey(sess.KeyMaterial()); err != nil {
			return err
		}
		if err := j.LogSuccess(audit.OpVaultInit, audit.SourceCLI, ""); err != nil {
			log.Warn("journal write failed", "op", audit.OpVaultInit, "error", err)
		}

		fmt.Printf("Vault initialized successfully at %s\n", cfg.Vault.Dir)
		return nil
	},
}

// addCmd stores a new credential
var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Adds a credential",
	Long: `Adds a credential. The password is prompted for, or generated with --generate.

Examples:
  quantavault add GitHub -u octocat --url https://github.com
  quantavault add "Bank" -u me@example.com --category finance -g -l 24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ensureUnlocked(ctx, audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		secret, err := newSecret()
		if err != nil {
			return err
		}

		c, err := v.Create(ctx, vault.Draft{
			Owner:    cfg.Vault.Owner,
			Title:    args[0],
			Username: credUsername,
			Secret:   secret,
			URL:      credURL,
			Notes:    credNotes,
			Category: vault.Category(credCategory),
			Favorite: credFavorite,
		})
		if err != nil {
			return fmt.Errorf("failed to add credential: %w", err)
		}

		fmt.Printf("Credential '%s' saved (%s)\n", c.Title, c.ID)
		fmt.Printf("Strength: %d/100 (%s)\n", c.StrengthScore, c.Tier())
		return nil
	},
}

// newSecret generates or prompts for a credential password.
func newSecret() (string, error) {
	if credGenerate {
		genCfg := generator.DefaultConfig()
		genCfg.Length = credLength
		secret, err := generator.Random(genCfg)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Generated a new password")
		return secret, nil
	}

	secret, err := readSecret("Password: ")
	if err != nil {
		return "", err
	}
	if err := vault.ValidateFormSecret(secret); err != nil {
		return "", err
	}
	again, err := readSecret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if secret != again {
		return "", errors.New("passwords do not match")
	}
	return secret, nil
}

// ownedCredentials lists the configured owner's credentials.
func ownedCredentials(cmd *cobra.Command) ([]vault.Credential, error) {
	creds, err := v.List(cmd.Context(), cfg.Vault.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// getCmd prints a credential's password
var getCmd = &cobra.Command{
	Use:   "get [title|id]",
	Short: "Prints a credential's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context(), audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		creds, err := ownedCredentials(cmd)
		if err != nil {
			return err
		}
		ref, err := cli.Resolve(args[0], creds)
		if err != nil {
			return err
		}
		// Re-read through Get so the access is journaled.
		c, err := v.Get(cmd.Context(), ref.ID)
		if err != nil {
			return fmt.Errorf("failed to get credential: %w", err)
		}

		if !getShowMetadata {
			os.Stdout.WriteString(c.Secret)
			fmt.Println()
			return nil
		}

		fmt.Printf("ID:       %s\n", c.ID)
		fmt.Printf("Title:    %s\n", c.Title)
		fmt.Printf("Username: %s\n", c.Username)
		fmt.Printf("Password: %s\n", c.Secret)
		if c.URL != "" {
			fmt.Printf("URL:      %s\n", c.URL)
		}
		if c.Notes != "" {
			fmt.Printf("Notes:    %s\n", c.Notes)
		}
		fmt.Printf("Category: %s\n", c.Category)
		fmt.Printf("Favorite: %t\n", c.Favorite)
		fmt.Printf("Strength: %d/100 (%s)\n", c.StrengthScore, c.Tier())
		fmt.Printf("Created:  %s\n", c.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:  %s\n", c.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

// listEntry is the JSON shape of a listed credential.
type listEntry struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Username      string `json:"username"`
	URL           string `json:"url,omitempty"`
	Category      string `json:"category"`
	Favorite      bool   `json:"favorite"`
	StrengthScore int    `json:"strength_score"`
	Tier          string `json:"tier"`
	UpdatedAt     string `json:"updated_at"`
}

// listCmd lists credentials without their passwords
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(cmd.Context(), audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		creds, err := ownedCredentials(cmd)
		if err != nil {
			return err
		}
		creds, err = filterCredentials(creds)
		if err != nil {
			return err
		}

		if listJSON {
			entries := make([]listEntry, 0, len(creds))
			for _, c := range creds {
				entries = append(entries, toListEntry(c))
			}
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if len(creds) == 0 {
			fmt.Println("No credentials found")
			return nil
		}
		for _, c := range creds {
			fmt.Println(formatListLine(c))
		}
		fmt.Printf("\nTotal: %d credentials\n", len(creds))
		return nil
	},
}

// filterCredentials applies the list flags.
func filterCredentials(creds []vault.Credential) ([]vault.Credential, error) {
	filter := vault.Filter{
		Category:      vault.Category(listCategory),
		FavoritesOnly: listFavorites,
		Query:         listQuery,
	}
	creds = filter.Apply(creds)

	if listMatch == "" {
		return creds, nil
	}
	matched := make([]vault.Credential, 0, len(creds))
	for _, c := range creds {
		ok, err := cli.MatchTitle(listMatch, c.Title)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func toListEntry(c vault.Credential) listEntry {
	return listEntry{
		ID:            c.ID,
		Title:         c.Title,
		Username:      c.Username,
		URL:           c.URL,
		Category:      string(c.Category),
		Favorite:      c.Favorite,
		StrengthScore: c.StrengthScore,
		Tier:          string(c.Tier()),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

// formatListLine renders: [*] TITLE (USERNAME) [CATEGORY] SCORE/TIER ID
func formatListLine(c vault.Credential) string {
	var b strings.Builder
	if c.Favorite {
		b.WriteString("* ")
	} else {
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "%s (%s) [%s] %d/%s", c.Title, c.Username, c.Category, c.StrengthScore, c.Tier())
	fmt.Fprintf(&b, " %s", c.ID)
	return b.String()
}

// editCmd changes fields of a credential
var editCmd = &cobra.Command{
	Use:   "edit [title|id]",
	Short: "Edits a credential",
	Long: `Edits a credential. Only the given flags are changed.

Examples:
  quantavault edit GitHub --username new-login
  quantavault edit GitHub --password
  quantavault edit GitHub --generate --length 32`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ensureUnlocked(ctx, audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		patch, err := buildPatch(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return errors.New("nothing to change: pass at least one field flag")
		}

		creds, err := ownedCredentials(cmd)
		if err != nil {
			return err
		}
		ref, err := cli.Resolve(args[0], creds)
		if err != nil {
			return err
		}

		c, err := v.Update(ctx, ref.ID, patch)
		if err != nil {
			return fmt.Errorf("failed to update credential: %w", err)
		}
		fmt.Printf("Credential '%s' updated\n", c.Title)
		if patch.Secret != nil {
			fmt.Printf("Strength: %d/100 (%s)\n", c.StrengthScore, c.Tier())
		}
		return nil
	},
}

// buildPatch converts changed edit flags into a patch.
func buildPatch(cmd *cobra.Command) (vault.Patch, error) {
	var p vault.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		p.Title = &credTitle
	}
	if flags.Changed("username") {
		p.Username = &credUsername
	}
	if flags.Changed("url") {
		p.URL = &credURL
	}
	if flags.Changed("notes") {
		p.Notes = &credNotes
	}
	if flags.Changed("category") {
		category := vault.Category(credCategory)
		p.Category = &category
	}
	if flags.Changed("favorite") {
		p.Favorite = &credFavorite
	}
	if editSecret || credGenerate {
		secret, err := newSecret()
		if err != nil {
			return vault.Patch{}, err
		}
		p.Secret = &secret
	}
	return p, nil
}

// deleteCmd deletes credentials
var deleteCmd = &cobra.Command{
	Use:   "delete [title|id|pattern]...",
	Short: "Deletes credentials",
	Long: `Deletes credentials by ID, title or title glob pattern.

Examples:
  quantavault delete GitHub
  quantavault delete "Old *" --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ensureUnlocked(ctx, audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		creds, err := ownedCredentials(cmd)
		if err != nil {
			return err
		}
		targets, err := cli.ExpandPatterns(args, creds)
		if err != nil {
			return err
		}

		if !deleteForce {
			fmt.Printf("This will delete %d credential(s):\n", len(targets))
			for _, c := range cli.SortByTitle(targets) {
				fmt.Printf("  - %s (%s)\n", c.Title, c.Username)
			}
			if !confirm("Are you sure?") {
				fmt.Println("Aborted")
				return nil
			}
		}

		for _, c := range targets {
			if err := v.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("failed to delete '%s': %w", c.Title, err)
			}
			fmt.Printf("Credential '%s' deleted\n", c.Title)
		}
		return nil
	},
}

// favoriteCmd toggles the favorite flag
var favoriteCmd = &cobra.Command{
	Use:   "favorite [title|id]",
	Short: "Toggles a credential's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := ensureUnlocked(ctx, audit.SourceCLI); err != nil {
			return err
		}
		defer lockVault()

		creds, err := ownedCredentials(cmd)
		if err != nil {
			return err
		}
		ref, err := cli.Resolve(args[0], creds)
		if err != nil {
			return err
		}
		c, err := v.ToggleFavorite(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("failed to toggle favorite: %w", err)
		}
		if c.Favorite {
			fmt.Printf("'%s' added to favorites\n", c.Title)
		} else {
			fmt.Printf("'%s' removed from favorites\n", c.Title)
		}
		return nil
	},
}
