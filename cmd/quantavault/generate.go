package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/pkg/generator"
	"github.com/forest6511/quantavault/pkg/strength"
)

const (
	defaultPasswordCount = 1
	maxPasswordCount     = 100
	maxExcludeLength     = 256
)

// Generate command flags
var (
	generateLength           int
	generateCount            int
	generateNoSymbols        bool
	generateNoNumbers        bool
	generateNoUppercase      bool
	generateNoLowercase      bool
	generateExcludeAmbiguous bool
	generateExclude          string
	generateCopy             bool
	generatePassphrase       bool
	generateWords            int
	generateSeparator        string
	generateShowStrength     bool
)

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(strengthCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", generator.DefaultLength, "Password length (8-64)")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoNumbers, "no-numbers", false, "Exclude numbers")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().BoolVar(&generateExcludeAmbiguous, "exclude-ambiguous", false, "Exclude look-alike characters (il1LoO0)")
	generateCmd.Flags().StringVar(&generateExclude, "exclude", "", "Characters to exclude")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
	generateCmd.Flags().BoolVarP(&generatePassphrase, "passphrase", "p", false, "Generate a word passphrase instead")
	generateCmd.Flags().IntVarP(&generateWords, "words", "w", generator.DefaultWordCount, "Passphrase word count (1-20)")
	generateCmd.Flags().StringVar(&generateSeparator, "separator", generator.DefaultSeparator, "Passphrase separator")
	generateCmd.Flags().BoolVarP(&generateShowStrength, "strength", "s", false, "Print the strength score after each password")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate cryptographically secure random passwords or passphrases.

Examples:
  # Generate a 16-character password (default)
  quantavault generate

  # Generate a 32-character password without symbols
  quantavault generate -l 32 --no-symbols

  # Generate 5 passwords
  quantavault generate -n 5

  # Generate a passphrase of 6 words separated by dots
  quantavault generate -p -w 6 --separator .

  # Generate password excluding ambiguous characters
  quantavault generate --exclude-ambiguous`,
	RunE: executeGenerate,
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	// Validate flags
	if err := validateGenerateFlags(); err != nil {
		return err
	}

	// Generate passwords
	passwords := make([]string, generateCount)
	for i := 0; i < generateCount; i++ {
		password, err := generateOne()
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		passwords[i] = password
	}

	// Output passwords
	for _, password := range passwords {
		if generateShowStrength {
			score := strength.Score(password)
			fmt.Printf("%s\t%d/%s\n", password, score, strength.TierOf(score))
			continue
		}
		fmt.Println(password)
	}

	// Copy to clipboard if requested
	if generateCopy && len(passwords) > 0 {
		if err := copyToClipboard(passwords[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Password copied to clipboard")
		}
	}

	return nil
}

// validateGenerateFlags validates the generate command flags
func validateGenerateFlags() error {
	if generateCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if generateCount > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	if generatePassphrase {
		if generateWords < 1 || generateWords > generator.MaxWordCount {
			return fmt.Errorf("word count must be between 1 and %d", generator.MaxWordCount)
		}
		return nil
	}
	if generateLength < generator.MinLength {
		return fmt.Errorf("password length must be at least %d characters", generator.MinLength)
	}
	if generateLength > generator.MaxLength {
		return fmt.Errorf("password length must be at most %d characters", generator.MaxLength)
	}
	if len(generateExclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// buildGeneratorConfig builds the generator configuration from flags
func buildGeneratorConfig() generator.Config {
	return generator.Config{
		Length:           generateLength,
		Lowercase:        !generateNoLowercase,
		Uppercase:        !generateNoUppercase,
		Digits:           !generateNoNumbers,
		Symbols:          !generateNoSymbols,
		ExcludeAmbiguous: generateExcludeAmbiguous,
		Exclude:          generateExclude,
	}
}

func generateOne() (string, error) {
	if generatePassphrase {
		return generator.Passphrase(generateWords, generateSeparator)
	}
	return generator.Random(buildGeneratorConfig())
}

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		// Try wl-copy first, then xclip, then xsel
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		} else {
			return fmt.Errorf("clipboard tool not found: install wl-clipboard, xclip or xsel")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

var strengthCmd = &cobra.Command{
	Use:   "strength [password]",
	Short: "Score a password without storing it",
	Long: `Score a password from 0 to 100 and print improvement hints.
Without an argument the password is read from the terminal, which keeps it
out of shell history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			p, err := readSecret("Password: ")
			if err != nil {
				return err
			}
			password = p
		}

		fmt.Print(formatStrength(strength.Evaluate(password)))
		return nil
	},
}

// formatStrength renders a strength result with a bar and hints.
func formatStrength(res strength.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Strength: %d/100 %s (%s)\n", res.Score, progressBar(res.Score, 100), res.Tier)
	for _, hint := range res.Hints {
		fmt.Fprintf(&b, "  - %s\n", hint)
	}
	return b.String()
}
