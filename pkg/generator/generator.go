// Package generator produces random passwords and multi-word passphrases
// using crypto/rand.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// Character pools. They do not overlap.
const (
	CharsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	CharsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetDigits    = "0123456789"
	CharsetSymbols   = "!@#$%^&*()_-+=[]{}|:;\"'<>,.?/~`"

	// Ambiguous lists glyphs that are easy to confuse when read aloud or copied by hand.
	Ambiguous = "il1LoO0"
)

// Length bounds offered to users by the CLI and HTTP API.
// Random itself accepts any length that can hold one character per enabled class.
const (
	MinLength     = 8
	MaxLength     = 64
	DefaultLength = 16

	DefaultWordCount = 4
	DefaultSeparator = "-"
	MaxWordCount     = 20
	maxNumberToken   = 100
)

// ErrInvalidConfig is returned when a configuration cannot produce a secret.
var ErrInvalidConfig = errors.New("generator: invalid config")

// Config controls random password generation.
type Config struct {
	Length           int    `json:"length"`
	Lowercase        bool   `json:"lowercase"`
	Uppercase        bool   `json:"uppercase"`
	Digits           bool   `json:"digits"`
	Symbols          bool   `json:"symbols"`
	ExcludeAmbiguous bool   `json:"exclude_ambiguous"`
	Exclude          string `json:"exclude,omitempty"` // extra characters to drop from every pool
}

// DefaultConfig returns a 16 character configuration with every class enabled.
func DefaultConfig() Config {
	return Config{
		Length:    DefaultLength,
		Lowercase: true,
		Uppercase: true,
		Digits:    true,
		Symbols:   true,
	}
}

// pools returns the filtered pool of every enabled class.
// When no class is enabled the lowercase pool is used.
func (c Config) pools() []string {
	var active []string
	if c.Lowercase {
		active = append(active, CharsetLowercase)
	}
	if c.Uppercase {
		active = append(active, CharsetUppercase)
	}
	if c.Digits {
		active = append(active, CharsetDigits)
	}
	if c.Symbols {
		active = append(active, CharsetSymbols)
	}
	if len(active) == 0 {
		active = append(active, CharsetLowercase)
	}

	drop := c.Exclude
	if c.ExcludeAmbiguous {
		drop += Ambiguous
	}
	if drop == "" {
		return active
	}
	for i, p := range active {
		active[i] = removeChars(p, drop)
	}
	return active
}

// Validate reports whether c can produce a password.
func (c Config) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("%w: length must be positive, got %d", ErrInvalidConfig, c.Length)
	}
	pools := c.pools()
	if c.Length < len(pools) {
		return fmt.Errorf("%w: length %d cannot hold one character from each of %d classes",
			ErrInvalidConfig, c.Length, len(pools))
	}
	for _, p := range pools {
		if p == "" {
			return fmt.Errorf("%w: exclusions leave a character class empty", ErrInvalidConfig)
		}
	}
	return nil
}

// Random generates a password of exactly cfg.Length characters containing at
// least one character from every enabled class.
func Random(cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	pools := cfg.pools()
	out := make([]rune, 0, cfg.Length)

	// Seed one character per class so every class is represented.
	for _, p := range pools {
		r, err := pick([]rune(p))
		if err != nil {
			return "", err
		}
		out = append(out, r)
	}

	union := []rune(strings.Join(pools, ""))
	for len(out) < cfg.Length {
		r, err := pick(union)
		if err != nil {
			return "", err
		}
		out = append(out, r)
	}

	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

// Passphrase joins wordCount random words and a trailing number in [0,99]
// with separator. Each word is capitalized with probability one half.
func Passphrase(wordCount int, separator string) (string, error) {
	if wordCount < 1 {
		return "", fmt.Errorf("%w: word count must be at least 1, got %d", ErrInvalidConfig, wordCount)
	}

	tokens := make([]string, 0, wordCount+1)
	for range wordCount {
		idx, err := randomInt(len(Words))
		if err != nil {
			return "", err
		}
		word := Words[idx]

		coin, err := randomInt(2)
		if err != nil {
			return "", err
		}
		if coin == 1 {
			word = capitalize(word)
		}
		tokens = append(tokens, word)
	}

	n, err := randomInt(maxNumberToken)
	if err != nil {
		return "", err
	}
	tokens = append(tokens, fmt.Sprintf("%d", n))

	return strings.Join(tokens, separator), nil
}

// randomInt returns a uniform integer in [0,n).
func randomInt(n int) (int, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generator: failed to generate random number: %w", err)
	}
	return int(idx.Int64()), nil
}

func pick(pool []rune) (rune, error) {
	idx, err := randomInt(len(pool))
	if err != nil {
		return 0, err
	}
	return pool[idx], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(s []rune) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

// removeChars removes every character of chars from s.
func removeChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}

func capitalize(word string) string {
	r := []rune(word)
	if len(r) == 0 {
		return word
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
