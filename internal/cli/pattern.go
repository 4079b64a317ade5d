// Package cli provides shared utilities for CLI commands.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forest6511/quantavault/pkg/vault"
)

// ErrAmbiguous is returned when a reference matches more than one credential.
var ErrAmbiguous = errors.New("reference matches more than one credential")

// IsGlob reports whether pattern contains glob characters (*?[).
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// MatchTitle reports whether title matches pattern, ignoring case.
// Patterns without glob characters must equal the title.
func MatchTitle(pattern, title string) (bool, error) {
	pattern = strings.ToLower(pattern)
	title = strings.ToLower(title)
	if !IsGlob(pattern) {
		return pattern == title, nil
	}
	matched, err := filepath.Match(pattern, title)
	if err != nil {
		return false, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}
	return matched, nil
}

// ExpandPattern returns the credentials whose ID equals pattern or whose
// title matches it. A pattern that matches nothing is an error.
func ExpandPattern(pattern string, creds []vault.Credential) ([]vault.Credential, error) {
	// Validate pattern syntax
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	var matches []vault.Credential
	for _, c := range creds {
		if c.ID == pattern {
			return []vault.Credential{c}, nil
		}
		ok, err := MatchTitle(pattern, c.Title)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, c)
		}
	}

	if len(matches) == 0 {
		if IsGlob(pattern) {
			return nil, fmt.Errorf("no credentials match pattern '%s'", pattern)
		}
		return nil, fmt.Errorf("credential '%s' not found", pattern)
	}

	return matches, nil
}

// ExpandPatterns expands multiple patterns against creds.
// Returns unique credentials preserving order of first match.
func ExpandPatterns(patterns []string, creds []vault.Credential) ([]vault.Credential, error) {
	seen := make(map[string]bool)
	var result []vault.Credential

	for _, pattern := range patterns {
		matches, err := ExpandPattern(pattern, creds)
		if err != nil {
			return nil, err
		}
		for _, c := range matches {
			if !seen[c.ID] {
				seen[c.ID] = true
				result = append(result, c)
			}
		}
	}

	return result, nil
}

// Resolve finds exactly one credential by ID or title.
func Resolve(ref string, creds []vault.Credential) (vault.Credential, error) {
	if IsGlob(ref) {
		return vault.Credential{}, fmt.Errorf("'%s': patterns are not allowed here", ref)
	}
	matches, err := ExpandPattern(ref, creds)
	if err != nil {
		return vault.Credential{}, err
	}
	if len(matches) > 1 {
		return vault.Credential{}, fmt.Errorf("'%s': %w, use the ID instead", ref, ErrAmbiguous)
	}
	return matches[0], nil
}

// SortByTitle returns a copy of creds sorted by title, then ID.
func SortByTitle(creds []vault.Credential) []vault.Credential {
	sorted := make([]vault.Credential, len(creds))
	copy(sorted, creds)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := strings.ToLower(sorted[i].Title), strings.ToLower(sorted[j].Title)
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// MapKeys extracts keys from a map and returns them sorted.
func MapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
