// Package strength scores credential secrets on a 0-100 scale.
//
// The score is a fixed heuristic over length and character classes:
//
//   - length contributes 4 points per character, capped at 40
//   - lowercase, uppercase and digits add 10 each; symbols add 15
//   - using at least three of the four classes adds 10
//   - a run of three or more identical characters subtracts 10
//   - a leading 123, abc, qwerty, password or admin (any case) subtracts 20
//
// The result is clamped to [0,100]. Tier thresholds defined here are the
// only ones used across the CLI, the HTTP API, the MCP tools and the
// security auditor.
package strength

import "strings"

// Score thresholds for tiering.
const (
	// HighThreshold is the lowest score in the high tier.
	HighThreshold = 80
	// MediumThreshold is the lowest score in the medium tier.
	// Scores below it are considered weak by the auditor.
	MediumThreshold = 50
)

// Scoring weights.
const (
	pointsPerChar   = 4
	maxLengthPoints = 40
	lowerBonus      = 10
	upperBonus      = 10
	digitBonus      = 10
	symbolBonus     = 15
	diversityBonus  = 10
	repeatPenalty   = 10
	prefixPenalty   = 20
	repeatRunLength = 3
	diversityMin    = 3
)

// weakPrefixes are matched case-insensitively against the start of a secret.
var weakPrefixes = []string{"123", "abc", "qwerty", "password", "admin"}

// Tier is a coarse bucket derived from a score.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// String returns the tier name.
func (t Tier) String() string {
	return string(t)
}

// TierOf maps a score to its tier.
func TierOf(score int) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// IsWeak reports whether a score falls below the medium tier.
func IsWeak(score int) bool {
	return score < MediumThreshold
}

// Hint identifies a scoring rule that held the score back.
type Hint string

const (
	HintTooShort      Hint = "use at least 10 characters"
	HintNoLowercase   Hint = "add lowercase letters"
	HintNoUppercase   Hint = "add uppercase letters"
	HintNoDigit       Hint = "add digits"
	HintNoSymbol      Hint = "add symbols"
	HintRepeatedChars Hint = "avoid repeating the same character"
	HintCommonPrefix  Hint = "avoid common prefixes like 123, abc or password"
)

// Result is the detailed outcome of scoring a secret.
type Result struct {
	Score int    `json:"score"`
	Tier  Tier   `json:"tier"`
	Hints []Hint `json:"hints,omitempty"`
}

type classes struct {
	lower, upper, digit, symbol bool
}

func (c classes) count() int {
	n := 0
	for _, ok := range []bool{c.lower, c.upper, c.digit, c.symbol} {
		if ok {
			n++
		}
	}
	return n
}

// Score returns the strength score of secret in [0,100].
// The empty string scores 0.
func Score(secret string) int {
	return Evaluate(secret).Score
}

// Evaluate scores secret and reports which rules lowered its score.
func Evaluate(secret string) Result {
	if secret == "" {
		return Result{Score: 0, Tier: TierLow, Hints: []Hint{HintTooShort}}
	}

	var hints []Hint
	length := 0
	var cls classes
	for _, r := range secret {
		length++
		switch {
		case r >= 'a' && r <= 'z':
			cls.lower = true
		case r >= 'A' && r <= 'Z':
			cls.upper = true
		case r >= '0' && r <= '9':
			cls.digit = true
		default:
			cls.symbol = true
		}
	}

	score := min(length*pointsPerChar, maxLengthPoints)
	if score < maxLengthPoints {
		hints = append(hints, HintTooShort)
	}

	if cls.lower {
		score += lowerBonus
	} else {
		hints = append(hints, HintNoLowercase)
	}
	if cls.upper {
		score += upperBonus
	} else {
		hints = append(hints, HintNoUppercase)
	}
	if cls.digit {
		score += digitBonus
	} else {
		hints = append(hints, HintNoDigit)
	}
	if cls.symbol {
		score += symbolBonus
	} else {
		hints = append(hints, HintNoSymbol)
	}
	if cls.count() >= diversityMin {
		score += diversityBonus
	}

	if hasRepeatedRun(secret, repeatRunLength) {
		score -= repeatPenalty
		hints = append(hints, HintRepeatedChars)
	}
	if hasWeakPrefix(secret) {
		score -= prefixPenalty
		hints = append(hints, HintCommonPrefix)
	}

	score = clamp(score)
	return Result{Score: score, Tier: TierOf(score), Hints: hints}
}

// hasRepeatedRun reports whether any rune repeats n or more times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
		prev = r
	}
	return false
}

func hasWeakPrefix(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range weakPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
