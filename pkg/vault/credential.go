package vault

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/forest6511/quantavault/pkg/strength"
)

// Input validation limits
const (
	MaxTitleLength    = 256
	MaxUsernameLength = 512
	MaxSecretLength   = 4096
	MaxNotesSize      = 10 * 1024 // 10 KB
	MaxURLLength      = 2048
	MaxCategoryLength = 64

	// MinFormSecretLength applies to manually entered secrets only; imports may be shorter.
	MinFormSecretLength = 6
)

// Category tags a credential for filtering. The set is open.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryFinance  Category = "finance"
	CategorySocial   Category = "social"
	CategoryImported Category = "imported"
	CategoryOther    Category = "other"
)

// DefaultCategory is applied when a draft leaves the category empty.
const DefaultCategory = CategoryPersonal

// KnownCategories lists the built-in categories in display order.
var KnownCategories = []Category{
	CategoryPersonal, CategoryWork, CategoryFinance, CategorySocial, CategoryImported, CategoryOther,
}

// Credential is a decrypted credential record.
type Credential struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Title         string    `json:"title"`
	Username      string    `json:"username"`
	Secret        string    `json:"secret"`
	URL           string    `json:"url,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Category      Category  `json:"category"`
	Favorite      bool      `json:"favorite"`
	StrengthScore int       `json:"strength_score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Tier returns the strength tier of the stored score.
func (c Credential) Tier() strength.Tier {
	return strength.TierOf(c.StrengthScore)
}

// Draft holds the caller-supplied fields of a new credential.
// It has no score field: the score is always derived from Secret.
type Draft struct {
	Owner    string   `json:"owner"`
	Title    string   `json:"title"`
	Username string   `json:"username"`
	Secret   string   `json:"secret"`
	URL      string   `json:"url,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	Category Category `json:"category,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
}

// Patch lists the fields to change on an existing credential. Nil fields are left as is.
type Patch struct {
	Title    *string   `json:"title,omitempty"`
	Username *string   `json:"username,omitempty"`
	Secret   *string   `json:"secret,omitempty"`
	URL      *string   `json:"url,omitempty"`
	Notes    *string   `json:"notes,omitempty"`
	Category *Category `json:"category,omitempty"`
	Favorite *bool     `json:"favorite,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Username == nil && p.Secret == nil && p.URL == nil &&
		p.Notes == nil && p.Category == nil && p.Favorite == nil
}

// apply returns c with the patch applied.
func (p Patch) apply(c Credential) Credential {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Username != nil {
		c.Username = strings.TrimSpace(*p.Username)
	}
	if p.Secret != nil {
		c.Secret = *p.Secret
	}
	if p.URL != nil {
		c.URL = strings.TrimSpace(*p.URL)
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if p.Category != nil {
		c.Category = normalizeCategory(*p.Category)
	}
	if p.Favorite != nil {
		c.Favorite = *p.Favorite
	}
	return c
}

// normalize trims display fields and applies the default category.
func (d Draft) normalize() Draft {
	d.Owner = strings.TrimSpace(d.Owner)
	d.Title = strings.TrimSpace(d.Title)
	d.Username = strings.TrimSpace(d.Username)
	d.URL = strings.TrimSpace(d.URL)
	d.Category = normalizeCategory(d.Category)
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	return d
}

func normalizeCategory(c Category) Category {
	return Category(strings.ToLower(strings.TrimSpace(string(c))))
}

// validate checks a fully populated credential before it is written.
func validate(c Credential) error {
	switch {
	case c.Owner == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidCredential)
	case c.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidCredential)
	case c.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidCredential)
	case c.Secret == "":
		return fmt.Errorf("%w: secret is required", ErrInvalidCredential)
	case c.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidCredential)
	}

	if n := utf8.RuneCountInString(c.Title); n > MaxTitleLength {
		return fmt.Errorf("%w: title is %d characters, maximum is %d", ErrInvalidCredential, n, MaxTitleLength)
	}
	if n := utf8.RuneCountInString(c.Username); n > MaxUsernameLength {
		return fmt.Errorf("%w: username is %d characters, maximum is %d", ErrInvalidCredential, n, MaxUsernameLength)
	}
	if n := utf8.RuneCountInString(c.Secret); n > MaxSecretLength {
		return fmt.Errorf("%w: secret is %d characters, maximum is %d", ErrInvalidCredential, n, MaxSecretLength)
	}
	if len(c.Notes) > MaxNotesSize {
		return fmt.Errorf("%w: notes are %d bytes, maximum is %d", ErrInvalidCredential, len(c.Notes), MaxNotesSize)
	}
	if len(c.URL) > MaxURLLength {
		return fmt.Errorf("%w: url is %d characters, maximum is %d", ErrInvalidCredential, len(c.URL), MaxURLLength)
	}
	if len(c.Category) > MaxCategoryLength {
		return fmt.Errorf("%w: category is too long", ErrInvalidCredential)
	}
	return nil
}

// ValidateFormSecret applies the manual-entry rule for secrets (at least six characters).
// The facade itself only requires a non-empty secret so short imported secrets are kept.
func ValidateFormSecret(secret string) error {
	if utf8.RuneCountInString(secret) < MinFormSecretLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredential, MinFormSecretLength)
	}
	return nil
}
