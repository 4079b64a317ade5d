package vault

import "strings"

// Filter narrows a credential listing. The zero value matches everything.
type Filter struct {
	Category      Category
	FavoritesOnly bool
	// Query matches title, username or URL, case-insensitively.
	Query string
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Credential) bool {
	if f.Category != "" && !strings.EqualFold(string(f.Category), string(c.Category)) {
		return false
	}
	if f.FavoritesOnly && !c.Favorite {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.Username), q) ||
			strings.Contains(strings.ToLower(c.URL), q)
	}
	return true
}

// Apply returns the credentials matching f, preserving order.
func (f Filter) Apply(creds []Credential) []Credential {
	out := make([]Credential, 0, len(creds))
	for _, c := range creds {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}
