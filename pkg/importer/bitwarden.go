package importer

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// bitwardenTypeLogin is the only Bitwarden item type carrying a password.
const bitwardenTypeLogin = 1

// bitwardenExport represents the top-level Bitwarden JSON export structure.
type bitwardenExport struct {
	Encrypted bool            `json:"encrypted"`
	Items     []bitwardenItem `json:"items"`
}

// bitwardenItem represents a Bitwarden vault item.
type bitwardenItem struct {
	Type  int             `json:"type"`
	Name  string          `json:"name"`
	Notes string          `json:"notes"`
	Login *bitwardenLogin `json:"login"`
}

// bitwardenLogin represents Bitwarden login data.
type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
}

// bitwardenURI represents a Bitwarden URI entry.
type bitwardenURI struct {
	URI string `json:"uri"`
}

// parseBitwardenJSON reads an unencrypted Bitwarden JSON export. Items
// other than logins are skipped. Line numbers in Skipped are 1-based item
// positions.
func parseBitwardenJSON(data []byte) *Result {
	result := &Result{Format: FormatBitwardenJSON, Candidates: make([]Candidate, 0)}

	var export bitwardenExport
	if err := json.Unmarshal(norm.NFC.Bytes(data), &export); err != nil {
		result.Skipped = append(result.Skipped, Skipped{Reason: fmt.Sprintf("invalid Bitwarden JSON: %v", err)})
		return result
	}
	if export.Encrypted {
		result.Skipped = append(result.Skipped, Skipped{Reason: "encrypted Bitwarden exports are not supported"})
		return result
	}

	for i, item := range export.Items {
		if item.Type != bitwardenTypeLogin || item.Login == nil {
			result.Skipped = append(result.Skipped, Skipped{Line: i + 1, Reason: fmt.Sprintf("unsupported item type: %d", item.Type)})
			continue
		}

		secret := strings.TrimSpace(item.Login.Password)
		if secret == "" {
			result.Skipped = append(result.Skipped, Skipped{Line: i + 1, Reason: "no password"})
			continue
		}

		var url string
		for _, u := range item.Login.URIs {
			if u.URI = strings.TrimSpace(u.URI); u.URI != "" {
				url = u.URI
				break
			}
		}

		title := strings.TrimSpace(item.Name)
		if title == "" {
			title = url
		}
		if title == "" {
			title = "Bitwarden Password"
		}

		result.Candidates = append(result.Candidates, Candidate{
			Title:    title,
			Username: strings.TrimSpace(item.Login.Username),
			Secret:   secret,
			URL:      url,
			Notes:    strings.TrimSpace(item.Notes),
		})
	}
	return result
}
