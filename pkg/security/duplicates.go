package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/forest6511/quantavault/pkg/vault"
)

// ReuseGroup is a set of credentials sharing one secret value.
type ReuseGroup struct {
	CredentialIDs []string `json:"credential_ids"`
	Count         int      `json:"count"`
}

// ReusedGroups returns every group of two or more credentials with an
// identical secret. Secrets are compared through an HMAC under the
// auditor's session key, so plaintext never becomes a map key.
// Groups are ordered by first appearance; members keep input order.
func (a *Auditor) ReusedGroups(records []vault.Credential) []ReuseGroup {
	index := make(map[string]int)
	var groups []ReuseGroup
	for _, r := range records {
		hash := computeValueHash(r.Secret, a.hmacKey)
		i, ok := index[hash]
		if !ok {
			i = len(groups)
			index[hash] = i
			groups = append(groups, ReuseGroup{})
		}
		groups[i].CredentialIDs = append(groups[i].CredentialIDs, r.ID)
		groups[i].Count++
	}

	reused := groups[:0]
	for _, g := range groups {
		if g.Count > 1 {
			reused = append(reused, g)
		}
	}
	return reused
}

// distinctSecrets counts the distinct secret values in records.
func (a *Auditor) distinctSecrets(records []vault.Credential) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[computeValueHash(r.Secret, a.hmacKey)] = struct{}{}
	}
	return len(seen)
}

// computeValueHash computes HMAC-SHA256 of a value with the session key.
func computeValueHash(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
