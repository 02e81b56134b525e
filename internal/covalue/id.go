// Package covalue defines the typed CoValue data model: ids, headers,
// variants and content shapes shared by the rest of the backend core.
//
// A co_z-prefixed CoValue id is minted with a sha256+base58 recipe over a
// random nonce.
package covalue

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Prefix is the fixed, bit-exact prefix every CoValue id carries.
const Prefix = "co_z"

// NewID mints a fresh CoValue id. The input seed is whatever the caller has
// on hand to make the id content-addressed-ish (e.g. owning group id plus
// a random nonce); ids are otherwise opaque per.
func NewID(seed string) string {
	nonce := make([]byte, 16)
	_, _ = rand.Read(nonce)
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write(nonce)
	sum := h.Sum(nil)
	return Prefix + base58.Encode(sum)
}

// ValidID reports whether id carries the looser co_ prefix followed by at
// least one character; ValidCoValuePrefix is the strict co_z check.
func ValidID(id string) bool {
	return strings.HasPrefix(id, "co_") && len(id) > len("co_")
}

// ValidCoValuePrefix reports whether id matches the stricter co_z prefix
// used for freshly minted ids. Loader accepts the looser co_* form because
// other CRDT implementations in the wild mint co_-prefixed ids with other
// letters; this backend only ever mints co_z.
func ValidCoValuePrefix(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// FormatShort returns a truncated id for log lines.
func FormatShort(id string) string {
	if len(id) <= 16 {
		return id
	}
	return fmt.Sprintf("%s...", id[:16])
}
