package dedup

import (
	"crypto/md5"
	"encoding/hex"
)

// PrefixRunes is how much of the article text takes part in its identity.
const PrefixRunes = 500

// Fingerprint identifies article content for deduplication.
type Fingerprint string

// Of digests the first PrefixRunes characters of text. Articles that open the same
// way are the same story even when the tail differs.
func Of(text string) Fingerprint {
	sum := md5.Sum([]byte(prefix(text, PrefixRunes)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func (f Fingerprint) String() string { return string(f) }

func (f Fingerprint) IsZero() bool { return f == "" }

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
