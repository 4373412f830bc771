// Package cache – query normalization and hashing
//
// Cached web-search entries are keyed by a hash of the normalized query so
// that trivially different phrasings ("Qual é o dress code?" vs "dress code")
// land on the same row. Normalization lowercases, strips punctuation, drops
// short words and stopwords, and sorts the remainder alphabetically.
// Stopwords cover Portuguese, English, and Spanish, the languages guests
// actually write in.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// Portuguese
		"o", "a", "os", "as", "um", "uma", "de", "do", "da", "dos", "das",
		"em", "no", "na", "nos", "nas", "por", "para", "com", "sem",
		"é", "são", "está", "estão", "foi", "eram", "ser", "estar",
		"qual", "quais", "como", "onde", "quando", "que", "quem",
		"este", "esse", "aquele", "isso", "isto", "aquilo",
		"me", "te", "se", "lhe", "vos", "lhes",
		// English
		"the", "an", "in", "on", "at", "to", "for", "of", "with", "by",
		"is", "are", "was", "were", "be", "been", "being",
		"what", "which", "how", "where", "when", "who", "whom",
		"this", "that", "these", "those",
		"i", "you", "he", "she", "it", "we", "they",
		"my", "your", "his", "her", "its", "our", "their",
		// Spanish
		"el", "la", "los", "las", "un", "una", "unos", "unas",
		"del", "al", "con", "sin",
		"es", "son", "fue", "fueron",
		"cuál", "cuáles", "cómo", "dónde", "cuándo", "qué", "quién", "quiénes",
		"esta", "estos", "estas", "ese", "esa", "esos", "esas",
		"aquel", "aquella", "aquellos", "aquellas", "esto", "eso", "aquello",
		"le", "os", "les",
		"mi", "tu", "su", "mis", "tus", "sus",
	} {
		stopwords[w] = struct{}{}
	}
}

const punctuation = ".,!?;:¿¡\"“”‘’'()[]{}"

// NormalizeQuery canonicalizes a search query for cache matching. Words of
// two characters or fewer and stopwords are dropped; the survivors are
// sorted so word order does not fragment the cache.
func NormalizeQuery(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// QueryHash returns the SHA-256 hex digest of the normalized query. This is
// the primary cache key.
func QueryHash(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])
}
