package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier identifies one storage layer in the cache hierarchy, ordered
// fastest to slowest.
type Tier int

const (
	TierEphemeral Tier = iota
	TierMemory
	TierPersistent
)

func (t Tier) String() string {
	switch t {
	case TierEphemeral:
		return "ephemeral"
	case TierMemory:
		return "memory"
	case TierPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier resolves a tier name as used on the admin surface.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "ephemeral":
		return TierEphemeral, nil
	case "memory":
		return TierMemory, nil
	case "persistent":
		return TierPersistent, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// CacheKey identifies one page artifact. Language is empty for
// untranslated source artifacts. Fingerprint is the hex multihash of the
// source page content, so a changed source file yields a different key
// even when the document path is unchanged.
type CacheKey struct {
	Document    string
	Page        int
	Language    string
	Fingerprint string
}

// Encode renders the key as the storage index shared by every tier.
// The page index is fixed-width so lexicographic order on encoded keys
// equals (document, page, language, fingerprint) order. The document id
// is escaped so path separators like '|' cannot forge field boundaries.
func (k CacheKey) Encode() string {
	return fmt.Sprintf("%s|%08d|%s|%s", escapeDocument(k.Document), k.Page, k.Language, k.Fingerprint)
}

// escapeDocument makes the document id safe inside an encoded key.
// Only '%' and the field separator need escaping.
func escapeDocument(doc string) string {
	doc = strings.ReplaceAll(doc, "%", "%25")
	return strings.ReplaceAll(doc, "|", "%7C")
}

func unescapeDocument(s string) string {
	s = strings.ReplaceAll(s, "%7C", "|")
	return strings.ReplaceAll(s, "%25", "%")
}

// Location renders the document page position without the fingerprint.
// Fast tiers index by location so a lookup under a new fingerprint still
// finds the stale copy and can invalidate it in place.
func (k CacheKey) Location() string {
	return fmt.Sprintf("%s|%08d|%s", escapeDocument(k.Document), k.Page, k.Language)
}

// DecodeKey parses a key previously produced by Encode.
func DecodeKey(s string) (CacheKey, error) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return CacheKey{}, fmt.Errorf("malformed cache key %q", s)
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return CacheKey{}, fmt.Errorf("malformed page index in cache key %q: %w", s, err)
	}
	return CacheKey{
		Document:    unescapeDocument(parts[0]),
		Page:        page,
		Language:    parts[2],
		Fingerprint: parts[3],
	}, nil
}

// Less orders keys deterministically for iteration.
func (k CacheKey) Less(o CacheKey) bool {
	return k.Encode() < o.Encode()
}

// Original returns the key of the untranslated source artifact for the
// same document page.
func (k CacheKey) Original() CacheKey {
	k.Language = ""
	return k
}

// Translated reports whether the key names a translated artifact.
func (k CacheKey) Translated() bool {
	return k.Language != ""
}
