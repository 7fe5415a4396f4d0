package screenshot

import (
	"fmt"
	"strings"
)

// Addresser derives deterministic storage keys from a URL and a size.
type Addresser struct {
	hasher Hasher
}

// NewAddresser builds an Addresser around the given hasher.
func NewAddresser(hasher Hasher) Addresser {
	return Addresser{hasher: hasher}
}

// Key returns "<width>x<height>/<hash(url)>.png". The same inputs always
// yield the same key, so re-runs overwrite instead of duplicating.
func (a Addresser) Key(url string, size Size) (string, error) {
	digest, err := a.hasher.Hash([]byte(url))
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}
	return fmt.Sprintf("%s/%s.png", size, digest), nil
}

// PublicURL joins the public base (e.g. "http://bucket.example") with a key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
