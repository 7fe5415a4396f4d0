// Package md5 provides the MD5 digest used for screenshot object keys.
//
// MD5 is not used for integrity here: it only has to spread URLs evenly and
// stay stable across runs, and it keeps keys compatible with objects already
// stored under the same layout.
package md5

import (
	"crypto/md5" //nolint:gosec // content addressing, not security
	"encoding/hex"
)

// Hasher implements screenshot.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := md5.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}
