package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier such as "med_3f2a…". The prefix names
// the entity kind; an empty prefix yields the bare hex string.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
