// internal/site/id.go
//
// Site id generation: 16 random bytes, hex-encoded.  Ids are generated
// application-side so a head row and its first draft can be created in one
// transaction without waiting for an auto-increment.
package site

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// NewID returns a fresh 32-character hex site id.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform is broken; nothing
		// sensible to return.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ValidID reports whether id has the canonical 32-hex-character shape.
func ValidID(id string) bool { return idPattern.MatchString(id) }

// TempSlug returns the placeholder slug drafts live under before their real
// pair is reserved, e.g. "draft-a1b2c3d4e5f6".
func TempSlug(id string) string {
	if len(id) < 12 {
		return "draft-" + id
	}
	return "draft-" + id[:12]
}
