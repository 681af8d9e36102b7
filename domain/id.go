package domain

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
)

// idAlphabet reorders the standard base64 alphabet so lowercase letters
// dominate the encoded stream, which keeps the shaping regex cheap.
const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890+/"

var idEncoding = base64.NewEncoding(idAlphabet).WithPadding(base64.NoPadding)

// idShape extracts a seven character id shaped as two lowercase letters,
// two digits, three lowercase letters from an arbitrary haystack.
var idShape = regexp.MustCompile(`([a-z])[^a-z]*([a-z])[^a-z]*(\d)[^\d]*(\d)[^\d]*([a-z])[^a-z]*([a-z])[^a-z]*([a-z])[^a-z]*`)

// NewID generates a fresh shaped identifier, used for both users and
// chats. It draws from the system CSPRNG and retries until the encoded
// stream contains the required shape.
func NewID() string {
	for {
		raw := make([]byte, 48)
		if _, err := rand.Read(raw); err != nil {
			// crypto/rand never fails on supported platforms
			panic(err)
		}

		m := idShape.FindStringSubmatch(idEncoding.EncodeToString(raw))
		if m == nil {
			continue
		}
		return strings.Join(m[1:], "")
	}
}
