package session

import (
	"crypto/rand"
	"math/big"
)

// idAlphabet excludes visually ambiguous characters (0/O, 1/I/L) so codes
// survive being read aloud or typed from a text message.
const idAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const idLength = 6

// NewID returns a short human-typeable session code.
func NewID() string {
	buf := make([]byte, idLength)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; a fixed character keeps the code well-formed.
			buf[i] = idAlphabet[0]
			continue
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf)
}

// ValidID reports whether raw looks like a session code.
func ValidID(raw string) bool {
	if len(raw) != idLength {
		return false
	}
	for _, r := range raw {
		found := false
		for _, a := range idAlphabet {
			if r == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
