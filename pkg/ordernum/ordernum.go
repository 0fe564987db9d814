package ordernum

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	prefix = "SOKO"
	// Crockford-style alphabet with ambiguous characters removed.
	alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	length   = 10
)

// New returns a human-readable order number like SOKO-4R7WQ2M8XK. Ten
// characters over a 32-character alphabet gives 32^10 possibilities, so
// concurrent checkouts do not risk the collisions a timestamp scheme would.
func New() (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	var b strings.Builder
	b.Grow(len(prefix) + 1 + length)
	b.WriteString(prefix)
	b.WriteByte('-')
	for _, c := range buf {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

// Valid reports whether value looks like a generated order number.
func Valid(value string) bool {
	if len(value) != len(prefix)+1+length {
		return false
	}
	if !strings.HasPrefix(value, prefix+"-") {
		return false
	}
	for _, c := range value[len(prefix)+1:] {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
