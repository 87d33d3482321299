// Package idgen generates opaque, globally unique identifiers for episodes,
// patterns, heuristics, and relationships.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	// Convert bytes to big integer
	num := new(big.Int).SetBytes(data)

	// Convert to base36
	var result strings.Builder
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	// Build the string in reverse
	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// Reverse the string
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	// Pad with zeros if needed
	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}

	// Truncate to exact length if needed (keep least significant digits)
	if len(str) > length {
		str = str[len(str)-length:]
	}

	return str
}

// Kind prefixes for the four opaque identifier families this engine mints.
const (
	KindEpisode      = "ep"
	KindPattern      = "pt"
	KindHeuristic    = "hx"
	KindRelationship = "rl"
)

// New generates a fresh opaque identifier: 16 random bytes (128 bits) read
// from crypto/rand, base36-encoded and prefixed with kind (one of the Kind*
// constants). The random source keeps collision probability negligible
// without depending on content — episodes and patterns have no stable
// "title" to hash the way issue IDs do.
func New(kind string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: read random bytes: %w", err)
	}
	return fmt.Sprintf("%s_%s", kind, EncodeBase36(buf, 25)), nil
}

// MustNew is New but panics on failure to read the system CSPRNG, a
// condition callers cannot meaningfully recover from.
func MustNew(kind string) string {
	id, err := New(kind)
	if err != nil {
		panic(err)
	}
	return id
}
