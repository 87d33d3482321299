package episode

import (
	"regexp"
	"strings"

	"github.com/memoryd/engine/internal/errs"
)

// tagPattern matches the normalized tag charset: 2-100 chars of
// [A-Za-z0-9_-], validating short identifier-like strings with a
// single regexp.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,100}$`)

// NormalizeTag trims and lowercases a raw tag and validates it against the
// engine's tag charset. It returns InvalidInput if the normalized tag
// still fails the length or charset rule.
func NormalizeTag(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	if !tagPattern.MatchString(t) {
		return "", errs.InvalidInput("tag " + quote(raw) + " must be 2-100 chars of [A-Za-z0-9_-] after trim+lowercase")
	}
	return t, nil
}

// NormalizeTags normalizes a raw tag sequence, rejecting any tag that
// fails NormalizeTag, and deduplicates while preserving first-seen order.
func NormalizeTags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		t, err := NormalizeTag(r)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
