package orgchart

import (
	"regexp"
	"strings"
)

// The whitespace class mirrors what a browser treats as \s so the alias normalizer stays
// byte-identical with the viewer's copy of it.
const wsClass = `[\s\v\p{Z}\x{feff}]`

var (
	aliasPunct    = regexp.MustCompile(`[.,;:!?]`)
	orgSuffix     = regexp.MustCompile(`\b(group|inc|ltd|llc|corp|corporation|limited)` + wsClass + `*$`)
	whitespaceRun = regexp.MustCompile(wsClass + `+`)

	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	nonAlnumSpace = regexp.MustCompile(`[^a-z0-9\s]`)

	slugStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces = regexp.MustCompile(`[\s_]+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// NormalizeEntityName canonicalizes a name for alias matching: lowercase, drop .,;:!?,
// drop trailing organizational suffixes anchored at the end, collapse whitespace.
//
// "ABCD Group" becomes "abcd" but "Group Therapeutics" is untouched. Suffixes are stripped
// until none remains, so the result is a fixed point of the function.
func NormalizeEntityName(name string) string {
	s := trimWS(strings.ToLower(name))
	s = aliasPunct.ReplaceAllString(s, "")
	for {
		stripped := trimWS(orgSuffix.ReplaceAllString(s, ""))
		if stripped == s {
			break
		}
		s = stripped
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	return trimWS(s)
}

// GroupingKey is the looser key used by pre-aggregation. It removes every character that is
// not a lowercase letter, digit, or space, and drops parenthetical abbreviations so that
// "Discovery Sciences (DS)" groups with "Discovery Sciences". It is not an alias key.
func GroupingKey(name string) string {
	lower := strings.ToLower(name)
	key := groupingKey(parenthetical.ReplaceAllString(lower, " "))
	if len(key) < 2 {
		// A name that is only a parenthetical still needs a key.
		key = groupingKey(lower)
	}
	return key
}

func groupingKey(s string) string {
	s = nonAlnumSpace.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Slugify converts a name to the kebab-case id used for quality entities.
func Slugify(name string) string {
	if name == "" {
		return ""
	}
	s := strings.ToLower(name)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func trimWS(s string) string {
	return strings.TrimFunc(s, isWS)
}

func isWS(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0xA0, 0x1680, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000, 0xFEFF:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}
