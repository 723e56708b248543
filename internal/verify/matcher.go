package verify

import (
	"regexp"
	"strings"
)

// maxMatchDepth bounds backtracking on adversarial nested-wildcard patterns.
// Exceeding it is a non-match, not an error.
const maxMatchDepth = 100

// MatchPath matches a request path against a segment-based wildcard
// pattern. A bare "*" segment matches zero or more path segments; a segment
// with an embedded "*" matches exactly one path segment by per-segment
// wildcard ("*" any run, "?" one character); anything else must be
// byte-equal.
func MatchPath(pattern, path string) bool {
	return matchSegments(splitSegments(pattern), splitSegments(path), 0)
}

func splitSegments(s string) []string {
	parts := strings.Split(s, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

func matchSegments(pattern, path []string, depth int) bool {
	if depth > maxMatchDepth {
		return false
	}

	if len(pattern) == 0 {
		return len(path) == 0
	}

	if pattern[0] == "*" {
		// Try consuming zero path segments, then one and retry the same
		// pattern position. A single "*" can absorb a variable number of
		// segments, so a greedy match is not enough.
		if matchSegments(pattern[1:], path, depth+1) {
			return true
		}
		if len(path) > 0 && matchSegments(pattern, path[1:], depth+1) {
			return true
		}
		return false
	}

	if len(path) == 0 {
		return false
	}

	if strings.Contains(pattern[0], "*") {
		re, err := segmentRegexp(pattern[0])
		if err != nil || !re.MatchString(path[0]) {
			return false
		}
		return matchSegments(pattern[1:], path[1:], depth+1)
	}

	if pattern[0] != path[0] {
		return false
	}
	return matchSegments(pattern[1:], path[1:], depth+1)
}

// segmentRegexp compiles a single wildcard segment to an anchored regexp.
func segmentRegexp(segment string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range segment {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
