package mapper

import "strings"

func IsSimpleMatchPattern(s string) bool {
	return strings.Contains(s, "*")
}

// SimpleMatch matches s against a pattern where '*' stands for any run of
// characters and every other character matches itself.
func SimpleMatch(pattern, s string) bool {
	first := strings.IndexByte(pattern, '*')
	if first < 0 {
		return pattern == s
	}
	if !strings.HasPrefix(s, pattern[:first]) {
		return false
	}
	s = s[first:]
	parts := strings.Split(pattern[first+1:], "*")
	last := len(parts) - 1
	for i, part := range parts {
		if i == last {
			return strings.HasSuffix(s, part)
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return true
}

// literalPrefix returns the part of pattern before its first wildcard.
func literalPrefix(pattern string) string {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
