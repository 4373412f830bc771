// Package utils holds tiny helpers shared across layers. Nothing in here may
// depend on domain types or other internal packages.
package utils

import "strconv"

// AtoiDefault parses s as an int and falls back to def when s is empty or
// not a valid integer. Query-string pagination params go through this so a
// garbage value degrades to the default instead of erroring.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to the inclusive range [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
