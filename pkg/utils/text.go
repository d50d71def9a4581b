// Package utils holds small helpers shared across kotae packages.
package utils

// Truncate shortens s to at most maxLen bytes, marking the cut with "...".
// Non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
