// Package utils provides shared helpers for paths, pixel math and logging.
package utils

// TruncateLeft shortens s to its last maxLen bytes, prefixed with "...", so that
// the file name at the end of a long path stays visible.
// If maxLen is 0 or negative, returns s unchanged.
func TruncateLeft(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
