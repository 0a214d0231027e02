package util

import "fmt"

// DefaultLogMaxLen bounds provider response bodies written to logs (1KB).
const DefaultLogMaxLen = 1024

// Truncate shortens s to maxLen bytes, noting the original size.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is Truncate for a response body using DefaultLogMaxLen.
func TruncateBytes(b []byte) string {
	return Truncate(string(b), DefaultLogMaxLen)
}

// MaskSecret keeps the first and last four characters of a token.
// Values of eight characters or fewer are fully masked.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
