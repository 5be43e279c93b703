package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length. Uses math/rand/v2; not for cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateScriptID generates a unique script ID with "scr_" prefix.
func GenerateScriptID() string {
	return GenerateRandomID("scr_", 16)
}

// GenerateSessionID generates a unique call session ID with "sess_" prefix.
func GenerateSessionID() string {
	return GenerateRandomID("sess_", 16)
}

// GenerateCallID generates a unique call log ID with "call_" prefix.
func GenerateCallID() string {
	return GenerateRandomID("call_", 16)
}
