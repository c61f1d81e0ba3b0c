package util

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// LauncherIDLength is the hex length of a plot NFT launcher id (32 bytes)
const LauncherIDLength = 64

// NormalizeLauncherID lowercases a launcher id and strips an optional 0x prefix
func NormalizeLauncherID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.TrimPrefix(id, "0x")
}

// IsValidHex checks if string is valid hexadecimal
func IsValidHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	_, err := hex.DecodeString(s)
	return err == nil
}

// ValidateLauncherID reports whether id is a 32-byte hex launcher id
func ValidateLauncherID(id string) bool {
	id = NormalizeLauncherID(id)
	if len(id) != LauncherIDLength {
		return false
	}
	return IsValidHex(id)
}

// MemberKey derives a short opaque key for a launcher id, used to namespace
// stored snapshots without putting the launcher id itself into key names.
func MemberKey(launcherID string) string {
	sum := blake3.Sum256([]byte(NormalizeLauncherID(launcherID)))
	return hex.EncodeToString(sum[:16])
}

// ShortID abbreviates long identifiers for display
func ShortID(id string, n int) string {
	if len(id) <= 2*n {
		return id
	}
	return id[:n] + "..." + id[len(id)-n:]
}
