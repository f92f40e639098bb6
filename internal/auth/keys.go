// ABOUTME: Public key comparison and fingerprinting for session authentication
// ABOUTME: Compares key type and body tokens, ignoring comments and whitespace differences

package auth

import (
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeysMatch reports whether a stored key and a presented key denote the same
// credential. Both are trimmed and embedded newlines become spaces. When both
// sides have at least two whitespace-separated tokens, the key type and the
// encoded body must match and any trailing comment is ignored. Otherwise the
// normalized strings must be equal.
func KeysMatch(stored, presented string) bool {
	stored = normalizeKey(stored)
	presented = normalizeKey(presented)

	storedParts := strings.Fields(stored)
	presentedParts := strings.Fields(presented)

	if len(storedParts) >= 2 && len(presentedParts) >= 2 {
		return storedParts[0] == presentedParts[0] && storedParts[1] == presentedParts[1]
	}
	return stored == presented
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.ReplaceAll(key, "\r\n", " ")
	return strings.ReplaceAll(key, "\n", " ")
}

// Fingerprint returns the SHA256 fingerprint of an authorized_keys style key,
// or "" when the key does not parse. Log lines carry fingerprints, never raw keys.
func Fingerprint(key string) string {
	pubkey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key))
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pubkey)
}
