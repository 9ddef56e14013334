package chandb

import "crypto/sha256"

// HashPassword derives the credential stored in a channel's password slot.
// Passwords travel pre-hashed with SHA-256; the wire slot is 30 bytes, so
// the digest is truncated to fit.
func HashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:PasswordLen]
}
