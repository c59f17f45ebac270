package users

import "crypto/sha256"

// Digest returns the deterministic password digest used by format,
// user_create and user_login alike, per spec.md §4.3's requirement that
// exactly one transform is used consistently everywhere. The reference
// C/C++ sources mix a djb2-style multiplicative hash with SHA-256 behind
// OpenSSL; this module settles on SHA-256 via the standard library, since
// no example repo's dependency stack offers an unsalted, deterministic
// digest primitive that the standard library doesn't already provide.
func Digest(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}
