package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

const visitorHashLength = 16

// HashVisitor derives a stable pseudonymous visitor id from an address. The raw
// address is never stored; the salt keeps the hash from being reversed by
// enumerating the IPv4 space.
func HashVisitor(salt, address string) string {
	if address == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + "|" + address))
	return hex.EncodeToString(sum[:])[:visitorHashLength]
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
