package utils

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// SlugAlphabet is URL-safe and exactly 64 symbols long, so one random byte masked
// to six bits picks a symbol without bias.
const SlugAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// GenerateSlug generates a random URL-safe slug of fixed length
func GenerateSlug(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails if the OS entropy source is broken.
		panic("utils: reading random bytes: " + err.Error())
	}
	for i := range b {
		b[i] = SlugAlphabet[b[i]&63]
	}
	return string(b)
}

// NewID returns a random UUID string for click and audit records
func NewID() string {
	return uuid.NewString()
}
