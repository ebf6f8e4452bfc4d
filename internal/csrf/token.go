package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the amount of randomness in a token; the encoded form is
// twice as long.
const TokenBytes = 32

// GenerateToken returns a fresh hex-encoded random token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Equal compares two tokens in constant time. Only the length check can
// return early, so timing reveals at most whether the lengths differ.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func wellFormed(token string) bool {
	if len(token) != hex.EncodedLen(TokenBytes) {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
