package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the entropy of generated tokens. 32 bytes = 256 bits.
const TokenBytes = 32

// Token generates a cryptographically secure opaque token.
func Token() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random.Token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
