package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/quailyquaily/trustops/fault"
)

// KeySize is the only accepted key length (AES-256).
const KeySize = 32

var keyEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// ParseKey decodes a 256-bit key given as 64 hex characters or as base64.
// An empty string means no key is configured and returns (nil, nil).
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) == hex.EncodedLen(KeySize) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	for _, enc := range keyEncodings {
		b, err := enc.DecodeString(s)
		if err == nil && len(b) == KeySize {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: want 64 hex characters or base64 of %d bytes (got %d characters)", fault.ErrInvalidKeyFormat, KeySize, len(s))
}

func GenerateKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}

// FormatKey renders key material in the hex form accepted by ParseKey.
func FormatKey(key []byte) string {
	return hex.EncodeToString(key)
}
