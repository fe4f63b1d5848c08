package secrets

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/quailyquaily/trustops/fault"
)

type Kind string

const (
	KindEncrypted Kind = "enc"
	KindPlain     Kind = "plain"
	// KindLegacy marks stored values written before any prefix existed.
	KindLegacy Kind = "legacy"
)

const (
	prefixEncrypted = "enc:"
	prefixPlain     = "plain:"
)

// Payload is one sealed (or deliberately unsealed) secret value.
// Data is set for plain and legacy payloads; IV, Tag and Ciphertext for encrypted ones.
type Payload struct {
	Kind Kind

	Data []byte

	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

func (p Payload) Encrypted() bool { return p.Kind == KindEncrypted }

// String renders the wire form: "enc:" + base64(iv || tag || ciphertext),
// "plain:" + raw text, or the raw text itself for legacy values.
func (p Payload) String() string {
	switch p.Kind {
	case KindEncrypted:
		buf := make([]byte, 0, len(p.IV)+len(p.Tag)+len(p.Ciphertext))
		buf = append(buf, p.IV...)
		buf = append(buf, p.Tag...)
		buf = append(buf, p.Ciphertext...)
		return prefixEncrypted + base64.StdEncoding.EncodeToString(buf)
	case KindPlain:
		return prefixPlain + string(p.Data)
	default:
		return string(p.Data)
	}
}

// ParsePayload decodes a wire string. The prefix alone selects the decode path;
// values without a known prefix are legacy plaintext. An encrypted body must be
// canonical base64 so every stored secret has exactly one valid wire form.
func ParsePayload(s string) (Payload, error) {
	switch {
	case strings.HasPrefix(s, prefixEncrypted):
		body := s[len(prefixEncrypted):]
		// Strict rejects non-zero padding bits; the decoder would still skip CR/LF.
		if strings.ContainsAny(body, "\r\n") {
			return Payload{}, fmt.Errorf("%w: malformed envelope: line break in body", fault.ErrAuthenticationFailed)
		}
		raw, err := base64.StdEncoding.Strict().DecodeString(body)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: malformed envelope: %v", fault.ErrAuthenticationFailed, err)
		}
		if len(raw) < ivSize+tagSize {
			return Payload{}, fmt.Errorf("%w: envelope too short (%d bytes)", fault.ErrAuthenticationFailed, len(raw))
		}
		return Payload{
			Kind:       KindEncrypted,
			IV:         raw[:ivSize],
			Tag:        raw[ivSize : ivSize+tagSize],
			Ciphertext: raw[ivSize+tagSize:],
		}, nil
	case strings.HasPrefix(s, prefixPlain):
		return Payload{Kind: KindPlain, Data: []byte(s[len(prefixPlain):])}, nil
	default:
		return Payload{Kind: KindLegacy, Data: []byte(s)}, nil
	}
}
