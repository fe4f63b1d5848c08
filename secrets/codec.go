package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/quailyquaily/trustops/fault"
)

const (
	ivSize  = 16
	tagSize = 16
)

type Mode string

const (
	ModeEncrypted Mode = "encrypted"
	ModePlaintext Mode = "plaintext"
)

type Options struct {
	Logger *slog.Logger
	// RequireKey turns the plaintext fallback into a startup failure.
	RequireKey bool
	// Rand overrides the IV source. Tests only.
	Rand io.Reader
}

// Codec seals secrets with AES-256-GCM using a 16-byte IV and a 16-byte tag.
// Without a key it runs in plaintext mode and tags its output "plain:".
// A nil *Codec behaves like a codec in plaintext mode.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCodec validates key material up front so a bad key fails at startup,
// never at first use.
func NewCodec(key string, opts Options) (*Codec, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := opts.Rand
	if r == nil {
		r = rand.Reader
	}

	if k == nil {
		if opts.RequireKey {
			return nil, fmt.Errorf("secrets codec: %w (encryption.require_key is set)", fault.ErrKeyMissing)
		}
		log.Warn("secrets_degraded_mode",
			"mode", string(ModePlaintext),
			"effect", "secrets are stored with the plain: prefix",
		)
		return &Codec{rand: r}, nil
	}

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInvalidKeyFormat, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	log.Info("secrets_codec_ready", "mode", string(ModeEncrypted))
	return &Codec{aead: aead, rand: r}, nil
}

func (c *Codec) Mode() Mode {
	if c == nil || c.aead == nil {
		return ModePlaintext
	}
	return ModeEncrypted
}

// Encrypt seals plaintext under a fresh random IV, so two calls never produce
// the same envelope.
func (c *Codec) Encrypt(plaintext []byte) (Payload, error) {
	if c.Mode() == ModePlaintext {
		return Payload{Kind: KindPlain, Data: append([]byte(nil), plaintext...)}, nil
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Payload{}, fmt.Errorf("generate iv: %w", err)
	}
	// Seal returns ciphertext || tag.
	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - tagSize
	return Payload{
		Kind:       KindEncrypted,
		IV:         iv,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt dispatches on the payload kind. Encrypted payloads need a key and
// either authenticate completely or return no plaintext at all.
func (c *Codec) Decrypt(p Payload) ([]byte, error) {
	switch p.Kind {
	case KindPlain, KindLegacy:
		return append([]byte(nil), p.Data...), nil
	case KindEncrypted:
	default:
		return nil, fmt.Errorf("unknown payload kind %q", p.Kind)
	}

	if c.Mode() == ModePlaintext {
		return nil, fmt.Errorf("decrypt: %w", fault.ErrKeyMissing)
	}
	if len(p.IV) != ivSize || len(p.Tag) != tagSize {
		return nil, fmt.Errorf("%w: bad envelope layout (iv=%d tag=%d)", fault.ErrAuthenticationFailed, len(p.IV), len(p.Tag))
	}

	sealed := make([]byte, 0, len(p.Ciphertext)+tagSize)
	sealed = append(sealed, p.Ciphertext...)
	sealed = append(sealed, p.Tag...)
	out, err := c.aead.Open(nil, p.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrAuthenticationFailed, err)
	}
	return out, nil
}

// EncryptString returns the wire form of the sealed value.
func (c *Codec) EncryptString(plaintext string) (string, error) {
	p, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

func (c *Codec) DecryptString(wire string) (string, error) {
	p, err := ParsePayload(wire)
	if err != nil {
		return "", err
	}
	b, err := c.Decrypt(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Reseal upgrades a plain or legacy value to an encrypted one once a key is
// configured. Encrypted values, and every value in plaintext mode, are returned as-is.
func (c *Codec) Reseal(wire string) (string, bool, error) {
	p, err := ParsePayload(wire)
	if err != nil {
		return "", false, err
	}
	if p.Encrypted() || c.Mode() == ModePlaintext {
		return wire, false, nil
	}
	sealed, err := c.Encrypt(p.Data)
	if err != nil {
		return "", false, err
	}
	return sealed.String(), true, nil
}
