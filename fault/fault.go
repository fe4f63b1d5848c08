// Package fault holds the error taxonomy shared by every trustops component.
//
// Components wrap these sentinels with context (fmt.Errorf("...: %w", fault.ErrNotFound)),
// so callers test with errors.Is and transports map errors through KindOf.
package fault

import "errors"

var (
	ErrInvalidKeyFormat     = errors.New("invalid encryption key format")
	ErrKeyMissing           = errors.New("encryption key missing")
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid state transition")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSinkUnavailable      = errors.New("audit sink unavailable")
)

type Kind string

const (
	KindInvalidKeyFormat     Kind = "invalid_key_format"
	KindKeyMissing           Kind = "key_missing"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindNotFound             Kind = "not_found"
	KindInvalidTransition    Kind = "invalid_transition"
	KindInvalidAction        Kind = "invalid_action"
	KindInvalidInput         Kind = "invalid_input"
	KindSinkUnavailable      Kind = "sink_unavailable"
	KindInternal             Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	// SinkUnavailable goes first: a mutation may succeed and still fail to audit.
	{ErrSinkUnavailable, KindSinkUnavailable},
	{ErrInvalidKeyFormat, KindInvalidKeyFormat},
	{ErrKeyMissing, KindKeyMissing},
	{ErrAuthenticationFailed, KindAuthenticationFailed},
	{ErrNotFound, KindNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrInvalidAction, KindInvalidAction},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf returns the kind of the first known sentinel wrapped by err.
// A nil error has an empty kind; unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsClientError reports whether the kind is caused by the request rather than the system.
func (k Kind) IsClientError() bool {
	switch k {
	case KindNotFound, KindInvalidTransition, KindInvalidAction, KindInvalidInput:
		return true
	}
	return false
}
