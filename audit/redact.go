package audit

import "strings"

const RedactedMarker = "[REDACTED]"

// Compared after lowercasing and dropping '-' and '_', so "access_token",
// "Access-Token" and "accessToken" are the same key.
var deniedKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"accesstoken":   true,
	"apikey":        true,
	"authorization": true,
	"cookie":        true,
	"creditcard":    true,
}

func IsSensitiveKey(key string) bool {
	n := strings.ToLower(strings.TrimSpace(key))
	n = strings.ReplaceAll(strings.ReplaceAll(n, "-", ""), "_", "")
	return deniedKeys[n]
}

// Redact returns a deep copy of meta with every denied key's value replaced by
// RedactedMarker, at any nesting depth. The input is never modified.
func Redact(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if IsSensitiveKey(k) {
			out[k] = RedactedMarker
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return Redact(x)
	case map[string]string:
		out := make(map[string]string, len(x))
		for k, s := range x {
			if IsSensitiveKey(k) {
				s = RedactedMarker
			}
			out[k] = s
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, m := range x {
			out[i] = Redact(m)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = redactValue(vv)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
