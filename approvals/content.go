package approvals

import (
	"fmt"

	"github.com/quailyquaily/trustops/fault"
	"github.com/quailyquaily/trustops/internal/jsonutil"
	"github.com/quailyquaily/trustops/internal/strutil"
)

// DecodeContent parses the structured payload inside an artifact's content.
// Model output wrapped in prose or code fences is accepted.
func DecodeContent(a Approval, dst any) error {
	if err := jsonutil.Decode(a.Content, dst); err != nil {
		return fmt.Errorf("decode content of %s: %w: %w", a.ID, fault.ErrInvalidInput, err)
	}
	return nil
}

// Preview is a single-line summary of the content for listings.
func Preview(a Approval, maxBytes int) string {
	if maxBytes <= 0 {
		maxBytes = 80
	}
	return strutil.Preview(a.Content, maxBytes)
}
