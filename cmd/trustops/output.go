package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/quailyquaily/trustops/fault"
	"gopkg.in/yaml.v3"
)

// render writes v in the selected output format. text is used for the
// default human format.
func (c *cli) render(w io.Writer, v any, text func(w io.Writer)) error {
	switch strings.ToLower(strings.TrimSpace(c.v.GetString("output"))) {
	case "", "text":
		text(w)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", c.v.GetString("output"))
}

// partialError marks a mutation that was applied but whose audit entry could
// not be written.
type partialError struct{ err error }

func (e *partialError) Error() string { return "applied without audit entry: " + e.err.Error() }
func (e *partialError) Unwrap() error { return e.err }

// settle renders the entity returned by a mutating call. When only the audit
// append failed the entity is still printed and a partialError returned.
func (c *cli) settle(w io.Writer, v any, err error, text func(w io.Writer)) error {
	if err != nil && !errors.Is(err, fault.ErrSinkUnavailable) {
		return err
	}
	if rerr := c.render(w, v, text); rerr != nil {
		return rerr
	}
	if err != nil {
		return &partialError{err: err}
	}
	return nil
}
