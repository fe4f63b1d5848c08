// Package jsonutil pulls structured payloads out of model-generated text.
//
// AI features store their raw output as approval content. That text is
// usually JSON, but may carry prose, code fences or small syntax slips.
package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/quailyquaily/uniai"
)

var (
	ErrEmpty    = errors.New("empty content")
	ErrNotFound = errors.New("no json payload in content")
)

// Extract returns the first JSON document found in text. Candidates are
// tried verbatim first, then with non-JSON lines stripped, then repaired.
func Extract(text string) ([]byte, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrEmpty
	}
	var lastErr error
	for _, cand := range candidates(raw) {
		for _, v := range variants(cand) {
			var probe any
			if err := json.Unmarshal([]byte(v), &probe); err != nil {
				lastErr = err
				continue
			}
			return []byte(v), nil
		}
	}
	if lastErr != nil {
		return nil, errors.Join(ErrNotFound, lastErr)
	}
	return nil, ErrNotFound
}

// Decode extracts the payload from text and unmarshals it into dst.
func Decode(text string, dst any) error {
	data, err := Extract(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

type uniq struct {
	seen map[string]bool
	list []string
}

func (u *uniq) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" || u.seen[s] {
		return
	}
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}
	u.seen[s] = true
	u.list = append(u.list, s)
}

func candidates(raw string) []string {
	var u uniq
	u.add(raw)
	if found, err := uniai.CollectJSONCandidates(raw); err == nil {
		for _, c := range found {
			u.add(c)
		}
	}
	for _, c := range uniai.FindJSONSnippets(raw) {
		u.add(c)
	}
	return u.list
}

func variants(cand string) []string {
	var u uniq
	u.add(cand)
	stripped := uniai.StripNonJSONLines(cand)
	u.add(stripped)
	u.add(uniai.AttemptJSONRepair(cand))
	if s := strings.TrimSpace(stripped); s != "" && s != cand {
		u.add(uniai.AttemptJSONRepair(s))
	}
	return u.list
}
