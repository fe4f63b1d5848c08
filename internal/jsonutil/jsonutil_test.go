package jsonutil

import (
	"errors"
	"testing"
)

func TestDecodePlainJSON(t *testing.T) {
	var got struct {
		Controls []string `json:"controls"`
	}
	if err := Decode(`{"controls":["CC1.1","CC6.2"]}`, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Controls) != 2 || got.Controls[1] != "CC6.2" {
		t.Fatalf("unexpected controls: %#v", got.Controls)
	}
}

func TestDecodeFencedJSON(t *testing.T) {
	text := "Here is the gap analysis:\n```json\n{\"gaps\": 3}\n```\nLet me know."
	var got map[string]any
	if err := Decode(text, &got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["gaps"] != float64(3) {
		t.Fatalf("gaps = %#v", got["gaps"])
	}
}

func TestExtractEmpty(t *testing.T) {
	if _, err := Extract("   "); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
