package clifmt

import "testing"

func TestNoColorLeavesTextUntouched(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	for _, got := range []string{
		Headerf("ID\t%s", "STATUS"),
		Success("ok"),
		Status("APPROVED"),
		Status("unknown"),
	} {
		for _, r := range got {
			if r == '\x1b' {
				t.Fatalf("escape sequence in %q with NO_COLOR set", got)
			}
		}
	}
	if got := Headerf("ID\t%s", "STATUS"); got != "ID\tSTATUS" {
		t.Fatalf("Headerf() = %q", got)
	}
}
