package participants

import (
	"regexp"
	"testing"
)

func TestIdentityGenerator_FormatAndUniqueness(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^EVT-[A-Z]{3}$`)
	taken := map[string]struct{}{"EVT-AAA": {}}
	gen := NewIdentityGenerator("EVT", taken)

	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		id := gen.Next()
		if !pattern.MatchString(id) {
			t.Fatalf("identity %q does not match %s", id, pattern)
		}
		if id == "EVT-AAA" || seen[id] {
			t.Fatalf("identity %q handed out twice", id)
		}
		seen[id] = true
	}
	if len(taken) != 1 {
		t.Fatal("generator must not modify the caller's taken set")
	}
}

func TestIdentityGenerator_GrowsWhenSpaceIsExhausted(t *testing.T) {
	t.Parallel()

	gen := NewIdentityGenerator("X-", nil)
	gen.length = 1
	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		id := gen.Next()
		if seen[id] {
			t.Fatalf("identity %q handed out twice", id)
		}
		seen[id] = true
	}
	if gen.length < 2 {
		t.Fatalf("length = %d, want growth past a single letter after 26 ids", gen.length)
	}
}

func TestIdentityGenerator_EmptyPrefix(t *testing.T) {
	t.Parallel()

	if id := NewIdentityGenerator("", nil).Next(); !regexp.MustCompile(`^[A-Z]{3}$`).MatchString(id) {
		t.Fatalf("identity = %q, want three letters", id)
	}
}
