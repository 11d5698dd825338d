package ticket

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	token := GenerateToken("EVT-007")
	payload, err := EncodePayload("EVT-007", token)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if payload != "EVT-007|"+token {
		t.Fatalf("payload = %q", payload)
	}
	claim, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claim.Identity != "EVT-007" || claim.Token != token {
		t.Fatalf("claim = %+v", claim)
	}
}

func TestDecodePayload_TrimsScannerWhitespace(t *testing.T) {
	t.Parallel()

	claim, err := DecodePayload("  EVT-001|abc\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claim.Identity != "EVT-001" || claim.Token != "abc" {
		t.Fatalf("claim = %+v", claim)
	}
}

func TestDecodePayload_Malformed(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"", "EVT-001", "EVT-001|a|b", "|abc", "EVT-001|", "|", "||"} {
		if _, err := DecodePayload(payload); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("DecodePayload(%q) err = %v, want ErrMalformedPayload", payload, err)
		}
	}
}

func TestEncodePayload_RejectsDelimiterCollision(t *testing.T) {
	t.Parallel()

	cases := [][2]string{
		{"EVT|001", "abc"},
		{"EVT-001", "ab|c"},
		{"", "abc"},
		{"EVT-001", ""},
	}
	for _, c := range cases {
		if _, err := EncodePayload(c[0], c[1]); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("EncodePayload(%q, %q) err = %v, want ErrMalformedPayload", c[0], c[1], err)
		}
	}
}

func TestValidIdentity(t *testing.T) {
	t.Parallel()

	valid := []string{"EVT-007", "SEMNASTI2025-ABC", "a", "guest_12"}
	invalid := []string{"", "-EVT", "EVT|007", "EVT 007", "EVT\t7", strings.Repeat("A", MaxIdentityLength+1)}
	for _, s := range valid {
		if !ValidIdentity(s) {
			t.Errorf("ValidIdentity(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if ValidIdentity(s) {
			t.Errorf("ValidIdentity(%q) = true, want false", s)
		}
	}
}
