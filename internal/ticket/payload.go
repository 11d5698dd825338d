package ticket

import (
	"fmt"
	"regexp"
	"strings"
)

// Delimiter separates identity and token in a ticket payload.
const Delimiter = "|"

// identityPattern is the public identity charset. It excludes the delimiter, so a bare split is
// unambiguous for every identity the store can hold.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// MaxIdentityLength matches the unique_id column width.
const MaxIdentityLength = 255

// Claim is a decoded ticket payload.
type Claim struct {
	Identity string
	Token    string
}

// ValidIdentity reports whether s can be used as a participant identity.
func ValidIdentity(s string) bool {
	return len(s) <= MaxIdentityLength && identityPattern.MatchString(s)
}

// EncodePayload renders identity and token as "identity|token".
func EncodePayload(identity, token string) (string, error) {
	if identity == "" || token == "" {
		return "", fmt.Errorf("%w: empty part", ErrMalformedPayload)
	}
	if strings.Contains(identity, Delimiter) || strings.Contains(token, Delimiter) {
		return "", fmt.Errorf("%w: part contains delimiter", ErrMalformedPayload)
	}
	return identity + Delimiter + token, nil
}

// DecodePayload splits a scanned payload into its claim. It only checks shape; whether the claim
// is valid is decided by Service.Redeem.
func DecodePayload(payload string) (Claim, error) {
	parts := strings.Split(strings.TrimSpace(payload), Delimiter)
	if len(parts) != 2 {
		return Claim{}, fmt.Errorf("%w: expected 2 parts, got %d", ErrMalformedPayload, len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return Claim{}, fmt.Errorf("%w: empty part", ErrMalformedPayload)
	}
	return Claim{Identity: parts[0], Token: parts[1]}, nil
}
