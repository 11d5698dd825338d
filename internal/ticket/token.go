package ticket

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// TokenLength is the length of a rendered token: hex of a SHA-256 digest.
	TokenLength = sha256.Size * 2
	saltBytes   = 16
)

// GenerateToken derives a fresh single-use token for identity from the issuance time and a random
// salt. A failing randomness source panics; there is nothing sensible to fall back to.
func GenerateToken(identity string) string {
	return generateToken(identity, time.Now())
}

func generateToken(identity string, at time.Time) string {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		panic("ticket: read random salt: " + err.Error())
	}
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte("-"))
	h.Write([]byte(strconv.FormatInt(at.UnixNano(), 10)))
	h.Write([]byte("-"))
	h.Write([]byte(hex.EncodeToString(salt)))
	return hex.EncodeToString(h.Sum(nil))
}
