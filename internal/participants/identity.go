package participants

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	identityLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// DefaultSuffixLength is the number of random letters after the prefix.
	DefaultSuffixLength = 3
	// collisionsBeforeGrow is how many taken candidates in a row make the suffix one letter longer.
	collisionsBeforeGrow = 50
)

// IdentityGenerator hands out unique ids of the form PREFIX-XXX that do not collide with taken ids
// or with ids it already handed out.
type IdentityGenerator struct {
	prefix string
	length int
	taken  map[string]struct{}
}

// NewIdentityGenerator creates a generator. taken is copied.
func NewIdentityGenerator(prefix string, taken map[string]struct{}) *IdentityGenerator {
	t := make(map[string]struct{}, len(taken))
	for id := range taken {
		t[id] = struct{}{}
	}
	return &IdentityGenerator{
		prefix: strings.TrimSuffix(strings.TrimSpace(prefix), "-"),
		length: DefaultSuffixLength,
		taken:  t,
	}
}

// Next returns a fresh identity and records it as taken.
func (g *IdentityGenerator) Next() string {
	misses := 0
	for {
		id := g.candidate()
		if _, dup := g.taken[id]; !dup {
			g.taken[id] = struct{}{}
			return id
		}
		misses++
		if misses >= collisionsBeforeGrow {
			g.length++
			misses = 0
		}
	}
}

func (g *IdentityGenerator) candidate() string {
	var b strings.Builder
	if g.prefix != "" {
		b.WriteString(g.prefix)
		b.WriteByte('-')
	}
	alphabet := big.NewInt(int64(len(identityLetters)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			panic("participants: crypto/rand failed: " + err.Error())
		}
		b.WriteByte(identityLetters[n.Int64()])
	}
	return b.String()
}
