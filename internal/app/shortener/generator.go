// Package shortener produces collision-free short codes.
package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"shortreg/internal/infra/prometheus"
)

// 62 symbols: digits, upper case, lower case.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultLength      = 6
	DefaultMaxAttempts = 10

	bloomCapacity = 1_000_000
	bloomFPRate   = 0.001
)

// ErrExhausted means no free code was found within the retry budget. With
// a 62-symbol alphabet at length 6 that should essentially never happen
// under correct randomness, so callers treat it as an operational anomaly.
var ErrExhausted = errors.New("shortener: no free code within retry budget")

// CodeChecker is the slice of the storage contract the generator needs.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator draws random candidates and resolves collisions against the
// active storage backend. A bloom filter remembers codes minted by this
// process so a colliding candidate can be rejected without a storage
// round-trip; a bloom miss still consults the store, since the filter
// knows nothing about codes created before startup.
type Generator struct {
	checker     CodeChecker
	length      int
	maxAttempts int

	mu     sync.Mutex
	minted *bloom.BloomFilter
}

// New returns a generator checking candidates against checker. Non-positive
// length or maxAttempts fall back to the defaults.
func New(checker CodeChecker, length, maxAttempts int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		checker:     checker,
		length:      length,
		maxAttempts: maxAttempts,
		minted:      bloom.NewWithEstimates(bloomCapacity, bloomFPRate),
	}
}

// Generate returns a code that did not exist at check time. The store's
// create remains authoritative: a candidate that survives this check but
// loses a concurrent create race still surfaces as a Conflict there.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := randomCode(g.length)
		if err != nil {
			return "", fmt.Errorf("shortener: draw candidate: %w", err)
		}

		g.mu.Lock()
		mintedHere := g.minted.TestString(candidate)
		g.mu.Unlock()
		if mintedHere {
			prometheus.CodeCollisions.Inc()
			continue
		}

		exists, err := g.checker.CodeExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("shortener: check candidate: %w", err)
		}
		if exists {
			prometheus.CodeCollisions.Inc()
			continue
		}
		return candidate, nil
	}

	prometheus.GenerationExhausted.Inc()
	return "", ErrExhausted
}

// Remember records a code whose create succeeded, so later candidates can
// skip the storage round-trip for it.
func (g *Generator) Remember(code string) {
	g.mu.Lock()
	g.minted.AddString(code)
	g.mu.Unlock()
}

var alphabetLen = big.NewInt(int64(len(alphabet)))

// randomCode draws n symbols with crypto/rand; a predictable counter would
// let one user enumerate another's links.
func randomCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
