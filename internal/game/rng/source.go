// Package rng provides the randomness source for combat resolution. The
// interface is injected everywhere a die is rolled so tests can script
// outcomes deterministically.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Source yields random draws. Implementations must be safe for concurrent
// use.
type Source interface {
	// Intn returns a uniform value in [0, n). Panics if n <= 0.
	Intn(n int) int
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// cryptoSource draws from the operating system's entropy pool.
type cryptoSource struct{}

// NewCryptoSource returns the production Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("rng: Intn called with n <= 0 (%d)", n))
	}
	return int(read64() % uint64(n))
}

func (cryptoSource) Float64() float64 {
	// 53 bits of entropy matches the float64 mantissa.
	return float64(read64()>>11) / (1 << 53)
}

func read64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand blocks rather than fails on every supported
		// platform; an error here means the process is beyond saving.
		panic(fmt.Sprintf("rng: reading entropy: %v", err))
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// Between returns a uniform value in [min, max]. A degenerate range
// (max <= min) collapses to min.
func Between(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.Intn(max-min+1)
}

// Chance rolls a probability: true with probability p. p <= 0 never
// succeeds and p >= 1 always does, without consuming a draw.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return src.Float64() < p
}
