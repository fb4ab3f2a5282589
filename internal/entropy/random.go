// Package entropy provides the deterministic random source that drives every
// stochastic decision in a simulation run. Two sources built from the same seed
// produce the same sequence, which is what makes seeded runs reproducible.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// LCG parameters (Numerical Recipes). Arithmetic wraps at 2^32.
const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
	lcgModulus    = 1 << 32

	// minUniform keeps Box-Muller away from log(0).
	minUniform = 1e-10
)

// Source is a linear congruential generator. Not safe for concurrent use;
// each simulation owns exactly one.
type Source struct {
	state uint32
	draws uint64
}

// NewSource creates a source seeded with the low 32 bits of seed.
func NewSource(seed int64) *Source {
	return &Source{state: uint32(seed)}
}

// Next returns a uniform float64 in [0, 1).
func (s *Source) Next() float64 {
	s.state = s.state*lcgMultiplier + lcgIncrement
	s.draws++
	return float64(s.state) / lcgModulus
}

// InRange maps Next linearly onto [min, max).
func (s *Source) InRange(min, max float64) float64 {
	return min + s.Next()*(max-min)
}

// Intn returns an integer in [0, n). Returns 0 when n <= 0 without drawing.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(s.Next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// IntBetween returns an integer in [lo, hi] inclusive.
func (s *Source) IntBetween(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.Intn(hi-lo+1)
}

// Gaussian returns an approximately standard-normal sample using the
// Box-Muller transform over two uniform draws.
func (s *Source) Gaussian() float64 {
	u1 := math.Max(s.Next(), minUniform)
	u2 := s.Next()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Draws returns how many uniform values have been consumed. Useful when
// checking that two runs consumed the stream in the same order.
func (s *Source) Draws() uint64 {
	return s.draws
}

// CryptoSeed picks a seed from crypto/rand for callers that did not supply one.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 42
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
