package quantize

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math"
	mathrand "math/rand/v2"

	"golang.org/x/crypto/hkdf"
)

// hkdf domain separation label for rounding seeds.
var roundingSeedInfo = []byte("quantagg/stochastic-rounding/v1")

// Source supplies the randomness for one encode invocation. Each
// Source is seeded independently from OS entropy, expanded through
// HKDF into a ChaCha8 stream; two Sources never share seed material,
// so rounding realizations across calls and across contributors are
// uncorrelated. A Source is not safe for concurrent use; create one
// per goroutine.
type Source struct {
	rng *mathrand.Rand
}

// NewSource creates a freshly seeded rounding source.
func NewSource() (*Source, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("reading seed entropy: %w", err)
	}
	expand := hkdf.New(sha256.New, ikm[:], nil, roundingSeedInfo)
	var seed [32]byte
	if _, err := io.ReadFull(expand, seed[:]); err != nil {
		return nil, fmt.Errorf("expanding seed: %w", err)
	}
	return &Source{rng: mathrand.New(mathrand.NewChaCha8(seed))}, nil
}

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool {
	return s.rng.Float64() < p
}

// Round maps v to one of the two adjacent integers: floor(v) with
// probability 1-f and ceil(v) with probability f, where f is the
// fractional part of v. The expectation of the result is exactly v.
// Integral inputs round deterministically to themselves. v must lie
// within the int64 range; the float to integer conversion is not
// defined outside it. RoundInt32 handles arbitrary magnitudes.
func Round(v float64, src *Source) int64 {
	floor := math.Floor(v)
	frac := v - floor
	if frac == 0 {
		return int64(floor)
	}
	if src.Bernoulli(frac) {
		return int64(floor) + 1
	}
	return int64(floor)
}

// RoundInt32 stochastically rounds v and saturates the result to the
// int32 range, the fixed width of the encoded representation. Inputs
// at or beyond the int32 bounds clamp in the float domain, before any
// float to integer conversion, so magnitudes past the int64 range
// saturate with the correct sign instead of hitting the conversion's
// undefined region.
func RoundInt32(v float64, src *Source) int32 {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if v <= math.MinInt32 {
		return math.MinInt32
	}
	return clampInt32(Round(v, src))
}

// clampInt32 saturates n to the int32 range.
func clampInt32(n int64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int32(n)
}
