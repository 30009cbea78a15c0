package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mathext/prng"
)

// normalSource draws gaussian variates from a 32-bit Mersenne Twister with
// the polar method, caching the second variate of every accepted pair. Given
// the same seed it produces the same stream as numpy's legacy RandomState.
type normalSource struct {
	mt       *prng.MT19937
	spare    float64
	hasSpare bool
}

// newRand returns an instance-owned generator. Only the low 32 bits of seed
// are used; a zero seed draws one from the clock.
func newRand(seed int64) *normalSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mt := prng.NewMT19937()
	mt.Seed(uint64(seed))
	return &normalSource{mt: mt}
}

// Float64 returns a uniform value in [0, 1) with 53 bits of precision.
func (s *normalSource) Float64() float64 {
	a := s.mt.Uint32() >> 5
	b := s.mt.Uint32() >> 6
	return (float64(a)*67108864 + float64(b)) / 9007199254740992
}

// NormFloat64 returns a standard normal variate.
func (s *normalSource) NormFloat64() float64 {
	if s.hasSpare {
		s.hasSpare = false
		return s.spare
	}
	var x1, x2, r2 float64
	for {
		x1 = 2*s.Float64() - 1
		x2 = 2*s.Float64() - 1
		r2 = x1*x1 + x2*x2
		if r2 < 1 && r2 != 0 {
			break
		}
	}
	f := math.Sqrt(-2 * math.Log(r2) / r2)
	s.spare = f * x1
	s.hasSpare = true
	return f * x2
}
