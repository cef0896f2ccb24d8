package kinetics

import (
	"math/rand/v2"
	"time"
)

// Source provides the draws the scheduler and reactions need.
type Source interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
	// ExpFloat64 returns an exponential draw with rate 1.
	ExpFloat64() float64
}

// NewSource returns a PCG-backed source seeded with seed.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// newTimeSource seeds from the wall clock, like an unseeded run of the original.
func newTimeSource() Source {
	return NewSource(uint64(time.Now().UnixNano()))
}

// weightedChoice picks an index with probability proportional to weights.
// It returns -1 if every weight is zero.
func weightedChoice(rng Source, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}
	target := rng.Float64() * total
	last := -1
	var cum float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		last = i
		if target < cum {
			return i
		}
	}
	return last
}
