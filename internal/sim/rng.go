package sim

import (
	"math"
	"math/rand/v2"
)

// RNG is the single seedable generator of a simulation. Shaders receive
// the seed through params and hash it, so host randomness only decides
// initial layouts and randomized settings.
type RNG struct {
	r    *rand.Rand
	seed uint64
}

// NewRNG creates a deterministic generator.
func NewRNG(seed uint64) *RNG {
	return &RNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), seed: seed}
}

// Seed returns the seed the generator started from.
func (r *RNG) Seed() uint64 { return r.seed }

// Reseed restarts the sequence.
func (r *RNG) Reseed(seed uint64) {
	*r = *NewRNG(seed)
}

// Float32 returns a value in [0, 1).
func (r *RNG) Float32() float32 { return r.r.Float32() }

// Float64 returns a value in [0, 1).
func (r *RNG) Float64() float64 { return r.r.Float64() }

// Uint32 returns a random word, used to derive shader seeds.
func (r *RNG) Uint32() uint32 { return r.r.Uint32() }

// IntN returns a value in [0, n).
func (r *RNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return r.r.IntN(n)
}

// Uniform returns a value in [lo, hi).
func (r *RNG) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*r.r.Float64()
}

// Range returns a float32 in [lo, hi).
func (r *RNG) Range(lo, hi float32) float32 {
	return lo + (hi-lo)*r.r.Float32()
}

// Triangular samples the triangular distribution on [lo, hi] with the
// given mode.
func (r *RNG) Triangular(lo, mode, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	mode = min(max(mode, lo), hi)
	u := r.r.Float64()
	c := (mode - lo) / (hi - lo)
	if u < c {
		return lo + math.Sqrt(u*(hi-lo)*(mode-lo))
	}
	return hi - math.Sqrt((1-u)*(hi-lo)*(hi-mode))
}

// Bool returns a fair coin flip.
func (r *RNG) Bool() bool { return r.r.IntN(2) == 1 }

// Rand exposes the underlying generator.
func (r *RNG) Rand() *rand.Rand { return r.r }

// Hash is the PCG integer hash the shaders use for per-element
// randomness. CPU models call it to stay in step with the GPU.
func Hash(x uint32) uint32 {
	s := x*747796405 + 2891336453
	w := ((s >> ((s >> 28) + 4)) ^ s) * 277803737
	return (w >> 22) ^ w
}

// HashUnit maps Hash(x) to [0, 1].
func HashUnit(x uint32) float32 {
	return float32(Hash(x)) / math.MaxUint32
}
