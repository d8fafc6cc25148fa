package particlelife

import "github.com/gogpu/simviz/internal/sim"

// Matrix generators in enum order.
const (
	GenRandom = iota
	GenSymmetric
	GenChains
	GenSnakes
	GenAttract
	GenRepel
)

// GenerateForces fills the first n×n entries of a force table in [-1, 1].
func GenerateForces(gen, n int, rng *sim.RNG) Matrix {
	var m Matrix
	n = min(max(n, 1), MaxSpecies)
	set := func(i, j int, v float32) { m[i*MaxSpecies+j] = v }
	for i := range n {
		for j := range n {
			next, prev := (i+1)%n, (i+n-1)%n
			switch gen {
			case GenChains:
				switch {
				case j == i:
					set(i, j, 1)
				case j == next || j == prev:
					set(i, j, 0.2)
				default:
					set(i, j, -1)
				}
			case GenSnakes:
				switch {
				case j == i:
					set(i, j, 1)
				case j == next:
					set(i, j, 0.2)
				}
			case GenAttract:
				set(i, j, rng.Range(0.1, 1))
			case GenRepel:
				if i == j {
					set(i, j, rng.Range(0, 1))
				} else {
					set(i, j, rng.Range(-1, 0))
				}
			default:
				set(i, j, rng.Range(-1, 1))
			}
		}
	}
	if gen == GenSymmetric {
		for i := range n {
			for j := range i {
				m[i*MaxSpecies+j] = m[j*MaxSpecies+i]
			}
		}
	}
	return m
}

// GenerateBetas fills a β table around beta, each pair offset by up to
// ±variation and clamped to [0.05, 0.9].
func GenerateBetas(beta, variation float32, n int, rng *sim.RNG) Matrix {
	var m Matrix
	n = min(max(n, 1), MaxSpecies)
	for i := range n {
		for j := range n {
			v := beta
			if variation > 0 {
				v += rng.Range(-variation, variation)
			}
			m[i*MaxSpecies+j] = min(max(v, 0.05), 0.9)
		}
	}
	return m
}
