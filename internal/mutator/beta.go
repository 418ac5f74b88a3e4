package mutator

import (
	"math"
	"math/rand/v2"
)

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang method.
// Valid for shape >= 1; our bandit counters start at 1 and only increase,
// so alpha, beta >= 1 always holds in practice.
func sampleGamma(shape float64) float64 {
	if shape < 1 {
		// Boost via Gamma(shape+1) and a uniform correction (standard trick).
		u := rand.Float64()
		return sampleGamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = rand.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rand.Float64()

		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// sampleBeta draws from Beta(alpha, beta) via the Gamma-ratio construction:
// X ~ Gamma(alpha), Y ~ Gamma(beta), X/(X+Y) ~ Beta(alpha, beta).
func sampleBeta(alpha, beta float64) float64 {
	x := sampleGamma(alpha)
	y := sampleGamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}
