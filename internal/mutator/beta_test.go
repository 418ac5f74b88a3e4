package mutator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleBetaStaysInUnitInterval(t *testing.T) {
	for i := 0; i < 500; i++ {
		v := sampleBeta(2, 5)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSampleBetaWithFlatPriorAveragesNearHalf(t *testing.T) {
	sum := 0.0
	const n = 4000
	for i := 0; i < n; i++ {
		sum += sampleBeta(1, 1)
	}
	mean := sum / n
	assert.InDelta(t, 0.5, mean, 0.05)
}

func TestSampleGammaIsPositive(t *testing.T) {
	for _, shape := range []float64{0.1, 0.5, 1, 2, 10} {
		for i := 0; i < 50; i++ {
			assert.Greater(t, sampleGamma(shape), 0.0)
		}
	}
}
