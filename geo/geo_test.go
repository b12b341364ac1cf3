package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters_SamePointIsZero(t *testing.T) {
	assert.Zero(t, HaversineMeters(48.366, 10.885, 48.366, 10.885))
}

func TestHaversineMeters_Symmetric(t *testing.T) {
	ab := HaversineMeters(48.366, 10.885, 48.40, 10.95)
	ba := HaversineMeters(48.40, 10.95, 48.366, 10.885)
	assert.Equal(t, ab, ba)
	assert.GreaterOrEqual(t, ab, 0.0)
}

func TestSquaredDegreeDistance_ExactMatch(t *testing.T) {
	assert.Zero(t, SquaredDegreeDistance(48.0, 11.0, 48.0, 11.0))
}

func TestSquaredDegreeDistance_MatchesThresholdConstant(t *testing.T) {
	d := SquaredDegreeDistance(48.0, 11.0, 48.0, 11.005)
	assert.InDelta(t, 0.005*0.005, d, 1e-12)
}
