package data_test

import (
	"math"
	"testing"

	. "github.com/barseq/barseq/ml/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSampleWeights(t *testing.T) {
	// Absent weights default to 1.0 per sample.
	weights, err := NormalizeSampleWeights(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, weights)

	// Given weights are validated and copied.
	given := []float64{0.5, 2, 1}
	weights, err = NormalizeSampleWeights(given, 3)
	require.NoError(t, err)
	assert.Equal(t, given, weights)
	weights[0] = 9
	assert.Equal(t, 0.5, given[0])

	_, err = NormalizeSampleWeights([]float64{1, 2}, 3)
	require.Error(t, err)
	_, err = NormalizeSampleWeights([]float64{1, math.NaN(), 1}, 3)
	require.Error(t, err)
	_, err = NormalizeSampleWeights([]float64{1, -0.5, 1}, 3)
	require.Error(t, err)
}
