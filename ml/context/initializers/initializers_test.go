package initializers

import (
	"testing"

	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerosAndOnes(t *testing.T) {
	zeros, err := Zeros(shapes.Make(shapes.F32, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, tensors.CopyFlatData[float32](zeros))

	ones, err := Ones(shapes.Make(shapes.I32, 3))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1, 1}, tensors.CopyFlatData[int32](ones))
}

func TestRandomUniform(t *testing.T) {
	init := RandomUniformFn(42, -0.1, 0.1)
	value, err := init(shapes.Make(shapes.F32, 100))
	require.NoError(t, err)
	for _, v := range tensors.CopyFlatData[float32](value) {
		assert.GreaterOrEqual(t, v, float32(-0.1))
		assert.Less(t, v, float32(0.1))
	}

	// Same seed, same values.
	value2, err := RandomUniformFn(42, -0.1, 0.1)(shapes.Make(shapes.F32, 100))
	require.NoError(t, err)
	assert.True(t, value.Equal(value2))

	// Random initialization of integer variables is not defined.
	_, err = init(shapes.Make(shapes.I32, 10))
	require.Error(t, err)
}
