package shapes

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Make(Float32, 2, 3)
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, 3, s.Dim(-1))
	assert.Equal(t, "(Float32)[2 3]", s.String())
	assert.True(t, s.Equal(Make(F32, 2, 3)))
	assert.False(t, s.Equal(Make(F64, 2, 3)))
	assert.True(t, s.EqualDimensions(Make(F64, 2, 3)))
	assert.Equal(t, uintptr(24), s.Memory())

	scalar := Scalar[float64]()
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, 1, scalar.Size())

	assert.False(t, Invalid().Ok())
	assert.Panics(t, func() { Make(Float32, 0) })
	assert.Panics(t, func() { s.Dim(2) })
}

func TestShapeDynamic(t *testing.T) {
	placeholder := Make(Float32, DynamicDim, 3, 60)
	assert.True(t, placeholder.IsDynamic())
	assert.Panics(t, func() { placeholder.Size() })

	require.NoError(t, placeholder.AssertFeedable(Make(Float32, 8, 3, 60)))
	require.Error(t, placeholder.AssertFeedable(Make(Float32, 8, 4, 60)))
	require.Error(t, placeholder.AssertFeedable(Make(Float64, 8, 3, 60)))
	require.Error(t, placeholder.AssertFeedable(Make(Float32, 8, 3)))
}

func TestShapeGob(t *testing.T) {
	s := Make(Int32, 4, 5)
	var buf bytes.Buffer
	require.NoError(t, s.GobSerialize(gob.NewEncoder(&buf)))
	s2, err := GobDeserialize(gob.NewDecoder(&buf))
	require.NoError(t, err)
	assert.True(t, s.Equal(s2))
}

func TestDType(t *testing.T) {
	assert.True(t, Float16.IsFloat())
	assert.True(t, Int64.IsInt())
	assert.False(t, Bool.IsFloat())
	assert.True(t, Bool.IsSupported())
	assert.Equal(t, "Float32", F32.String())
	assert.Equal(t, Float32, DTypeGeneric[float32]())
	assert.Equal(t, Int32, DTypeGeneric[int32]())

	dtype, err := DTypeString("float64")
	require.NoError(t, err)
	assert.Equal(t, Float64, dtype)
	_, err = DTypeString("complex")
	require.Error(t, err)
}
