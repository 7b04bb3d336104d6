package context_test

import (
	"testing"

	. "github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/context/initializers"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantLoader implements Loader returning fixed values for given
// scope-and-name keys.
type constantLoader struct {
	values map[string]*tensors.Tensor
	err    error
}

func (l *constantLoader) LoadVariable(v *Variable) (*tensors.Tensor, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	value, found := l.values[v.ScopeAndName()]
	return value, found, nil
}

func TestScopes(t *testing.T) {
	ctx := New()
	assert.Equal(t, "/", ctx.Scope())
	ctxB := ctx.In("a").In("b")
	assert.Equal(t, "/a/b", ctxB.Scope())
	assert.Panics(t, func() { ctx.In("a/b") })
	assert.Equal(t, "a_b", EscapeScopeName("a/b"))

	v, err := ctxB.VariableWithShape("w", shapes.Make(shapes.F32, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, "/a/b/w", v.ScopeAndName())
	assert.Equal(t, "var:/a/b/w", v.ParameterName())

	// Variables created in a scope are visible from any reference sharing the data.
	assert.Same(t, v, ctx.InspectVariable("/a/b", "w"))
}

func TestVariableCreationAndReuse(t *testing.T) {
	ctx := New()
	v, err := ctx.VariableWithShape("w", shapes.Make(shapes.F32, 4))
	require.NoError(t, err)
	assert.False(t, v.HasValue())
	assert.True(t, ctx.NeedsInitialization())

	// Without Reuse, re-creating is an error.
	_, err = ctx.VariableWithShape("w", shapes.Make(shapes.F32, 4))
	require.Error(t, err)

	// With Reuse, the same variable comes back; shape must match.
	v2, err := ctx.Reuse().VariableWithShape("w", shapes.Make(shapes.F32, 4))
	require.NoError(t, err)
	assert.Same(t, v, v2)
	_, err = ctx.Reuse().VariableWithShape("w", shapes.Make(shapes.F32, 5))
	require.Error(t, err)

	// Dynamic shapes are placeholders' business, not variables'.
	_, err = ctx.VariableWithShape("bad", shapes.Make(shapes.F32, shapes.DynamicDim, 4))
	require.Error(t, err)
}

func TestVariableWithValue(t *testing.T) {
	ctx := New()
	v, err := ctx.VariableWithValue("bias", []float32{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, v.HasValue())
	assert.False(t, ctx.NeedsInitialization())
	assert.Equal(t, []float32{1, 2, 3}, tensors.CopyFlatData[float32](v.Value()))

	assert.Equal(t, 1, ctx.NumVariables())
	assert.Equal(t, 3, ctx.NumParameters())
	assert.Equal(t, uintptr(12), ctx.Memory())
}

func TestInitializeVariables(t *testing.T) {
	ctx := New().WithInitializer(initializers.Zeros)
	v1, err := ctx.VariableWithShape("w1", shapes.Make(shapes.F32, 2))
	require.NoError(t, err)
	v2, err := ctx.In("layer").VariableWithShape("w2", shapes.Make(shapes.F32, 3))
	require.NoError(t, err)
	require.Len(t, ctx.UninitializedVariables(), 2)

	require.NoError(t, ctx.InitializeVariables())
	assert.False(t, ctx.NeedsInitialization())
	assert.Equal(t, []float32{0, 0}, tensors.CopyFlatData[float32](v1.Value()))
	assert.Equal(t, []float32{0, 0, 0}, tensors.CopyFlatData[float32](v2.Value()))
}

func TestLoader(t *testing.T) {
	ctx := New().WithInitializer(initializers.Zeros)
	ctx.SetLoader(&constantLoader{values: map[string]*tensors.Tensor{
		"/w": tensors.FromFlatAndDimensions([]float32{7, 11}, 2),
	}})

	v, err := ctx.VariableWithShape("w", shapes.Make(shapes.F32, 2))
	require.NoError(t, err)
	other, err := ctx.VariableWithShape("other", shapes.Make(shapes.F32, 2))
	require.NoError(t, err)

	require.NoError(t, ctx.InitializeVariables())
	assert.Equal(t, []float32{7, 11}, tensors.CopyFlatData[float32](v.Value()))
	assert.Equal(t, []float32{0, 0}, tensors.CopyFlatData[float32](other.Value()))

	// From-scratch initialization ignores the loader.
	require.NoError(t, ctx.InitializeVariablesFromScratch(v))
	assert.Equal(t, []float32{0, 0}, tensors.CopyFlatData[float32](v.Value()))
}

func TestLoaderShapeMismatch(t *testing.T) {
	ctx := New().WithInitializer(initializers.Zeros)
	ctx.SetLoader(&constantLoader{values: map[string]*tensors.Tensor{
		"/w": tensors.FromFlatAndDimensions([]float32{7, 11, 13}, 3),
	}})
	v, err := ctx.VariableWithShape("w", shapes.Make(shapes.F32, 2))
	require.NoError(t, err)

	err = ctx.InitializeVariables()
	require.Error(t, err)
	assert.False(t, v.HasValue())
}
