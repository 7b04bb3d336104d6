package checkpoints_test

import (
	"testing"

	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/context/checkpoints"
	"github.com/barseq/barseq/ml/context/initializers"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	// Build a context with a couple of variables and save them.
	ctx := context.New().WithInitializer(initializers.Zeros)
	v := must.M1(ctx.VariableWithValue("weights", []float32{3, 5, 7}))
	_ = must.M1(ctx.In("layer_1").VariableWithValue("bias", []float32{11}))
	handler := must.M1(checkpoints.Build(ctx).Dir(dir).Done())
	assert.False(t, handler.HasCheckpoint())
	require.NoError(t, handler.Save())

	// A fresh context with the same declarations gets the saved values back.
	ctx2 := context.New().WithInitializer(initializers.Zeros)
	handler2 := must.M1(checkpoints.Build(ctx2).Dir(dir).Done())
	assert.True(t, handler2.HasCheckpoint())

	v2 := must.M1(ctx2.VariableWithShape("weights", shapes.Make(shapes.F32, 3)))
	require.NoError(t, ctx2.InitializeVariables())
	assert.Equal(t, []float32{3, 5, 7}, tensors.CopyFlatData[float32](v2.Value()))

	b2 := must.M1(ctx2.In("layer_1").VariableWithShape("bias", shapes.Make(shapes.F32, 1)))
	require.NoError(t, ctx2.InitializeVariables(b2))
	assert.Equal(t, []float32{11}, tensors.CopyFlatData[float32](b2.Value()))

	// Save twice with Keep(1): only the newest checkpoint file remains.
	require.NoError(t, v.SetValue(tensors.FromFlatAndDimensions([]float32{13, 17, 19}, 3)))
	require.NoError(t, handler.Save())
	ctx3 := context.New()
	_ = must.M1(checkpoints.Build(ctx3).Dir(dir).Done())
	v3 := must.M1(ctx3.VariableWithShape("weights", shapes.Make(shapes.F32, 3)))
	require.NoError(t, ctx3.InitializeVariables())
	assert.Equal(t, []float32{13, 17, 19}, tensors.CopyFlatData[float32](v3.Value()))
}

func TestShapeMismatchSurfacesOnInitialize(t *testing.T) {
	dir := t.TempDir()

	ctx := context.New()
	_ = must.M1(ctx.VariableWithValue("weights", []float32{1, 2, 3}))
	handler := must.M1(checkpoints.Build(ctx).Dir(dir).Done())
	require.NoError(t, handler.Save())

	// Same variable name, different declared shape: loading must fail, not clobber.
	ctx2 := context.New().WithInitializer(initializers.Zeros)
	_ = must.M1(checkpoints.Build(ctx2).Dir(dir).Done())
	_ = must.M1(ctx2.VariableWithShape("weights", shapes.Make(shapes.F32, 4)))
	require.Error(t, ctx2.InitializeVariables())
}

func TestConfigErrors(t *testing.T) {
	_, err := checkpoints.Build(context.New()).Done()
	require.Error(t, err)
}
