package graph_test

import (
	"testing"

	. "github.com/barseq/barseq/graph"
	"github.com/barseq/barseq/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters(t *testing.T) {
	g := New("test")
	values := g.Parameter("input_values", shapes.Make(shapes.F32, shapes.DynamicDim, 3, 60))
	mask := g.Parameter("input_mask", shapes.Make(shapes.I32, shapes.DynamicDim, 4))

	assert.Equal(t, 2, g.NumParameters())
	assert.Same(t, values, g.ParameterByName("input_values"))
	assert.Same(t, mask, g.ParameterByIndex(1))
	assert.Nil(t, g.ParameterByName("label_ids"))
	assert.True(t, values.IsParameter())

	// Redeclaring the same slot is a programming error.
	assert.Panics(t, func() { g.Parameter("input_values", shapes.Make(shapes.F32, 1)) })
}

func TestAddOp(t *testing.T) {
	g := New("forward")
	values := g.Parameter("input_values", shapes.Make(shapes.F32, shapes.DynamicDim, 3, 60))
	pooled := g.AddOp("encoder/pooled_output", shapes.Make(shapes.F32, shapes.DynamicDim, 128), values)

	require.NotNil(t, pooled)
	assert.False(t, pooled.IsParameter())
	assert.Equal(t, []*Node{values}, pooled.Inputs())
	assert.Same(t, pooled, g.NodeById(pooled.Id()))
	assert.Equal(t, 2, g.NumNodes())

	// Ops cannot mix nodes from different graphs.
	g2 := New("other")
	assert.Panics(t, func() { g2.AddOp("bad", shapes.Make(shapes.F32, 1), values) })
}
