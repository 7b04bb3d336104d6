package session_test

import (
	"testing"

	"github.com/barseq/barseq/graph"
	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/module"
	. "github.com/barseq/barseq/ml/session"
	"github.com/barseq/barseq/types/shapes"
	"github.com/barseq/barseq/types/tensors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEncoder struct {
	hiddenSize int
	fail       bool
}

func (e *stubEncoder) Forward(g *graph.Graph, ctx *context.Context, values, mask *graph.Node, isTraining bool) (*graph.Node, error) {
	if e.fail {
		return nil, errors.New("stub encoder failure")
	}
	_, err := ctx.In("encoder").VariableWithShape("weights", shapes.Make(shapes.F32, 4, e.hiddenSize))
	if err != nil {
		return nil, err
	}
	return g.AddOp("pool", shapes.Make(shapes.F32, shapes.DynamicDim, e.hiddenSize), values, mask), nil
}

type stubDecoder struct{}

func (d *stubDecoder) Forward(g *graph.Graph, ctx *context.Context, pooled, labelIDs, sampleWeight *graph.Node, isTraining bool) (*graph.Node, map[string]*graph.Node, error) {
	_, err := ctx.In("decoder").VariableWithShape("projection", shapes.Make(shapes.F32, 8, 3))
	if err != nil {
		return nil, nil, err
	}
	probs := g.AddOp("softmax", shapes.Make(shapes.F32, shapes.DynamicDim, 3), pooled)
	var loss *graph.Node
	if isTraining {
		loss = g.AddOp("loss", shapes.Scalar[float32](), probs, labelIDs, sampleWeight)
	}
	return loss, map[string]*graph.Node{"probs": probs}, nil
}

func newTestModule(t *testing.T, hiddenSize int, checkpointDir string) *module.Module {
	m, err := module.New(module.Config{
		MaxSeqLength:   4,
		MaxUnitLength:  2,
		InitCheckpoint: checkpointDir,
	}, module.ArchConfig{HiddenSize: hiddenSize, NumHiddenLayers: 2},
		&stubEncoder{hiddenSize: hiddenSize}, &stubDecoder{})
	require.NoError(t, err)
	return m
}

func encoderWeights(t *testing.T, m *module.Module) *context.Variable {
	v := m.Context().InspectVariable("/encoder", "weights")
	require.NotNil(t, v)
	return v
}

func TestPrepareForInference(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	assert.Equal(t, StateUnbuilt, s.State())
	assert.Equal(t, uuid.Nil, s.BuildID())
	assert.Nil(t, s.Graph())

	require.NoError(t, s.PrepareForInference(false, false))
	assert.Equal(t, StateInferReady, s.State())
	assert.NotEqual(t, uuid.Nil, s.BuildID())
	require.NotNil(t, s.Graph())
	require.NotNil(t, s.Placeholders())
	require.Contains(t, s.Outputs().Outputs, "probs")
	assert.False(t, m.Context().NeedsInitialization())
	assert.Nil(t, s.Outputs().Losses[0]) // inference graph has no loss
}

func TestPrepareIsIdempotent(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	require.NoError(t, s.PrepareForInference(false, false))
	buildID := s.BuildID()
	before := encoderWeights(t, m).Value()

	// Second call is a no-op: same build, same parameter values.
	require.NoError(t, s.PrepareForInference(false, false))
	assert.Equal(t, buildID, s.BuildID())
	assert.Same(t, before, encoderWeights(t, m).Value())
}

func TestPrepareInitializesOnlyNewParameters(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	require.NoError(t, s.PrepareForInference(false, false))
	before := encoderWeights(t, m).Value()

	extra, err := m.Context().In("extra").VariableWithShape("w", shapes.Make(shapes.F32, 2))
	require.NoError(t, err)
	require.False(t, extra.HasValue())

	require.NoError(t, s.PrepareForInference(false, false))
	assert.True(t, extra.HasValue())
	assert.Same(t, before, encoderWeights(t, m).Value())
}

func TestPrepareReinitAll(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	require.NoError(t, s.PrepareForInference(false, false))
	before := encoderWeights(t, m).Value()

	require.NoError(t, s.PrepareForInference(true, true))
	assert.Equal(t, StateInferReady, s.State())
	assert.NotSame(t, before, encoderWeights(t, m).Value())
}

func TestPrepareModeSwitch(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	require.NoError(t, s.PrepareForInference(false, false))
	inferBuild := s.BuildID()
	before := encoderWeights(t, m).Value()

	// Switching to training rebuilds the graph but keeps the parameter
	// values: only an explicit full reinit may replace them.
	require.NoError(t, s.PrepareForTraining(false, false))
	assert.Equal(t, StateTrainReady, s.State())
	assert.NotEqual(t, inferBuild, s.BuildID())
	require.NotNil(t, s.Outputs().Losses[0])
	assert.Same(t, before, encoderWeights(t, m).Value())

	require.NoError(t, s.PrepareForInference(false, false))
	assert.Equal(t, StateInferReady, s.State())
	assert.Same(t, before, encoderWeights(t, m).Value())
}

func TestPrepareLoadsCheckpoint(t *testing.T) {
	dir := t.TempDir()

	m1 := newTestModule(t, 8, dir)
	s1 := New(m1)
	require.NoError(t, s1.PrepareForInference(false, false))
	saved := tensors.FromFlatAndDimensions(make([]float32, 4*8), 4, 8)
	require.NoError(t, encoderWeights(t, m1).SetValue(saved))
	require.NoError(t, s1.Save())

	m2 := newTestModule(t, 8, dir)
	s2 := New(m2)
	require.NoError(t, s2.PrepareForInference(false, false))
	assert.Equal(t, StateInferReady, s2.State())
	require.NotNil(t, s2.Checkpoint())
	assert.True(t, s2.Checkpoint().HasCheckpoint())
	assert.True(t, saved.Equal(encoderWeights(t, m2).Value()))
}

func TestPrepareIgnoreCheckpoint(t *testing.T) {
	dir := t.TempDir()

	m1 := newTestModule(t, 8, dir)
	s1 := New(m1)
	require.NoError(t, s1.PrepareForInference(false, false))
	saved := tensors.FromFlatAndDimensions(make([]float32, 4*8), 4, 8)
	require.NoError(t, encoderWeights(t, m1).SetValue(saved))
	require.NoError(t, s1.Save())

	m2 := newTestModule(t, 8, dir)
	s2 := New(m2)
	require.NoError(t, s2.PrepareForInference(false, true))
	assert.Equal(t, StateInferReady, s2.State())
	// Freshly initialized, not loaded: the random values are not all zero.
	assert.False(t, saved.Equal(encoderWeights(t, m2).Value()))
}

func TestPrepareFailureLeavesStateBuilt(t *testing.T) {
	dir := t.TempDir()

	// Save a checkpoint with 8-wide encoder weights.
	m1 := newTestModule(t, 8, dir)
	s1 := New(m1)
	require.NoError(t, s1.PrepareForInference(false, false))
	require.NoError(t, s1.Save())

	// A module with 16-wide weights cannot restore it.
	m2 := newTestModule(t, 16, dir)
	s2 := New(m2)
	err := s2.PrepareForInference(false, false)
	require.Error(t, err)
	assert.Equal(t, StateBuilt, s2.State())

	// Retry skipping the checkpoint succeeds.
	require.NoError(t, s2.PrepareForInference(false, true))
	assert.Equal(t, StateInferReady, s2.State())
}

func TestBuildFailure(t *testing.T) {
	m, err := module.New(module.Config{MaxSeqLength: 4, MaxUnitLength: 2},
		module.ArchConfig{HiddenSize: 8, NumHiddenLayers: 2},
		&stubEncoder{hiddenSize: 8, fail: true}, &stubDecoder{})
	require.NoError(t, err)
	s := New(m)
	require.Error(t, s.PrepareForInference(false, false))
	assert.Equal(t, StateUnbuilt, s.State())
}

func TestSaveRequiresPreparedSession(t *testing.T) {
	m := newTestModule(t, 8, "")
	s := New(m)
	require.Error(t, s.Save())

	require.NoError(t, s.PrepareForInference(false, false))
	// Prepared but without a checkpoint directory configured.
	require.Error(t, s.Save())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "InferReady", StateInferReady.String())
	state, err := StateString("TrainReady")
	require.NoError(t, err)
	assert.Equal(t, StateTrainReady, state)
	assert.False(t, State(99).IsAState())
}
