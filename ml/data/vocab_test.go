package data_test

import (
	"testing"

	. "github.com/barseq/barseq/ml/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyInferredCapacitySorted(t *testing.T) {
	v := NewVocabulary(0)
	assert.False(t, v.Frozen())

	ids, err := v.Encode([]any{"b", "a", "c"})
	require.NoError(t, err)

	// No preset capacity: inferred from the batch, labels sorted.
	assert.Equal(t, []int32{1, 0, 2}, ids)
	assert.Equal(t, 3, v.Capacity())
	assert.True(t, v.Frozen())

	label, found := v.LabelForID(0)
	require.True(t, found)
	assert.Equal(t, "a", label)
	id, found := v.IDForLabel("c")
	require.True(t, found)
	assert.Equal(t, int32(2), id)
}

func TestVocabularyNumericLabelsSorted(t *testing.T) {
	v := NewVocabulary(0)
	ids, err := v.Encode([]any{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0, 1}, ids)
}

func TestVocabularyMixedLabelsKeepFirstSeenOrder(t *testing.T) {
	// Unorderable label mix: the sort silently falls back to first-seen order.
	v := NewVocabulary(0)
	ids, err := v.Encode([]any{"b", 1, "a"})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, ids)
}

func TestVocabularyDeterminism(t *testing.T) {
	v := NewVocabulary(0)
	ids1, err := v.Encode([]any{"up", "down", "flat", "up"})
	require.NoError(t, err)
	ids2, err := v.Encode([]any{"up", "down", "flat", "up"})
	require.NoError(t, err)
	assert.Equal(t, ids1, ids2)
}

func TestVocabularyAppendsUntilCapacity(t *testing.T) {
	v := NewVocabulary(3)
	ids, err := v.Encode([]any{"down", "up"})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, ids)
	assert.Equal(t, 2, v.Len())

	// A label unseen so far gets the next free id.
	ids, err = v.Encode([]any{"flat", "down"})
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 0}, ids)

	// The vocabulary is full now: yet another label overflows.
	_, err = v.Encode([]any{"sideways"})
	var overflow *VocabularyOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 3, overflow.Capacity)

	// Ids already assigned never move.
	ids, err = v.Encode([]any{"down", "up", "flat"})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, ids)
}

func TestVocabularySingleBatchOverflow(t *testing.T) {
	v := NewVocabulary(2)
	_, err := v.Encode([]any{"a", "b", "c"})
	var overflow *VocabularyOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 3, overflow.Distinct)
	assert.Equal(t, 2, overflow.Capacity)

	// The failed batch must not have grown the vocabulary.
	assert.Equal(t, 0, v.Len())
}

func TestVocabularyFailedEncodeLeavesNoPartialAssignments(t *testing.T) {
	v := NewVocabulary(2)
	_, err := v.Encode([]any{"a"})
	require.NoError(t, err)
	require.Equal(t, 1, v.Len())

	// "b" alone would fit, but the batch as a whole does not: neither
	// label may be assigned by the failing call.
	_, err = v.Encode([]any{"b", "c"})
	var overflow *VocabularyOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 3, overflow.Distinct)
	assert.Equal(t, 1, v.Len())
	_, found := v.IDForLabel("b")
	assert.False(t, found)

	// The free slot is still usable afterwards.
	ids, err := v.Encode([]any{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 0}, ids)
}

func TestVocabularyReset(t *testing.T) {
	v := NewVocabulary(0)
	_, err := v.Encode([]any{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, 2, v.Len())

	v.Reset()
	assert.Equal(t, 0, v.Len())

	// Inferred capacity is forgotten; preset capacity would be kept.
	preset := NewVocabulary(5)
	_, err = preset.Encode([]any{"a"})
	require.NoError(t, err)
	preset.Reset()
	assert.Equal(t, 5, preset.Capacity())
}
