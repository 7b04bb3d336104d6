package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := MakeSet[int]()
	require.Empty(t, s)
	s.Insert(3, 5)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(5))
	assert.False(t, s.Has(7))

	s2 := SetWith(5, 7)
	sub := s.Sub(s2)
	assert.True(t, sub.Equal(SetWith(3)))
	assert.False(t, s.Equal(s2))
	assert.Equal(t, []int{3, 5}, SortedKeys(s))
}
