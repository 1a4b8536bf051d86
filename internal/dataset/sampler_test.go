package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_Deterministic(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	first := Select(items, 10, 42)
	require.Len(t, first, 10)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Select(items, 10, 42))
	}
}

func TestSelect_SeedChangesDraw(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	assert.NotEqual(t, Select(items, 10, 1), Select(items, 10, 2))
}

func TestSelect_NoReplacement(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	got := Select(items, 3, 7)
	seen := map[string]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %q", v)
		seen[v] = true
	}
}

func TestSelect_WholeDatasetKeepsOrder(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, items, Select(items, 3, 1))
	assert.Equal(t, items, Select(items, 10, 1))

	// The copy is independent of the input slice.
	got := Select(items, 3, 1)
	got[0] = "z"
	assert.Equal(t, "a", items[0])
}
