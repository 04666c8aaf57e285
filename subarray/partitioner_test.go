package subarray

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-db/go-tessellate/arrays"
)

func collectPartitions(t *testing.T, p *Partitioner[int32]) []*Subarray[int32] {
	t.Helper()
	var out []*Subarray[int32]
	for !p.Done() {
		unsplittable, err := p.Next(context.Background())
		require.NoError(t, err)
		require.False(t, unsplittable)
		out = append(out, p.Current())
	}
	return out
}

func rangeOf(t *testing.T, s *Subarray[int32], dim int) (int32, int32) {
	t.Helper()
	lo, hi, err := s.Range(dim, 0)
	require.NoError(t, err)
	return lo, hi
}

func TestPartitionerMultiRangeIntervals(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.RowMajor)
	require.NoError(t, err)
	for _, dim := range []int{0, 1} {
		require.NoError(t, s.AddRange(dim, 0, 0))
		require.NoError(t, s.AddRange(dim, 2, 2))
	}

	p, err := NewPartitioner(context.Background(), s, frag.Tree, frag.Meta)
	require.NoError(t, err)
	// Each of the four point ranges estimates at one byte.
	require.NoError(t, p.SetResultBudget("a", 2))

	parts := collectPartitions(t, p)
	require.Len(t, parts, 2)
	assert.Equal(t, uint64(2), parts[0].NDRangeNum())
	assert.Equal(t, uint64(2), parts[1].NDRangeNum())

	// The first partition is the first grid row of ranges: rows [0,0].
	lo, hi := rangeOf(t, parts[0], 0)
	assert.Equal(t, int32(0), lo)
	assert.Equal(t, int32(0), hi)
	lo, hi = rangeOf(t, parts[1], 0)
	assert.Equal(t, int32(2), lo)
	assert.Equal(t, int32(2), hi)
}

func TestPartitionerSplitsSingleRange(t *testing.T) {
	frag := diagFragment(t)
	// The whole-domain range estimates at 16 bytes; a 4 byte budget
	// forces recursive midpoint splits on the rows dimension down to
	// single rows.
	s, err := New(frag.Schema, arrays.RowMajor)
	require.NoError(t, err)

	p, err := NewPartitioner(context.Background(), s, frag.Tree, frag.Meta)
	require.NoError(t, err)
	require.NoError(t, p.SetResultBudget("a", 4))

	parts := collectPartitions(t, p)
	require.Len(t, parts, 4)
	for i, part := range parts {
		lo, hi := rangeOf(t, part, 0)
		assert.Equal(t, int32(i), lo, "partition %d rows", i)
		assert.Equal(t, int32(i), hi, "partition %d rows", i)
		clo, chi := rangeOf(t, part, 1)
		assert.Equal(t, int32(0), clo)
		assert.Equal(t, int32(3), chi)
	}
}

func TestPartitionerUnsplittable(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.RowMajor)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 0))
	require.NoError(t, s.AddRange(1, 0, 0))

	p, err := NewPartitioner(context.Background(), s, frag.Tree, frag.Meta)
	require.NoError(t, err)
	// The single-cell range estimates at one byte, exactly the budget; the
	// range cannot be split further.
	require.NoError(t, p.SetResultBudget("a", 1))

	// est ceil = 1 fits: the unary partition is handed out normally.
	unsplittable, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, unsplittable)
	assert.True(t, p.Current().IsUnary())
	assert.True(t, p.Done())
}

func TestPartitionerSplitCurrent(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.RowMajor)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 3))
	require.NoError(t, s.AddRange(1, 0, 3))

	p, err := NewPartitioner(context.Background(), s, frag.Tree, frag.Meta)
	require.NoError(t, err)
	require.NoError(t, p.SetResultBudget("a", 16))

	// The whole range fits the estimate in one partition.
	unsplittable, err := p.Next(context.Background())
	require.NoError(t, err)
	require.False(t, unsplittable)
	lo, hi := rangeOf(t, p.Current(), 0)
	assert.Equal(t, int32(0), lo)
	assert.Equal(t, int32(3), hi)

	// The caller reports overflow: the partition splits at the rows
	// midpoint.
	unsplittable, err = p.SplitCurrent(context.Background())
	require.NoError(t, err)
	require.False(t, unsplittable)
	lo, hi = rangeOf(t, p.Current(), 0)
	assert.Equal(t, int32(0), lo)
	assert.Equal(t, int32(1), hi)

	// The second half is still pending.
	assert.False(t, p.Done())
	unsplittable, err = p.Next(context.Background())
	require.NoError(t, err)
	require.False(t, unsplittable)
	lo, hi = rangeOf(t, p.Current(), 0)
	assert.Equal(t, int32(2), lo)
	assert.Equal(t, int32(3), hi)
	assert.True(t, p.Done())
}
