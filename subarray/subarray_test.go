package subarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-db/go-tessellate/arrays"
)

func testSchema(t *testing.T, cellOrder arrays.Layout) *arrays.Schema[int32] {
	t.Helper()
	domain, err := arrays.NewDomain(
		arrays.Dimension[int32]{Name: "rows", Bounds: [2]int32{0, 3}},
		arrays.Dimension[int32]{Name: "cols", Bounds: [2]int32{0, 3}},
	)
	require.NoError(t, err)
	schema, err := arrays.NewSchema(domain, cellOrder, 16, true,
		arrays.Attribute{Name: "a", Type: arrays.Int32, CellValNum: 1})
	require.NoError(t, err)
	return schema
}

func TestDefaultRangesCoverDomain(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.Unordered)
	require.NoError(t, err)

	for dim := 0; dim < 2; dim++ {
		n, err := s.RangeNum(dim)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
		lo, hi, err := s.Range(dim, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(0), lo)
		assert.Equal(t, int32(3), hi)
	}
	assert.Equal(t, uint64(1), s.NDRangeNum())
}

func TestAddRangeReplacesDefault(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.Unordered)
	require.NoError(t, err)

	require.NoError(t, s.AddRange(0, 1, 2))
	n, err := s.RangeNum(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	lo, hi, err := s.Range(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), lo)
	assert.Equal(t, int32(2), hi)

	// A second range appends without coalescing, even when overlapping.
	require.NoError(t, s.AddRange(0, 2, 3))
	n, err = s.RangeNum(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, uint64(2), s.NDRangeNum())
}

func TestAddRangeValidation(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.Unordered)
	require.NoError(t, err)

	assert.ErrorIs(t, s.AddRange(5, 0, 0), ErrInvalidDim)
	assert.ErrorIs(t, s.AddRange(0, 2, 1), ErrInvalidRange)
	assert.ErrorIs(t, s.AddRange(0, 4, 9), ErrOutOfDomain)
	assert.ErrorIs(t, s.AddRange(0, -9, -1), ErrOutOfDomain)

	// Partly outside the domain: clamped, and the clamp is visible.
	require.NoError(t, s.AddRange(0, -2, 1))
	lo, hi, err := s.Range(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), lo)
	assert.Equal(t, int32(1), hi)
}

func TestRangeEnumerationRowMajor(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.RowMajor)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 0))
	require.NoError(t, s.AddRange(0, 2, 2))
	require.NoError(t, s.AddRange(1, 0, 1))
	require.NoError(t, s.AddRange(1, 2, 3))

	require.Equal(t, uint64(4), s.NDRangeNum())

	// Row-major: dim 0 outermost.
	want := []struct{ r0lo, r0hi, r1lo, r1hi int32 }{
		{0, 0, 0, 1},
		{0, 0, 2, 3},
		{2, 2, 0, 1},
		{2, 2, 2, 3},
	}
	for i, w := range want {
		nd, err := s.NDRange(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, []int32{w.r0lo, w.r0hi, w.r1lo, w.r1hi}, []int32(nd), "range %d", i)
	}

	for i := uint64(0); i < 4; i++ {
		assert.Equal(t, i, s.RangeIdx(s.RangeCoords(i)))
	}
}

func TestRangeEnumerationColMajor(t *testing.T) {
	s, err := New(testSchema(t, arrays.ColMajor), arrays.Unordered)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 0))
	require.NoError(t, s.AddRange(0, 2, 2))
	require.NoError(t, s.AddRange(1, 0, 1))
	require.NoError(t, s.AddRange(1, 2, 3))

	// Unordered resolves to the schema cell order: col-major, dim 1
	// outermost.
	want := []struct{ r0lo, r0hi, r1lo, r1hi int32 }{
		{0, 0, 0, 1},
		{2, 2, 0, 1},
		{0, 0, 2, 3},
		{2, 2, 2, 3},
	}
	for i, w := range want {
		nd, err := s.NDRange(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, []int32{w.r0lo, w.r0hi, w.r1lo, w.r1hi}, []int32(nd), "range %d", i)
	}
}

func TestGetSubarray(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.RowMajor)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 0))
	require.NoError(t, s.AddRange(0, 2, 2))
	require.NoError(t, s.AddRange(1, 0, 1))
	require.NoError(t, s.AddRange(1, 2, 3))

	// The second row of the range grid: ranges 2 and 3.
	sub, err := s.GetSubarray(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sub.NDRangeNum())
	nd, err := sub.NDRange(0)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 2, 0, 1}, []int32(nd))
	nd, err = sub.NDRange(1)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 2, 2, 3}, []int32(nd))

	_, err = s.GetSubarray(3, 4)
	assert.ErrorIs(t, err, ErrRangeIdx)
}

func TestIsUnary(t *testing.T) {
	s, err := New(testSchema(t, arrays.RowMajor), arrays.Unordered)
	require.NoError(t, err)
	assert.False(t, s.IsUnary(), "default whole-domain ranges are not unary")

	require.NoError(t, s.AddRange(0, 1, 1))
	require.NoError(t, s.AddRange(1, 2, 2))
	assert.True(t, s.IsUnary())

	require.NoError(t, s.AddRange(1, 3, 3))
	assert.False(t, s.IsUnary())
}
