package subarray

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/fragments"
)

// diagFragment writes cells (0,0)=1, (1,1)=2, (2,2)=3, (3,3)=4 into a 4x4
// sparse array with a single 4x4 leaf tile, the layout of the estimation
// scenarios. The tile MBR is the whole domain, so a range covering k of
// its 16 cells is estimated at k bytes of the int32 attribute.
func diagFragment(t *testing.T) *fragments.Fragment[int32] {
	t.Helper()
	schema := testSchema(t, arrays.RowMajor)
	frag, err := fragments.NewFragment(schema, fragments.WriteInput[int32]{
		Coords: []int32{0, 0, 1, 1, 2, 2, 3, 3},
		Attrs: map[string]fragments.AttrData{
			"a": {Values: arrays.AppendScalars(nil, []int32{1, 2, 3, 4})},
		},
	})
	require.NoError(t, err)
	return frag
}

func TestEstResultSizeSingleCell(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 0))
	require.NoError(t, s.AddRange(1, 0, 0))

	est, err := s.EstResultSize(context.Background(), frag.Tree, frag.Meta, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), est)
}

func TestEstResultSizeSingleRange(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 1, 2))
	require.NoError(t, s.AddRange(1, 1, 2))

	est, err := s.EstResultSize(context.Background(), frag.Tree, frag.Meta, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), est)
}

func TestEstResultSizeCartesianPoints(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)
	for _, dim := range []int{0, 1} {
		require.NoError(t, s.AddRange(dim, 0, 0))
		require.NoError(t, s.AddRange(dim, 2, 2))
	}

	est, err := s.EstResultSize(context.Background(), frag.Tree, frag.Meta, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), est, "four sub-ranges at one cell each")
}

func TestEstResultSizeCoords(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 1, 2))
	require.NoError(t, s.AddRange(1, 1, 2))

	est, err := s.EstResultSize(context.Background(), frag.Tree, frag.Meta, arrays.CoordsName)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), est, "a quarter of 4 cells x 8 coord bytes")
}

func TestEstResultSizeUnknownAttr(t *testing.T) {
	frag := diagFragment(t)
	s, err := New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)

	_, err = s.EstResultSize(context.Background(), frag.Tree, frag.Meta, "nope")
	assert.ErrorIs(t, err, arrays.ErrUnknownAttr)
}
