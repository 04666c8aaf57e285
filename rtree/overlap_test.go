package rtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tileGrid builds a 1D tree over n adjacent ten-wide tiles with the given
// fanout: tile i covers [10i, 10i+9].
func tileGrid(t *testing.T, n int, fanout uint64) *RTree[int64] {
	t.Helper()
	tr, err := New(1, fanout, lineMBRs(n))
	require.NoError(t, err)
	return tr
}

func TestTileOverlapValidation(t *testing.T) {
	tr := tileGrid(t, 4, 2)

	_, err := tr.TileOverlap(MBR[int64]{0, 5, 0, 5})
	assert.ErrorIs(t, err, ErrRangeDimensions)

	_, err = tr.TileOverlap(MBR[int64]{5, 0})
	assert.ErrorIs(t, err, ErrMalformedMBR)
}

func TestTileOverlapScenarios(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		fanout  uint64
		r       MBR[int64]
		full    [][2]uint64
		partial []PartialTile
	}{
		{
			name: "no overlap", n: 8, fanout: 2,
			r: MBR[int64]{400, 500},
		},
		{
			name: "single tile partial", n: 8, fanout: 2,
			r:       MBR[int64]{12, 14},
			partial: []PartialTile{{Tile: 1, Ratio: 0.3}},
		},
		{
			name: "single tile full", n: 8, fanout: 2,
			r:    MBR[int64]{10, 19},
			full: [][2]uint64{{1, 1}},
		},
		{
			name: "everything", n: 8, fanout: 2,
			r:    MBR[int64]{0, 79},
			full: [][2]uint64{{0, 7}},
		},
		{
			name: "everything superset", n: 8, fanout: 2,
			r:    MBR[int64]{-100, 1000},
			full: [][2]uint64{{0, 7}},
		},
		{
			name: "straddle with partial edges", n: 8, fanout: 2,
			r:       MBR[int64]{15, 64},
			full:    [][2]uint64{{2, 3}, {4, 5}},
			partial: []PartialTile{{Tile: 1, Ratio: 0.5}, {Tile: 6, Ratio: 0.5}},
		},
		{
			name: "ragged right edge", n: 5, fanout: 2,
			// Tree over 5 leaves: the full-subtree leaf count of the root
			// is 8, so the emitted range must clamp to the real leaf count.
			r:    MBR[int64]{0, 49},
			full: [][2]uint64{{0, 4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tileGrid(t, tt.n, tt.fanout)
			got, err := tr.TileOverlap(tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.full, got.TileRanges)
			assert.Equal(t, tt.partial, got.Tiles)
		})
	}
}

func TestTileOverlapAscendingAndComplete(t *testing.T) {
	// Every intersecting leaf must appear exactly once, ascending.
	tr := tileGrid(t, 23, 3)
	r := MBR[int64]{7, 191}

	got, err := tr.TileOverlap(r)
	require.NoError(t, err)

	var seen []uint64
	ti, pi := 0, 0
	for ti < len(got.TileRanges) || pi < len(got.Tiles) {
		if pi >= len(got.Tiles) ||
			(ti < len(got.TileRanges) && got.TileRanges[ti][0] < got.Tiles[pi].Tile) {
			for tile := got.TileRanges[ti][0]; tile <= got.TileRanges[ti][1]; tile++ {
				seen = append(seen, tile)
			}
			ti++
		} else {
			assert.Greater(t, got.Tiles[pi].Ratio, 0.0)
			assert.LessOrEqual(t, got.Tiles[pi].Ratio, 1.0)
			seen = append(seen, got.Tiles[pi].Tile)
			pi++
		}
	}

	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "ascending leaf order")
	}

	var want []uint64
	for i := uint64(0); i < tr.LeafNum(); i++ {
		if Intersects(r, tr.LeafMBR(i)) {
			want = append(want, i)
		}
	}
	assert.Equal(t, want, seen)
}

func TestTileOverlapDeterministic(t *testing.T) {
	tr := tileGrid(t, 23, 3)
	r := MBR[int64]{7, 191}

	a, err := tr.TileOverlap(r)
	require.NoError(t, err)
	b, err := tr.TileOverlap(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTileOverlap2D(t *testing.T) {
	// Four 2x2 tiles over a 4x4 domain:
	//
	//   0 | 1
	//   --+--
	//   2 | 3
	mbrs := []MBR[int32]{
		{0, 1, 0, 1},
		{0, 1, 2, 3},
		{2, 3, 0, 1},
		{2, 3, 2, 3},
	}
	tr, err := New(2, 10, mbrs)
	require.NoError(t, err)

	got, err := tr.TileOverlap(MBR[int32]{1, 2, 1, 2})
	require.NoError(t, err)
	assert.Empty(t, got.TileRanges)
	assert.Equal(t, []PartialTile{
		{Tile: 0, Ratio: 0.25},
		{Tile: 1, Ratio: 0.25},
		{Tile: 2, Ratio: 0.25},
		{Tile: 3, Ratio: 0.25},
	}, got.Tiles)

	got, err = tr.TileOverlap(MBR[int32]{0, 1, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{0, 0}, {1, 1}}, got.TileRanges)
	assert.Empty(t, got.Tiles)
}
