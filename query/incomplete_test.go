package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/fragments"
	"github.com/tessellate-db/go-tessellate/subarray"
)

// wideFragment is the incomplete-read fixture: a 101 x 100001 col-major
// sparse array holding 14 byte-valued cells in one leaf tile.
func wideFragment(t *testing.T) *fragments.Fragment[int32] {
	t.Helper()
	domain, err := arrays.NewDomain(
		arrays.Dimension[int32]{Name: "rows", Bounds: [2]int32{0, 100}},
		arrays.Dimension[int32]{Name: "cols", Bounds: [2]int32{0, 100000}},
	)
	require.NoError(t, err)
	schema, err := arrays.NewSchema(domain, arrays.ColMajor, 10000, true,
		arrays.Attribute{Name: "a", Type: arrays.Uint8, CellValNum: 1})
	require.NoError(t, err)

	frag, err := fragments.NewFragment(schema, fragments.WriteInput[int32]{
		Coords: []int32{
			0, 12277, 0, 12771, 0, 13374, 0, 13395, 0, 13413,
			0, 13451, 0, 13519, 0, 13544, 0, 13689, 0, 17479,
			0, 17486, 1, 12277, 1, 12771, 1, 13389,
		},
		Attrs: map[string]fragments.AttrData{
			"a": {Values: []byte("abcdefghijklmn")},
		},
	})
	require.NoError(t, err)
	return frag
}

func wideSubarray(t *testing.T, frag *fragments.Fragment[int32]) *subarray.Subarray[int32] {
	t.Helper()
	s, err := subarray.New(frag.Schema, arrays.Unordered)
	require.NoError(t, err)
	require.NoError(t, s.AddRange(0, 0, 1))
	require.NoError(t, s.AddRange(1, 12277, 13499))
	require.NoError(t, s.AddRange(1, 13500, 17486))
	return s
}

// readAll drives a query to completion with data buffers holding cellCap
// cells, returning the batches of attribute values.
func readAll(t *testing.T, frag *fragments.Fragment[int32], cellCap int) [][]byte {
	t.Helper()
	q := New(testLog, frag)
	require.NoError(t, q.SetSubarray(wideSubarray(t, frag)))
	require.NoError(t, q.SetLayout(arrays.GlobalOrder))

	data := make([]byte, cellCap)
	coords := make([]int32, 2*cellCap)
	require.NoError(t, q.SetBuffer("a", data))
	require.NoError(t, q.SetCoordsBuffer(coords))

	var batches [][]byte
	for i := 0; ; i++ {
		require.Less(t, i, 100, "the query must terminate")
		st, err := q.Submit(context.Background())
		require.NoError(t, err)

		elems := q.ResultBufferElements()
		n := elems["a"].Values
		require.Greater(t, n, uint64(0), "every submit makes progress")
		batches = append(batches, append([]byte(nil), data[:n]...))

		if st == Complete {
			break
		}
		require.Equal(t, Incomplete, st)
	}
	return batches
}

func TestIncompleteResumeBatches(t *testing.T) {
	frag := wideFragment(t)

	batches := readAll(t, frag, 2)
	want := [][]byte{
		[]byte("al"),
		[]byte("bm"),
		[]byte("c"),
		[]byte("nd"),
		[]byte("e"),
		[]byte("f"),
		[]byte("gh"),
		[]byte("i"),
		[]byte("jk"),
	}
	assert.Equal(t, want, batches)
}

func TestIncompleteResumeCoords(t *testing.T) {
	frag := wideFragment(t)

	q := New(testLog, frag)
	require.NoError(t, q.SetSubarray(wideSubarray(t, frag)))
	require.NoError(t, q.SetLayout(arrays.GlobalOrder))

	data := make([]byte, 2)
	coords := make([]int32, 4)
	require.NoError(t, q.SetBuffer("a", data))
	require.NoError(t, q.SetCoordsBuffer(coords))

	st, err := q.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, Incomplete, st)

	elems := q.ResultBufferElements()
	require.Equal(t, uint64(4), elems[arrays.CoordsName].Values)
	assert.Equal(t, []int32{0, 12277, 1, 12277}, coords)
	assert.Equal(t, []byte("al"), data)
}

func TestResumptionMatchesUnboundedRead(t *testing.T) {
	frag := wideFragment(t)

	// One submit with ample buffers is the reference result.
	unbounded := readAll(t, frag, 64)
	require.Len(t, unbounded, 1)
	want := unbounded[0]
	assert.Equal(t, []byte("albmcndefghijk"), want)

	// Any buffer sizing concatenates to the same byte sequence.
	for _, cellCap := range []int{1, 2, 3, 5, 7} {
		var got []byte
		for _, batch := range readAll(t, frag, cellCap) {
			got = append(got, batch...)
		}
		assert.Equal(t, want, got, "cell capacity %d", cellCap)
	}
}
