package fragments

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/rtree"
)

// AttrData is one attribute's payload in a write: values for every cell,
// plus per-cell start offsets for var-sized attributes.
type AttrData struct {
	Values  []byte
	Offsets []uint64
}

// WriteInput is an unordered batch of sparse cells: interleaved
// coordinates and one payload per schema attribute.
type WriteInput[T arrays.Scalar] struct {
	Coords []T
	Attrs  map[string]AttrData
}

// Fragment is one immutable write of a sparse array: its metadata, its
// tile index and a store holding the leaf tiles.
type Fragment[T arrays.Scalar] struct {
	Schema *arrays.Schema[T]
	Meta   *Meta
	Tree   *rtree.RTree[T]
	Store  TileReader[T]
}

// NewFragment sorts the cells into the schema's global cell order, packs
// them into capacity-sized leaf tiles, builds the tile index over the tile
// MBRs and registers the tiles with an in-memory store.
func NewFragment[T arrays.Scalar](schema *arrays.Schema[T], in WriteInput[T]) (*Fragment[T], error) {
	if !schema.Sparse() {
		return nil, ErrDenseWrite
	}
	dimNum := schema.DimNum()
	if len(in.Coords) == 0 {
		return nil, ErrNoCells
	}
	if len(in.Coords)%dimNum != 0 {
		return nil, fmt.Errorf("%w: %d coordinates, %d dimensions", ErrCoordsShape, len(in.Coords), dimNum)
	}
	cellNum := uint64(len(in.Coords) / dimNum)

	for _, attr := range schema.Attributes() {
		data, ok := in.Attrs[attr.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingAttr, attr.Name)
		}
		if attr.Var() {
			if uint64(len(data.Offsets)) != cellNum {
				return nil, fmt.Errorf("%w: %q", ErrOffsetsShape, attr.Name)
			}
		} else {
			size, _ := attr.CellSize()
			if uint64(len(data.Values)) != cellNum*size {
				return nil, fmt.Errorf("%w: %q", ErrAttrShape, attr.Name)
			}
		}
	}

	// Establish the global order: a permutation of cells sorted by their
	// coordinates under the schema cell order.
	perm := make([]uint64, cellNum)
	for i := range perm {
		perm[i] = uint64(i)
	}
	colMajor := schema.CellOrder() == arrays.ColMajor
	coordsOf := func(i uint64) []T {
		return in.Coords[i*uint64(dimNum) : (i+1)*uint64(dimNum)]
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return CompareCoords(coordsOf(perm[a]), coordsOf(perm[b]), colMajor) < 0
	})

	capacity := schema.Capacity()
	tileNum := (cellNum + capacity - 1) / capacity

	meta := &Meta{
		FragmentID:   uuid.NewString(),
		Type:         uint8(arrays.DatatypeOf[T]()),
		DimNum:       dimNum,
		Fanout:       DefaultFanout,
		Capacity:     capacity,
		CellCounts:   make([]uint64, 0, tileNum),
		TileSizes:    map[string][]uint64{},
		TileVarSizes: map[string][]uint64{},
	}
	store := NewMemStore[T](tileNum)
	mbrs := make([]rtree.MBR[T], 0, tileNum)

	coordsAttr, err := schema.Attribute(arrays.CoordsName)
	if err != nil {
		return nil, err
	}

	for t := uint64(0); t < tileNum; t++ {
		first := t * capacity
		last := first + capacity
		if last > cellNum {
			last = cellNum
		}
		tileCells := last - first

		td := &TileData[T]{
			CellNum: tileCells,
			Coords:  make([]T, 0, tileCells*uint64(dimNum)),
			Values:  map[string][]byte{},
			Offsets: map[string][]uint64{},
		}
		var mbr rtree.MBR[T]
		for c := first; c < last; c++ {
			coords := coordsOf(perm[c])
			td.Coords = append(td.Coords, coords...)
			if mbr == nil {
				mbr = pointMBR(coords)
			} else {
				expandPoint(mbr, coords)
			}
		}
		mbrs = append(mbrs, mbr)

		for _, attr := range schema.Attributes() {
			data := in.Attrs[attr.Name]
			if attr.Var() {
				values := make([]byte, 0)
				offsets := make([]uint64, 0, tileCells)
				for c := first; c < last; c++ {
					cell := varCellBytes(data, perm[c])
					offsets = append(offsets, uint64(len(values)))
					values = append(values, cell...)
				}
				td.Values[attr.Name] = values
				td.Offsets[attr.Name] = offsets
				meta.TileSizes[attr.Name] = append(meta.TileSizes[attr.Name], tileCells*8)
				meta.TileVarSizes[attr.Name] = append(meta.TileVarSizes[attr.Name], uint64(len(values)))
			} else {
				size, _ := attr.CellSize()
				values := make([]byte, 0, tileCells*size)
				for c := first; c < last; c++ {
					values = append(values, data.Values[perm[c]*size:(perm[c]+1)*size]...)
				}
				td.Values[attr.Name] = values
				meta.TileSizes[attr.Name] = append(meta.TileSizes[attr.Name], tileCells*size)
			}
		}
		coordsSize, _ := coordsAttr.CellSize()
		meta.TileSizes[arrays.CoordsName] = append(meta.TileSizes[arrays.CoordsName], tileCells*coordsSize)
		meta.CellCounts = append(meta.CellCounts, tileCells)
		store.Put(t, td)
	}
	if len(meta.TileVarSizes) == 0 {
		meta.TileVarSizes = nil
	}

	tree, err := rtree.New(dimNum, DefaultFanout, mbrs)
	if err != nil {
		return nil, err
	}
	meta.TreeBytes = tree.Serialize()

	return &Fragment[T]{Schema: schema, Meta: meta, Tree: tree, Store: store}, nil
}

// CompareCoords orders two coordinate tuples under the cell order:
// row-major compares the first dimension outermost, col-major the last.
func CompareCoords[T arrays.Scalar](a, b []T, colMajor bool) int {
	dimNum := len(a)
	for i := 0; i < dimNum; i++ {
		d := i
		if colMajor {
			d = dimNum - i - 1
		}
		if a[d] < b[d] {
			return -1
		}
		if a[d] > b[d] {
			return 1
		}
	}
	return 0
}

func varCellBytes(data AttrData, cell uint64) []byte {
	end := uint64(len(data.Values))
	if cell+1 < uint64(len(data.Offsets)) {
		end = data.Offsets[cell+1]
	}
	return data.Values[data.Offsets[cell]:end]
}

func pointMBR[T arrays.Scalar](coords []T) rtree.MBR[T] {
	m := make(rtree.MBR[T], 0, 2*len(coords))
	for _, c := range coords {
		m = append(m, c, c)
	}
	return m
}

func expandPoint[T arrays.Scalar](m rtree.MBR[T], coords []T) {
	for d, c := range coords {
		if c < m[2*d] {
			m[2*d] = c
		}
		if c > m[2*d+1] {
			m[2*d+1] = c
		}
	}
}
