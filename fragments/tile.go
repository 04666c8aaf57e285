package fragments

import (
	"context"
	"fmt"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// TileData is one decoded sparse leaf tile: the cell coordinates in the
// fragment's global order and the attribute payloads, columnar per
// attribute.
type TileData[T arrays.Scalar] struct {
	CellNum uint64
	// Coords is interleaved per cell: CellNum * dimNum scalars.
	Coords []T
	// Values holds the fixed payload per attribute: CellNum cells of the
	// attribute's cell size, or the concatenated var values.
	Values map[string][]byte
	// Offsets holds, for var-sized attributes only, the start offset of
	// each cell's value bytes within Values.
	Offsets map[string][]uint64
}

// CellCoords returns a view of cell i's coordinates.
func (td *TileData[T]) CellCoords(dimNum int, i uint64) []T {
	return td.Coords[i*uint64(dimNum) : (i+1)*uint64(dimNum)]
}

// FixedCell returns a view of cell i's bytes for a fixed-size attribute.
func (td *TileData[T]) FixedCell(attr arrays.Attribute, i uint64) []byte {
	size, _ := attr.CellSize()
	v := td.Values[attr.Name]
	return v[i*size : (i+1)*size]
}

// VarCell returns a view of cell i's bytes for a var-sized attribute.
func (td *TileData[T]) VarCell(name string, i uint64) []byte {
	offsets := td.Offsets[name]
	v := td.Values[name]
	end := uint64(len(v))
	if i+1 < uint64(len(offsets)) {
		end = offsets[i+1]
	}
	return v[offsets[i]:end]
}

// TileReader fetches decoded leaf tiles for the planner. Implementations
// are synchronous; an error surfaces at the planner as an I/O failure.
type TileReader[T arrays.Scalar] interface {
	FetchLeafTile(ctx context.Context, tile uint64) (*TileData[T], error)
}

// validate checks the internal shape consistency of a decoded tile.
func (td *TileData[T]) validate(dimNum int) error {
	if uint64(len(td.Coords)) != td.CellNum*uint64(dimNum) {
		return fmt.Errorf("%w: %d coordinates for %d cells", ErrCoordsShape, len(td.Coords), td.CellNum)
	}
	for name, offsets := range td.Offsets {
		if uint64(len(offsets)) != td.CellNum {
			return fmt.Errorf("%w: %q", ErrOffsetsShape, name)
		}
		var prev uint64
		for _, off := range offsets {
			if off < prev || off > uint64(len(td.Values[name])) {
				return fmt.Errorf("%w: %q", ErrOffsetsOrder, name)
			}
			prev = off
		}
	}
	return nil
}
