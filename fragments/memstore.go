package fragments

import (
	"context"
	"fmt"

	"github.com/kelindar/bitmap"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// MemStore keeps decoded leaf tiles in memory. A presence bitmap tracks
// which tile slots are populated, so a fetch of a never-written slot is
// distinguishable from a nil tile.
type MemStore[T arrays.Scalar] struct {
	tiles   []*TileData[T]
	present bitmap.Bitmap
}

func NewMemStore[T arrays.Scalar](tileNum uint64) *MemStore[T] {
	return &MemStore[T]{tiles: make([]*TileData[T], tileNum)}
}

// Put registers tile data under the given leaf index.
func (s *MemStore[T]) Put(tile uint64, td *TileData[T]) {
	s.tiles[tile] = td
	s.present.Set(uint32(tile))
}

// TileNum returns the number of tile slots.
func (s *MemStore[T]) TileNum() uint64 { return uint64(len(s.tiles)) }

// ResidentNum returns the number of populated slots.
func (s *MemStore[T]) ResidentNum() int { return s.present.Count() }

// FetchLeafTile implements TileReader.
func (s *MemStore[T]) FetchLeafTile(_ context.Context, tile uint64) (*TileData[T], error) {
	if tile >= uint64(len(s.tiles)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchTile, tile, len(s.tiles))
	}
	if !s.present.Contains(uint32(tile)) {
		return nil, fmt.Errorf("%w: %d", ErrTileUnavailable, tile)
	}
	return s.tiles[tile], nil
}
