package fragments

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/rtree"
)

// DefaultFanout is the R-tree fanout used for fragments built by this
// package.
const DefaultFanout = 10

// Meta is the fragment metadata slice the index and planner consume: the
// per-tile cell counts and result sizes, and the serialized tile index.
// It is the document the storage layer persists alongside the tiles.
type Meta struct {
	FragmentID string   `cbor:"1,keyasint"`
	Type       uint8    `cbor:"2,keyasint"`
	DimNum     int      `cbor:"3,keyasint"`
	Fanout     uint64   `cbor:"4,keyasint"`
	Capacity   uint64   `cbor:"5,keyasint"`
	CellCounts []uint64 `cbor:"6,keyasint"`
	// TileSizes maps attribute name to per-tile fixed payload bytes
	// (offsets bytes for var-sized attributes). The coordinates
	// pseudo-attribute is included.
	TileSizes map[string][]uint64 `cbor:"7,keyasint"`
	// TileVarSizes maps var-sized attribute names to per-tile value bytes.
	TileVarSizes map[string][]uint64 `cbor:"8,keyasint,omitempty"`
	// TreeBytes is the serialized R-tree over the fragment's leaf tiles.
	TreeBytes []byte `cbor:"9,keyasint"`
}

// metaEncMode uses deterministic encoding so identical metadata documents
// serialize to identical bytes.
var metaEncMode, _ = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()

// metaDoc has the fields of Meta without its binary (un)marshaler methods,
// so the CBOR codec encodes the struct itself instead of calling back into
// MarshalBinary or UnmarshalBinary.
type metaDoc Meta

// MarshalBinary encodes the metadata document as CBOR.
func (m *Meta) MarshalBinary() ([]byte, error) {
	return metaEncMode.Marshal((*metaDoc)(m))
}

// UnmarshalBinary decodes a CBOR metadata document.
func (m *Meta) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, (*metaDoc)(m))
}

// TileNum returns the number of leaf tiles in the fragment.
func (m *Meta) TileNum() uint64 { return uint64(len(m.CellCounts)) }

// CellsPerTile returns the number of cells stored in a leaf tile.
func (m *Meta) CellsPerTile(tile uint64) (uint64, error) {
	if tile >= m.TileNum() {
		return 0, fmt.Errorf("%w: %d of %d", ErrNoSuchTile, tile, m.TileNum())
	}
	return m.CellCounts[tile], nil
}

// TileSize returns the fixed payload bytes of a leaf tile for an
// attribute.
func (m *Meta) TileSize(attr string, tile uint64) (uint64, error) {
	sizes, ok := m.TileSizes[attr]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchAttr, attr)
	}
	if tile >= uint64(len(sizes)) {
		return 0, fmt.Errorf("%w: %d of %d", ErrNoSuchTile, tile, len(sizes))
	}
	return sizes[tile], nil
}

// TileVarSize returns the variable payload bytes of a leaf tile for a
// var-sized attribute.
func (m *Meta) TileVarSize(attr string, tile uint64) (uint64, error) {
	sizes, ok := m.TileVarSizes[attr]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchAttr, attr)
	}
	if tile >= uint64(len(sizes)) {
		return 0, fmt.Errorf("%w: %d of %d", ErrNoSuchTile, tile, len(sizes))
	}
	return sizes[tile], nil
}

// Tree deserializes the fragment's tile index. The datatype instantiation
// must match the recorded one.
func Tree[T arrays.Scalar](m *Meta) (*rtree.RTree[T], error) {
	if arrays.Datatype(m.Type) != arrays.DatatypeOf[T]() {
		return nil, fmt.Errorf("%w: metadata datatype %s, requested %s",
			ErrMetaMismatch, arrays.Datatype(m.Type), arrays.DatatypeOf[T]())
	}
	return rtree.Deserialize[T](m.TreeBytes, m.DimNum, m.Fanout)
}
