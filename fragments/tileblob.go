package fragments

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// tileDoc is the persisted form of one leaf tile: a CBOR document with the
// coordinates kept in their packed little endian layout.
type tileDoc struct {
	CellNum uint64              `cbor:"1,keyasint"`
	Coords  []byte              `cbor:"2,keyasint"`
	Values  map[string][]byte   `cbor:"3,keyasint"`
	Offsets map[string][]uint64 `cbor:"4,keyasint,omitempty"`
}

// MarshalTile encodes a decoded tile for blob storage.
func MarshalTile[T arrays.Scalar](td *TileData[T]) ([]byte, error) {
	doc := tileDoc{
		CellNum: td.CellNum,
		Coords:  arrays.AppendScalars(nil, td.Coords),
		Values:  td.Values,
	}
	if len(td.Offsets) > 0 {
		doc.Offsets = td.Offsets
	}
	return metaEncMode.Marshal(&doc)
}

// UnmarshalTile decodes a stored tile and validates its shape against the
// fragment's dimension count.
func UnmarshalTile[T arrays.Scalar](data []byte, dimNum int) (*TileData[T], error) {
	var doc tileDoc
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	coords, rest, ok := arrays.DecodeScalars[T](doc.Coords, doc.CellNum*uint64(dimNum))
	if !ok || len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d coordinate bytes for %d cells", ErrCoordsShape, len(doc.Coords), doc.CellNum)
	}
	td := &TileData[T]{
		CellNum: doc.CellNum,
		Coords:  coords,
		Values:  doc.Values,
		Offsets: doc.Offsets,
	}
	if td.Values == nil {
		td.Values = map[string][]byte{}
	}
	if td.Offsets == nil {
		td.Offsets = map[string][]uint64{}
	}
	if err := td.validate(dimNum); err != nil {
		return nil, err
	}
	return td, nil
}
