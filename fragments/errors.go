package fragments

import "errors"

var (
	ErrNoCells         = errors.New("cannot build a fragment from zero cells")
	ErrCoordsShape     = errors.New("coordinate count is not a multiple of the dimension count")
	ErrAttrShape       = errors.New("attribute payload size does not match the cell count")
	ErrMissingAttr     = errors.New("write input is missing an attribute payload")
	ErrOffsetsShape    = errors.New("var-sized attribute offsets do not match the cell count")
	ErrOffsetsOrder    = errors.New("var-sized attribute offsets must be non-decreasing and in bounds")
	ErrDenseWrite      = errors.New("fragment building from coordinates requires a sparse schema")
	ErrNoSuchTile      = errors.New("leaf tile index out of range")
	ErrTileUnavailable = errors.New("leaf tile is not resident in the store")
	ErrNoSuchAttr      = errors.New("attribute has no per-tile sizes in the fragment metadata")
	ErrMetaMismatch    = errors.New("fragment metadata is inconsistent with the requesting schema")
)
