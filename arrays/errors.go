package arrays

import "errors"

var (
	ErrZeroDimensions   = errors.New("a domain requires at least one dimension")
	ErrInvalidDomain    = errors.New("dimension lower bound exceeds the upper bound")
	ErrDomainNaN        = errors.New("dimension bounds may not be NaN")
	ErrNoAttributes     = errors.New("a schema requires at least one attribute")
	ErrDuplicateAttr    = errors.New("attribute names must be unique within a schema")
	ErrUnknownAttr      = errors.New("attribute is not part of the schema")
	ErrInvalidCellOrder = errors.New("cell order must be row-major or col-major")
	ErrZeroCapacity     = errors.New("tile capacity must be at least 1")
	ErrReservedAttrName = errors.New("attribute name is reserved")
	ErrZeroCellValSize  = errors.New("attribute datatype has no size")
)
