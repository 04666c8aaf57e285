package rtree

import "errors"

var (
	ErrEmpty           = errors.New("cannot build a tree from zero leaf mbrs")
	ErrFanoutTooSmall  = errors.New("fanout must be at least 2")
	ErrZeroDimensions  = errors.New("dimension count must be at least 1")
	ErrMalformedMBR    = errors.New("mbr lower bound exceeds upper bound")
	ErrMBRDimensions   = errors.New("mbr length does not match the tree dimensions")
	ErrRangeDimensions = errors.New("query range length does not match the tree dimensions")
)

var (
	ErrTruncatedLevels = errors.New("serialized tree data is shorter than its level headers claim")
	ErrLevelShape      = errors.New("serialized level counts are inconsistent with the fanout")
	ErrTrailingBytes   = errors.New("serialized tree has bytes after the final level")
)
