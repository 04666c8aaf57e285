package rtree

import (
	"encoding/binary"
	"fmt"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// Serialized tree layout. All counts and scalars are little endian:
//
//	u64 level count
//	per level, root first:
//	  u64 mbr count
//	  mbr count * 2 * dimNum scalars, packed
//
// The dimension count, fanout and datatype are not part of the payload;
// they travel in the fragment metadata that embeds these bytes.
const (
	levelCountBytes = 8
	mbrCountBytes   = 8
)

// Serialize encodes the tree levels into a fresh byte slice.
func (t *RTree[T]) Serialize() []byte {
	size := uint64(levelCountBytes)
	scalarSize := arrays.DatatypeOf[T]().Size()
	for _, l := range t.levels {
		size += mbrCountBytes + uint64(len(l.mbrs))*scalarSize
	}
	b := make([]byte, 0, size)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(t.levels)))
	b = append(b, u64[:]...)
	for _, l := range t.levels {
		binary.LittleEndian.PutUint64(u64[:], l.mbrNum)
		b = append(b, u64[:]...)
		b = arrays.AppendScalars(b, l.mbrs)
	}
	return b
}

// Deserialize reconstructs a tree from Serialize output. The dimension
// count and fanout must be supplied by the caller (the embedding metadata)
// and the level shape is validated against them: the leaf count determines
// every level's expected size and the root must hold exactly one MBR.
func Deserialize[T arrays.Scalar](data []byte, dimNum int, fanout uint64) (*RTree[T], error) {
	if dimNum < 1 {
		return nil, ErrZeroDimensions
	}
	if fanout < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrFanoutTooSmall, fanout)
	}
	if len(data) < levelCountBytes {
		return nil, ErrTruncatedLevels
	}
	levelNum := binary.LittleEndian.Uint64(data)
	data = data[levelCountBytes:]
	if levelNum == 0 {
		return nil, ErrEmpty
	}

	t := &RTree[T]{dimNum: dimNum, fanout: fanout}
	w := uint64(2 * dimNum)
	for i := uint64(0); i < levelNum; i++ {
		if len(data) < mbrCountBytes {
			return nil, ErrTruncatedLevels
		}
		mbrNum := binary.LittleEndian.Uint64(data)
		data = data[mbrCountBytes:]
		if mbrNum == 0 {
			return nil, fmt.Errorf("%w: level %d is empty", ErrLevelShape, i)
		}
		mbrs, rest, ok := arrays.DecodeScalars[T](data, mbrNum*w)
		if !ok {
			return nil, fmt.Errorf("%w: level %d", ErrTruncatedLevels, i)
		}
		data = rest
		t.levels = append(t.levels, level[T]{mbrNum: mbrNum, mbrs: mbrs})
	}
	if len(data) != 0 {
		return nil, ErrTrailingBytes
	}

	// Validate the shape, root first: the root must be a single MBR, and
	// each level must group the one below it in runs of fanout.
	if t.levels[0].mbrNum != 1 {
		return nil, fmt.Errorf("%w: root holds %d mbrs", ErrLevelShape, t.levels[0].mbrNum)
	}
	for k := 0; k < len(t.levels)-1; k++ {
		want := (t.levels[k+1].mbrNum + fanout - 1) / fanout
		if t.levels[k].mbrNum != want {
			return nil, fmt.Errorf("%w: level %d holds %d mbrs, want %d", ErrLevelShape, k, t.levels[k].mbrNum, want)
		}
	}
	for i, l := range t.levels {
		for j := uint64(0); j < l.mbrNum; j++ {
			if !l.mbr(dimNum, j).Valid() {
				return nil, fmt.Errorf("%w: level %d mbr %d", ErrMalformedMBR, i, j)
			}
		}
	}
	return t, nil
}
