package rtree

import "github.com/tessellate-db/go-tessellate/arrays"

// level is one packed row of the tree: mbrNum rectangles stored
// contiguously, 2*dimNum scalars each. Level 0 is the root; the last level
// holds the leaf tile MBRs in tile order. The packed layout is what gets
// serialized, byte for byte.
type level[T arrays.Scalar] struct {
	mbrNum uint64
	mbrs   []T
}

// mbr returns a view (not a copy) of rectangle i.
func (l level[T]) mbr(dimNum int, i uint64) MBR[T] {
	w := uint64(2 * dimNum)
	return MBR[T](l.mbrs[i*w : (i+1)*w])
}

func (l level[T]) clone() level[T] {
	c := level[T]{mbrNum: l.mbrNum, mbrs: make([]T, len(l.mbrs))}
	copy(c.mbrs, l.mbrs)
	return c
}
