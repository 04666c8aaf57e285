package rtree

import (
	"fmt"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// RTree is a height-balanced tile index built bottom-up from a fragment's
// leaf tile MBRs, in the global tile order established by the writer. It is
// immutable after construction and safe for concurrent readers without
// locking.
//
// Levels run root first. Every internal rectangle is the tight union of its
// up-to-fanout consecutive children on the level below, so a rectangle at
// level k with index i covers leaf tiles [i*F^(H-k), ...) where H is the
// height. The right-most subtree on each level may be ragged.
type RTree[T arrays.Scalar] struct {
	dimNum int
	fanout uint64
	levels []level[T]
}

// New bulk builds a tree over the given leaf MBRs. The input order is
// preserved: leaf i of the tree is mbrs[i].
func New[T arrays.Scalar](dimNum int, fanout uint64, mbrs []MBR[T]) (*RTree[T], error) {
	if dimNum < 1 {
		return nil, ErrZeroDimensions
	}
	if fanout < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrFanoutTooSmall, fanout)
	}
	if len(mbrs) == 0 {
		return nil, ErrEmpty
	}

	// Pack the leaf level, validating as we copy.
	leaf := level[T]{
		mbrNum: uint64(len(mbrs)),
		mbrs:   make([]T, 0, 2*dimNum*len(mbrs)),
	}
	for i, m := range mbrs {
		if len(m) != 2*dimNum {
			return nil, fmt.Errorf("%w: mbr %d has %d values, want %d", ErrMBRDimensions, i, len(m), 2*dimNum)
		}
		if !m.Valid() {
			return nil, fmt.Errorf("%w: mbr %d", ErrMalformedMBR, i)
		}
		leaf.mbrs = append(leaf.mbrs, m...)
	}

	t := &RTree[T]{dimNum: dimNum, fanout: fanout}
	t.levels = []level[T]{leaf}
	for t.levels[len(t.levels)-1].mbrNum > 1 {
		t.levels = append(t.levels, t.buildParentLevel(t.levels[len(t.levels)-1]))
	}
	reverseLevels(t.levels)
	return t, nil
}

// buildParentLevel emits one tight union rectangle per consecutive group of
// up to fanout children.
func (t *RTree[T]) buildParentLevel(child level[T]) level[T] {
	parentNum := (child.mbrNum + t.fanout - 1) / t.fanout
	w := uint64(2 * t.dimNum)
	parent := level[T]{
		mbrNum: parentNum,
		mbrs:   make([]T, parentNum*w),
	}
	for i := uint64(0); i < parentNum; i++ {
		first := i * t.fanout
		last := first + t.fanout
		if last > child.mbrNum {
			last = child.mbrNum
		}
		u := MBR[T](parent.mbrs[i*w : (i+1)*w])
		copy(u, child.mbr(t.dimNum, first))
		for c := first + 1; c < last; c++ {
			ExpandInto(u, child.mbr(t.dimNum, c))
		}
	}
	return parent
}

func reverseLevels[T arrays.Scalar](ls []level[T]) {
	for i, j := 0, len(ls)-1; i < j; i, j = i+1, j-1 {
		ls[i], ls[j] = ls[j], ls[i]
	}
}

func (t *RTree[T]) DimNum() int { return t.dimNum }

func (t *RTree[T]) Fanout() uint64 { return t.fanout }

func (t *RTree[T]) Type() arrays.Datatype { return arrays.DatatypeOf[T]() }

// Height returns H: the level index of the leaves. A single-leaf tree has
// height 0.
func (t *RTree[T]) Height() int { return len(t.levels) - 1 }

// LeafNum returns the number of leaf tiles the tree indexes.
func (t *RTree[T]) LeafNum() uint64 { return t.levels[len(t.levels)-1].mbrNum }

// LeafMBR returns a view of leaf tile i's rectangle.
func (t *RTree[T]) LeafMBR(i uint64) MBR[T] {
	return t.levels[len(t.levels)-1].mbr(t.dimNum, i)
}

// SubtreeLeafNum returns fanout^(H-level): the leaf capacity of a full
// subtree rooted at the given level. The right-most subtree of a level may
// hold fewer leaves, so this is an estimate for sizing, never an exact
// bound.
func (t *RTree[T]) SubtreeLeafNum(lvl int) uint64 {
	if lvl < 0 || lvl > t.Height() {
		return 0
	}
	n := uint64(1)
	for i := lvl; i < t.Height(); i++ {
		n *= t.fanout
	}
	return n
}

// Clone returns an independent deep copy.
func (t *RTree[T]) Clone() *RTree[T] {
	c := &RTree[T]{dimNum: t.dimNum, fanout: t.fanout}
	c.levels = make([]level[T], len(t.levels))
	for i := range t.levels {
		c.levels[i] = t.levels[i].clone()
	}
	return c
}
