package rtree

import (
	"math"
	"math/bits"

	"github.com/tessellate-db/go-tessellate/arrays"
)

// MBR is a minimum bounding rectangle: one closed interval per dimension in
// the packed [lo0,hi0,lo1,hi1,...] layout. The flat layout is shared with
// the serialized level format, so MBRs taken from a tree level are
// zero-copy views into it.
type MBR[T arrays.Scalar] []T

func (m MBR[T]) DimNum() int { return len(m) / 2 }

func (m MBR[T]) Lo(d int) T { return m[2*d] }

func (m MBR[T]) Hi(d int) T { return m[2*d+1] }

// Valid reports lo <= hi on every dimension, with NaN bounds rejected.
func (m MBR[T]) Valid() bool {
	for d := 0; d < m.DimNum(); d++ {
		lo, hi := m.Lo(d), m.Hi(d)
		if arrays.IsNaN(lo) || arrays.IsNaN(hi) || lo > hi {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of m.
func (m MBR[T]) Clone() MBR[T] {
	c := make(MBR[T], len(m))
	copy(c, m)
	return c
}

// Intersects reports whether a and b share at least one point.
func Intersects[T arrays.Scalar](a, b MBR[T]) bool {
	for d := 0; d < a.DimNum(); d++ {
		if a.Hi(d) < b.Lo(d) || b.Hi(d) < a.Lo(d) {
			return false
		}
	}
	return true
}

// Contains reports whether a covers every point of b.
func Contains[T arrays.Scalar](a, b MBR[T]) bool {
	for d := 0; d < a.DimNum(); d++ {
		if a.Lo(d) > b.Lo(d) || a.Hi(d) < b.Hi(d) {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether the packed point coords lies inside m.
func ContainsPoint[T arrays.Scalar](m MBR[T], coords []T) bool {
	for d := 0; d < m.DimNum(); d++ {
		if coords[d] < m.Lo(d) || coords[d] > m.Hi(d) {
			return false
		}
	}
	return true
}

// Union returns the per-dimension tight union of a and b.
func Union[T arrays.Scalar](a, b MBR[T]) MBR[T] {
	u := make(MBR[T], len(a))
	copy(u, a)
	ExpandInto(u, b)
	return u
}

// ExpandInto grows dst in place to cover src.
func ExpandInto[T arrays.Scalar](dst, src MBR[T]) {
	for d := 0; d < dst.DimNum(); d++ {
		if src.Lo(d) < dst.Lo(d) {
			dst[2*d] = src.Lo(d)
		}
		if src.Hi(d) > dst.Hi(d) {
			dst[2*d+1] = src.Hi(d)
		}
	}
}

// OverlapMBR returns the per-dimension intersection of a and b. ok is false
// when the rectangles are disjoint, in which case the result is nil.
func OverlapMBR[T arrays.Scalar](a, b MBR[T]) (MBR[T], bool) {
	if !Intersects(a, b) {
		return nil, false
	}
	o := make(MBR[T], len(a))
	for d := 0; d < a.DimNum(); d++ {
		lo, hi := a.Lo(d), a.Hi(d)
		if b.Lo(d) > lo {
			lo = b.Lo(d)
		}
		if b.Hi(d) < hi {
			hi = b.Hi(d)
		}
		o[2*d], o[2*d+1] = lo, hi
	}
	return o, true
}

// Volume returns the cell count of m for integer datatypes (closed
// intervals, product of hi-lo+1) and the hyper-volume for float datatypes
// (half-open extents, 0 when any extent is non-positive). Integer products
// accumulate through 128-bit intermediates; saturated is true when the
// count exceeded the 64-bit range and the returned value is clamped to
// MaxUint64.
func Volume[T arrays.Scalar](m MBR[T]) (vol float64, saturated bool) {
	if arrays.DatatypeOf[T]().Integer() {
		acc := uint64(1)
		for d := 0; d < m.DimNum(); d++ {
			ext := extentCount(m.Lo(d), m.Hi(d))
			hi, lo := bits.Mul64(acc, ext)
			if hi != 0 {
				return float64(math.MaxUint64), true
			}
			acc = lo
		}
		return float64(acc), false
	}
	v := 1.0
	for d := 0; d < m.DimNum(); d++ {
		ext := float64(m.Hi(d)) - float64(m.Lo(d))
		if ext <= 0 {
			return 0, false
		}
		v *= ext
	}
	return v, false
}

// extentCount returns hi-lo+1 as a uint64 without overflowing for any
// signed or unsigned integer interval, including the full uint64 domain
// (where the +1 wraps to 0 and is reported as MaxUint64).
func extentCount[T arrays.Scalar](lo, hi T) uint64 {
	ext := uint64(hi) - uint64(lo)
	if ext == math.MaxUint64 {
		return math.MaxUint64
	}
	return ext + 1
}

// RangeOverlapRatio returns the fraction of mbr covered by r: 0 when
// disjoint, 1 when r covers mbr entirely, otherwise the product of the
// per-dimension overlap fractions. Computing per dimension keeps the
// arithmetic within float64 range for any domain.
func RangeOverlapRatio[T arrays.Scalar](r, mbr MBR[T]) float64 {
	integer := arrays.DatatypeOf[T]().Integer()
	ratio := 1.0
	for d := 0; d < mbr.DimNum(); d++ {
		if r.Lo(d) > mbr.Hi(d) || r.Hi(d) < mbr.Lo(d) {
			return 0
		}
		lo, hi := r.Lo(d), r.Hi(d)
		if mbr.Lo(d) > lo {
			lo = mbr.Lo(d)
		}
		if mbr.Hi(d) < hi {
			hi = mbr.Hi(d)
		}
		var overlapExt, mbrExt float64
		if integer {
			overlapExt = float64(extentCount(lo, hi))
			mbrExt = float64(extentCount(mbr.Lo(d), mbr.Hi(d)))
		} else {
			overlapExt = float64(hi) - float64(lo)
			mbrExt = float64(mbr.Hi(d)) - float64(mbr.Lo(d))
			// A degenerate point interval that intersects is fully covered.
			if mbrExt == 0 {
				continue
			}
		}
		ratio *= overlapExt / mbrExt
	}
	return ratio
}
