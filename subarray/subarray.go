package subarray

import (
	"fmt"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/rtree"
)

// Subarray is a query region over an array domain: one ordered list of 1D
// ranges per dimension, representing the Cartesian product of the
// per-dimension lists. Ranges on the same dimension may overlap, and a
// cell covered by more than one product member is reported once per
// member; deduplication, where wanted, belongs to the consumer.
//
// Until a range is added on a dimension, that dimension carries a default
// range spanning its whole domain; the first explicit range replaces it.
//
// A Subarray is single-owner while mutated and must be treated as
// read-only once a query runs against it.
type Subarray[T arrays.Scalar] struct {
	schema *arrays.Schema[T]
	layout arrays.Layout

	dims         []dimRanges[T]
	rangeOffsets []uint64

	overlaps         []rtree.TileOverlap
	overlapsComputed bool
}

// dimRanges is one dimension's range list, packed [lo0,hi0,lo1,hi1,...].
type dimRanges[T arrays.Scalar] struct {
	flat       []T
	hasDefault bool
}

func (d dimRanges[T]) rangeNum() uint64 { return uint64(len(d.flat) / 2) }

func (d dimRanges[T]) rng(j uint64) (T, T) { return d.flat[2*j], d.flat[2*j+1] }

// New constructs a subarray over the schema's whole domain.
func New[T arrays.Scalar](schema *arrays.Schema[T], layout arrays.Layout) (*Subarray[T], error) {
	if !layout.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLayout, layout)
	}
	s := &Subarray[T]{schema: schema, layout: layout}
	s.dims = make([]dimRanges[T], schema.DimNum())
	for i := range s.dims {
		dim := schema.Domain().Dimension(i)
		s.dims[i] = dimRanges[T]{
			flat:       []T{dim.Bounds[0], dim.Bounds[1]},
			hasDefault: true,
		}
	}
	return s, nil
}

func (s *Subarray[T]) Schema() *arrays.Schema[T] { return s.schema }

func (s *Subarray[T]) Layout() arrays.Layout { return s.layout }

func (s *Subarray[T]) DimNum() int { return len(s.dims) }

func (s *Subarray[T]) Type() arrays.Datatype { return arrays.DatatypeOf[T]() }

// effectiveLayout resolves Unordered and GlobalOrder to the schema cell
// order for range enumeration purposes; the enumeration needs a concrete
// total order and the cell order gives the most favourable tile access
// pattern.
func (s *Subarray[T]) effectiveLayout() arrays.Layout {
	if s.layout == arrays.RowMajor || s.layout == arrays.ColMajor {
		return s.layout
	}
	return s.schema.CellOrder()
}

// AddRange appends [lo,hi] to the range list of dimension dim. The range
// must touch the dimension domain; parts outside it are clamped to the
// domain bounds, and that clamping is visible through Range afterwards.
func (s *Subarray[T]) AddRange(dim int, lo, hi T) error {
	if dim < 0 || dim >= len(s.dims) {
		return fmt.Errorf("%w: %d", ErrInvalidDim, dim)
	}
	if arrays.IsNaN(lo) || arrays.IsNaN(hi) {
		return ErrRangeNaN
	}
	if lo > hi {
		return fmt.Errorf("%w: [%v,%v]", ErrInvalidRange, lo, hi)
	}
	bounds := s.schema.Domain().Dimension(dim).Bounds
	if hi < bounds[0] || lo > bounds[1] {
		return fmt.Errorf("%w: [%v,%v] vs dimension %d domain [%v,%v]",
			ErrOutOfDomain, lo, hi, dim, bounds[0], bounds[1])
	}
	if lo < bounds[0] {
		lo = bounds[0]
	}
	if hi > bounds[1] {
		hi = bounds[1]
	}

	// Adding a range invalidates cached overlap and offsets.
	s.overlaps = nil
	s.overlapsComputed = false
	s.rangeOffsets = nil

	d := &s.dims[dim]
	if d.hasDefault {
		d.flat = d.flat[:0]
		d.hasDefault = false
	}
	d.flat = append(d.flat, lo, hi)
	return nil
}

// RangeNum returns the number of ranges on dimension dim.
func (s *Subarray[T]) RangeNum(dim int) (uint64, error) {
	if dim < 0 || dim >= len(s.dims) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDim, dim)
	}
	return s.dims[dim].rangeNum(), nil
}

// Range returns range j of dimension dim.
func (s *Subarray[T]) Range(dim int, j uint64) (lo, hi T, err error) {
	if dim < 0 || dim >= len(s.dims) {
		return lo, hi, fmt.Errorf("%w: %d", ErrInvalidDim, dim)
	}
	if j >= s.dims[dim].rangeNum() {
		return lo, hi, fmt.Errorf("%w: dimension %d range %d", ErrRangeIdx, dim, j)
	}
	lo, hi = s.dims[dim].rng(j)
	return lo, hi, nil
}

// NDRangeNum returns the Cartesian product cardinality of the per
// dimension range lists.
func (s *Subarray[T]) NDRangeNum() uint64 {
	n := uint64(1)
	for _, d := range s.dims {
		n *= d.rangeNum()
	}
	return n
}

// IsUnary reports whether the subarray is a single cell: one ND range
// whose every 1D range is a point.
func (s *Subarray[T]) IsUnary() bool {
	for _, d := range s.dims {
		if d.rangeNum() != 1 {
			return false
		}
		lo, hi := d.rng(0)
		if lo != hi {
			return false
		}
	}
	return true
}

// computeRangeOffsets prepares the strides that map a flattened range
// index to per-dimension range coordinates under the effective layout.
func (s *Subarray[T]) computeRangeOffsets() {
	dimNum := len(s.dims)
	offsets := make([]uint64, dimNum)
	if s.effectiveLayout() == arrays.ColMajor {
		offsets[0] = 1
		for i := 1; i < dimNum; i++ {
			offsets[i] = offsets[i-1] * s.dims[i-1].rangeNum()
		}
	} else {
		offsets[dimNum-1] = 1
		for i := dimNum - 2; i >= 0; i-- {
			offsets[i] = offsets[i+1] * s.dims[i+1].rangeNum()
		}
	}
	s.rangeOffsets = offsets
}

func (s *Subarray[T]) offsets() []uint64 {
	if s.rangeOffsets == nil {
		s.computeRangeOffsets()
	}
	return s.rangeOffsets
}

// RangeCoords maps a flattened range index to the per-dimension range
// coordinates under the effective layout.
func (s *Subarray[T]) RangeCoords(idx uint64) []uint64 {
	offsets := s.offsets()
	coords := make([]uint64, len(s.dims))
	if s.effectiveLayout() == arrays.ColMajor {
		for i := len(s.dims) - 1; i >= 0; i-- {
			coords[i] = idx / offsets[i]
			idx %= offsets[i]
		}
	} else {
		for i := 0; i < len(s.dims); i++ {
			coords[i] = idx / offsets[i]
			idx %= offsets[i]
		}
	}
	return coords
}

// RangeIdx is the inverse of RangeCoords.
func (s *Subarray[T]) RangeIdx(coords []uint64) uint64 {
	offsets := s.offsets()
	var idx uint64
	for i := range coords {
		idx += offsets[i] * coords[i]
	}
	return idx
}

// NDRange materializes the flattened range idx as a packed rectangle,
// directly usable as an index query range.
func (s *Subarray[T]) NDRange(idx uint64) (rtree.MBR[T], error) {
	if idx >= s.NDRangeNum() {
		return nil, fmt.Errorf("%w: %d", ErrRangeIdx, idx)
	}
	coords := s.RangeCoords(idx)
	r := make(rtree.MBR[T], 0, 2*len(s.dims))
	for i, d := range s.dims {
		lo, hi := d.rng(coords[i])
		r = append(r, lo, hi)
	}
	return r, nil
}

// GetSubarray returns a new subarray consisting of the flattened ranges in
// the inclusive interval [start,end]. Any computed tile overlap for the
// interval is carried over.
func (s *Subarray[T]) GetSubarray(start, end uint64) (*Subarray[T], error) {
	n := s.NDRangeNum()
	if start > end || end >= n {
		return nil, fmt.Errorf("%w: [%d,%d] of %d", ErrRangeIdx, start, end, n)
	}
	ret, err := New(s.schema, s.layout)
	if err != nil {
		return nil, err
	}
	startCoords := s.RangeCoords(start)
	endCoords := s.RangeCoords(end)
	for i, d := range s.dims {
		for j := startCoords[i]; j <= endCoords[i]; j++ {
			lo, hi := d.rng(j)
			if err := ret.AddRange(i, lo, hi); err != nil {
				return nil, err
			}
		}
	}
	if s.overlapsComputed && ret.NDRangeNum() == end-start+1 {
		ret.overlaps = append([]rtree.TileOverlap(nil), s.overlaps[start:end+1]...)
		ret.overlapsComputed = true
	}
	return ret, nil
}

// Clone returns a deep copy.
func (s *Subarray[T]) Clone() *Subarray[T] {
	c := &Subarray[T]{
		schema:           s.schema,
		layout:           s.layout,
		overlapsComputed: s.overlapsComputed,
	}
	c.dims = make([]dimRanges[T], len(s.dims))
	for i, d := range s.dims {
		c.dims[i] = dimRanges[T]{
			flat:       append([]T(nil), d.flat...),
			hasDefault: d.hasDefault,
		}
	}
	c.overlaps = append([]rtree.TileOverlap(nil), s.overlaps...)
	return c
}
