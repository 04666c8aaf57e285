package subarray

import (
	"context"
	"fmt"
	"math"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/rtree"
)

// multiRangeReduction is the fraction by which a multi-range partition
// interval shrinks when the caller reports overflow on it.
const multiRangeReduction = 0.3

// ResultBudget is a per-attribute byte budget a partition must fit:
// offsets/value bytes for fixed attributes, both for var-sized ones.
type ResultBudget struct {
	Fixed uint64
	Var   uint64
}

// Partitioner decomposes a subarray into consecutive partitions whose
// estimated result sizes fit a set of per-attribute budgets. It is the
// engine behind the incomplete-result protocol: the planner reads one
// partition per submit and asks for further splits when actual results
// overflow the caller's buffers.
//
// Partitions come in two forms. When a run of whole ND ranges fits the
// budget, the partition is that run, calibrated so it covers a rectangular
// block of the range grid. When even a single ND range exceeds the budget,
// that range is split recursively at dimension midpoints, in the layout's
// dimension order, until the pieces fit the estimate.
type Partitioner[T arrays.Scalar] struct {
	subarray *Subarray[T]
	tree     *rtree.RTree[T]
	meta     TileSizer
	budget   map[string]ResultBudget

	state struct {
		start, end uint64
		// singleRange is a stack of pending pieces of a split ND range,
		// front first.
		singleRange []*Subarray[T]
	}
	current struct {
		partition  *Subarray[T]
		start, end uint64
	}
}

// NewPartitioner computes the subarray's tile overlap and prepares
// iteration. Budgets are set separately before the first Next call.
func NewPartitioner[T arrays.Scalar](ctx context.Context, s *Subarray[T], tree *rtree.RTree[T], meta TileSizer) (*Partitioner[T], error) {
	if err := s.ComputeTileOverlap(ctx, tree); err != nil {
		return nil, err
	}
	p := &Partitioner[T]{
		subarray: s,
		tree:     tree,
		meta:     meta,
		budget:   map[string]ResultBudget{},
	}
	p.state.start = 0
	n := s.NDRangeNum()
	if n > 0 {
		p.state.end = n - 1
	}
	return p, nil
}

// SetResultBudget sets the fixed-size byte budget for an attribute or the
// coordinates pseudo-attribute.
func (p *Partitioner[T]) SetResultBudget(name string, budget uint64) error {
	attr, err := p.subarray.Schema().Attribute(name)
	if err != nil {
		return err
	}
	if attr.Var() {
		return fmt.Errorf("%w: %q is var-sized", ErrBudgetVarKind, name)
	}
	if budget == 0 {
		return fmt.Errorf("%w: %q", ErrZeroBudget, name)
	}
	p.budget[name] = ResultBudget{Fixed: budget}
	return nil
}

// SetResultBudgetVar sets the (offsets, values) byte budgets for a
// var-sized attribute.
func (p *Partitioner[T]) SetResultBudgetVar(name string, budgetOff, budgetVal uint64) error {
	attr, err := p.subarray.Schema().Attribute(name)
	if err != nil {
		return err
	}
	if !attr.Var() {
		return fmt.Errorf("%w: %q is fixed-sized", ErrBudgetVarKind, name)
	}
	if budgetOff == 0 || budgetVal == 0 {
		return fmt.Errorf("%w: %q", ErrZeroBudget, name)
	}
	p.budget[name] = ResultBudget{Fixed: budgetOff, Var: budgetVal}
	return nil
}

// Done reports whether every partition has been handed out.
func (p *Partitioner[T]) Done() bool {
	return p.state.start > p.state.end && len(p.state.singleRange) == 0
}

// Current returns the partition produced by the last Next or SplitCurrent.
func (p *Partitioner[T]) Current() *Subarray[T] {
	return p.current.partition
}

// Next advances to the next partition. unsplittable is true when the
// produced partition is a single cell whose estimate still exceeds the
// budget; it is handed out regardless, and the caller decides whether the
// actual results fit.
func (p *Partitioner[T]) Next(ctx context.Context) (unsplittable bool, err error) {
	if p.Done() {
		return false, nil
	}

	// Pending pieces of a split range come first.
	if len(p.state.singleRange) > 0 {
		return p.nextFromSingleRange(ctx)
	}

	found, err := p.computeCurrentStartEnd()
	if err != nil {
		return false, err
	}
	if !found {
		// Not even one whole ND range fits: split range state.start. Seeding
		// the stack consumes the flat range, the stack now represents it.
		seed, err := p.subarray.GetSubarray(p.state.start, p.state.start)
		if err != nil {
			return false, err
		}
		p.state.singleRange = append([]*Subarray[T]{seed}, p.state.singleRange...)
		p.state.start++
		return p.nextFromSingleRange(ctx)
	}

	p.calibrateCurrentStartEnd()

	p.current.partition, err = p.subarray.GetSubarray(p.current.start, p.current.end)
	if err != nil {
		return false, err
	}
	p.state.start = p.current.end + 1
	return false, nil
}

// SplitCurrent splits the current partition after the caller found that
// its actual results overflow. Multi-range partitions shrink to a prefix
// of their interval; single-range partitions split at a dimension
// midpoint. The new current partition is the first piece.
func (p *Partitioner[T]) SplitCurrent(ctx context.Context) (unsplittable bool, err error) {
	if p.current.start < p.current.end {
		newEnd := uint64(float64(p.current.end) * (1 - multiRangeReduction))
		if newEnd < p.current.start {
			newEnd = p.current.start
		}
		p.current.end = newEnd
		p.current.partition, err = p.subarray.GetSubarray(p.current.start, p.current.end)
		if err != nil {
			return false, err
		}
		p.state.start = p.current.end + 1
		return false, nil
	}

	p.state.singleRange = append([]*Subarray[T]{p.current.partition}, p.state.singleRange...)
	if unsplittable, err = p.splitTop(ctx); err != nil || unsplittable {
		return unsplittable, err
	}
	p.current.partition = p.state.singleRange[0]
	p.state.singleRange = p.state.singleRange[1:]
	return false, nil
}

// nextFromSingleRange pops split pieces, splitting further while the
// estimate exceeds the budget.
func (p *Partitioner[T]) nextFromSingleRange(ctx context.Context) (unsplittable bool, err error) {
	for {
		must, err := p.mustSplitTop(ctx)
		if err != nil {
			return false, err
		}
		if !must {
			break
		}
		unsplittable, err = p.splitTop(ctx)
		if err != nil {
			return false, err
		}
		if unsplittable {
			break
		}
	}
	p.current.partition = p.state.singleRange[0]
	p.state.singleRange = p.state.singleRange[1:]
	p.current.start = p.state.start
	p.current.end = p.current.start
	return unsplittable, nil
}

// mustSplitTop reports whether the front piece's rounded-up estimate
// exceeds any budget.
func (p *Partitioner[T]) mustSplitTop(ctx context.Context) (bool, error) {
	top := p.state.singleRange[0]
	if err := top.ComputeTileOverlap(ctx, p.tree); err != nil {
		return false, err
	}
	for name, budget := range p.budget {
		attr, err := p.subarray.Schema().Attribute(name)
		if err != nil {
			return false, err
		}
		rs, err := top.estResultSize(attr, p.meta)
		if err != nil {
			return false, err
		}
		if uint64(math.Ceil(rs.Fixed)) > budget.Fixed {
			return true, nil
		}
		if attr.Var() && uint64(math.Ceil(rs.Var)) > budget.Var {
			return true, nil
		}
	}
	return false, nil
}

// splitTop replaces the front piece with its two halves, split at the
// midpoint of the first splittable dimension in layout order. unsplittable
// is true when the piece is a single cell, or when midpoint arithmetic
// cannot separate the bounds; the piece is left in place.
func (p *Partitioner[T]) splitTop(_ context.Context) (unsplittable bool, err error) {
	top := p.state.singleRange[0]
	if top.IsUnary() {
		return true, nil
	}

	splitDim := -1
	var splitPoint T
	for _, dim := range p.splitDimOrder() {
		lo, hi, err := top.Range(dim, 0)
		if err != nil {
			return false, err
		}
		if lo != hi {
			splitDim = dim
			splitPoint = midpoint(lo, hi)
			if splitPoint == hi {
				return true, nil
			}
			break
		}
	}
	if splitDim < 0 {
		return true, nil
	}

	r1, err := New(p.subarray.Schema(), p.subarray.Layout())
	if err != nil {
		return false, err
	}
	r2, err := New(p.subarray.Schema(), p.subarray.Layout())
	if err != nil {
		return false, err
	}
	for dim := 0; dim < top.DimNum(); dim++ {
		lo, hi, err := top.Range(dim, 0)
		if err != nil {
			return false, err
		}
		if dim == splitDim {
			if err := r1.AddRange(dim, lo, splitPoint); err != nil {
				return false, err
			}
			if err := r2.AddRange(dim, nextUp(splitPoint), hi); err != nil {
				return false, err
			}
		} else {
			if err := r1.AddRange(dim, lo, hi); err != nil {
				return false, err
			}
			if err := r2.AddRange(dim, lo, hi); err != nil {
				return false, err
			}
		}
	}
	p.state.singleRange = append([]*Subarray[T]{r1, r2}, p.state.singleRange[1:]...)
	return false, nil
}

// splitDimOrder returns the dimension indices in the order the effective
// layout walks them: outermost first.
func (p *Partitioner[T]) splitDimOrder() []int {
	dimNum := p.subarray.DimNum()
	dims := make([]int, dimNum)
	if p.subarray.effectiveLayout() == arrays.ColMajor {
		for i := range dims {
			dims[i] = dimNum - i - 1
		}
	} else {
		for i := range dims {
			dims[i] = i
		}
	}
	return dims
}

// computeCurrentStartEnd scans forward from state.start accumulating raw
// per-range estimates until a budget would be exceeded, leaving the
// largest fitting interval in current. found is false when not even the
// first range fits.
func (p *Partitioner[T]) computeCurrentStartEnd() (found bool, err error) {
	sizes := map[string]ResultSize{}
	attrs := map[string]arrays.Attribute{}
	for name := range p.budget {
		attr, err := p.subarray.Schema().Attribute(name)
		if err != nil {
			return false, err
		}
		attrs[name] = attr
	}

	p.current.start = p.state.start
	for p.current.end = p.state.start; p.current.end <= p.state.end; p.current.end++ {
		overlap, err := p.subarray.Overlap(p.current.end)
		if err != nil {
			return false, err
		}
		for name, budget := range p.budget {
			rs, err := estOverlapResultSize(attrs[name], overlap, p.meta)
			if err != nil {
				return false, err
			}
			acc := sizes[name]
			acc.add(rs)
			sizes[name] = acc
			if acc.Fixed > float64(budget.Fixed) || (attrs[name].Var() && acc.Var > float64(budget.Var)) {
				if p.current.end == p.current.start {
					return false, nil
				}
				p.current.end--
				return true, nil
			}
		}
	}
	p.current.end--
	return true, nil
}

// calibrateCurrentStartEnd shrinks the interval's end so the partition
// covers a rectangular block of the range grid: for every major dimension,
// either the minor coordinates span their whole extent or the interval
// stays within one major coordinate.
func (p *Partitioner[T]) calibrateCurrentStartEnd() {
	s := p.subarray
	dimNum := s.DimNum()
	if dimNum == 1 {
		return
	}
	startCoords := s.RangeCoords(p.current.start)
	endCoords := s.RangeCoords(p.current.end)

	rangeNum := make([]uint64, dimNum)
	for i := 0; i < dimNum; i++ {
		rangeNum[i] = s.dims[i].rangeNum()
	}

	rowMajor := s.effectiveLayout() != arrays.ColMajor
	for d := 0; d < dimNum-1; d++ {
		majorDim := d
		if !rowMajor {
			majorDim = dimNum - d - 1
		}
		var minorDims []int
		if rowMajor {
			for i := majorDim + 1; i < dimNum; i++ {
				minorDims = append(minorDims, i)
			}
		} else {
			for i := majorDim - 1; i >= 0; i-- {
				minorDims = append(minorDims, i)
			}
		}

		startAtBeginning := true
		for _, dim := range minorDims {
			if startCoords[dim] != 0 {
				startAtBeginning = false
				break
			}
		}
		endAtEnd := true
		for _, dim := range minorDims {
			if endCoords[dim] != rangeNum[dim]-1 {
				endAtEnd = false
				break
			}
		}

		if startAtBeginning {
			if endAtEnd {
				break
			}
			if startCoords[majorDim] < endCoords[majorDim] {
				endCoords[majorDim]--
				for _, dim := range minorDims {
					endCoords[dim] = rangeNum[dim] - 1
				}
				break
			}
			// Same major coordinate: recurse into the next major dimension.
		} else {
			if endCoords[majorDim] > startCoords[majorDim] {
				endCoords[majorDim] = startCoords[majorDim]
				for _, dim := range minorDims {
					endCoords[dim] = rangeNum[dim] - 1
				}
			}
		}
	}
	p.current.end = s.RangeIdx(endCoords)
}

// midpoint splits [lo,hi] at its lower middle. Integer datatypes truncate;
// float datatypes take the arithmetic mean.
func midpoint[T arrays.Scalar](lo, hi T) T {
	return lo + (hi-lo)/2
}

// nextUp returns the smallest representable value above v for float
// datatypes, and v+1 for integer datatypes.
func nextUp[T arrays.Scalar](v T) T {
	switch x := any(v).(type) {
	case float32:
		return any(math.Nextafter32(x, float32(math.Inf(1)))).(T)
	case float64:
		return any(math.Nextafter(x, math.Inf(1))).(T)
	}
	return v + 1
}
