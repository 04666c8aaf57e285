package subarray

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/rtree"
)

// TileSizer supplies the per-tile result byte sizes the estimator needs.
// Fragment metadata implements it.
type TileSizer interface {
	// TileSize returns the fixed-size payload bytes of a leaf tile for the
	// attribute: offsets bytes for var-sized attributes, value bytes
	// otherwise.
	TileSize(attr string, tile uint64) (uint64, error)
	// TileVarSize returns the variable payload bytes of a leaf tile for a
	// var-sized attribute.
	TileVarSize(attr string, tile uint64) (uint64, error)
}

// ResultSize is an estimated result byte count for one attribute: bytes of
// fixed-size values (or offsets, for var-sized attributes) and bytes of
// variable values.
type ResultSize struct {
	Fixed float64
	Var   float64
}

func (r *ResultSize) add(o ResultSize) {
	r.Fixed += o.Fixed
	r.Var += o.Var
}

// overlapConcurrency bounds the fan-out when computing tile overlap for
// many ranges at once.
const overlapConcurrency = 8

// ComputeTileOverlap runs every flattened ND range of the subarray against
// the index and caches the results in enumeration order. Ranges are
// independent, so they are computed concurrently.
func (s *Subarray[T]) ComputeTileOverlap(ctx context.Context, tree *rtree.RTree[T]) error {
	if s.overlapsComputed {
		return nil
	}
	n := s.NDRangeNum()
	overlaps := make([]rtree.TileOverlap, n)

	// Materialize the range strides up front; the workers below share them
	// read-only.
	s.offsets()

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(overlapConcurrency)
	for i := uint64(0); i < n; i++ {
		g.Go(func() error {
			r, err := s.NDRange(i)
			if err != nil {
				return err
			}
			overlaps[i], err = tree.TileOverlap(r)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.overlaps = overlaps
	s.overlapsComputed = true
	return nil
}

// Overlap returns the cached tile overlap of flattened range idx.
func (s *Subarray[T]) Overlap(idx uint64) (rtree.TileOverlap, error) {
	if !s.overlapsComputed {
		return rtree.TileOverlap{}, ErrNoOverlap
	}
	if idx >= uint64(len(s.overlaps)) {
		return rtree.TileOverlap{}, fmt.Errorf("%w: %d", ErrRangeIdx, idx)
	}
	return s.overlaps[idx], nil
}

// estOverlapResultSize estimates the result bytes one range's tile overlap
// contributes for an attribute: full tiles count whole, partial tiles are
// scaled by their covered fraction.
func estOverlapResultSize(attr arrays.Attribute, overlap rtree.TileOverlap, meta TileSizer) (ResultSize, error) {
	var rs ResultSize
	for _, tr := range overlap.TileRanges {
		for tid := tr[0]; tid <= tr[1]; tid++ {
			sz, err := meta.TileSize(attr.Name, tid)
			if err != nil {
				return ResultSize{}, err
			}
			rs.Fixed += float64(sz)
			if attr.Var() {
				vsz, err := meta.TileVarSize(attr.Name, tid)
				if err != nil {
					return ResultSize{}, err
				}
				rs.Var += float64(vsz)
			}
		}
	}
	for _, pt := range overlap.Tiles {
		sz, err := meta.TileSize(attr.Name, pt.Tile)
		if err != nil {
			return ResultSize{}, err
		}
		rs.Fixed += float64(sz) * pt.Ratio
		if attr.Var() {
			vsz, err := meta.TileVarSize(attr.Name, pt.Tile)
			if err != nil {
				return ResultSize{}, err
			}
			rs.Var += float64(vsz) * pt.Ratio
		}
	}
	return rs, nil
}

// estResultSize sums the per-range estimates for an attribute across all
// ranges of the subarray. The overlap must have been computed.
func (s *Subarray[T]) estResultSize(attr arrays.Attribute, meta TileSizer) (ResultSize, error) {
	if !s.schema.Sparse() {
		return ResultSize{}, ErrDenseEst
	}
	if !s.overlapsComputed {
		return ResultSize{}, ErrNoOverlap
	}
	var total ResultSize
	for _, overlap := range s.overlaps {
		rs, err := estOverlapResultSize(attr, overlap, meta)
		if err != nil {
			return ResultSize{}, err
		}
		total.add(rs)
	}
	return total, nil
}

// EstResultSize returns the estimated result bytes for a fixed-sized
// attribute (or the coordinates pseudo-attribute), rounded up. The
// estimate is a conservative sizing aid, not an exactness guarantee.
func (s *Subarray[T]) EstResultSize(ctx context.Context, tree *rtree.RTree[T], meta TileSizer, name string) (uint64, error) {
	attr, err := s.schema.Attribute(name)
	if err != nil {
		return 0, err
	}
	if attr.Var() {
		return 0, fmt.Errorf("%w: %q is var-sized", ErrBudgetVarKind, name)
	}
	if err := s.ComputeTileOverlap(ctx, tree); err != nil {
		return 0, err
	}
	rs, err := s.estResultSize(attr, meta)
	if err != nil {
		return 0, err
	}
	return uint64(math.Ceil(rs.Fixed)), nil
}

// EstResultSizeVar returns the estimated (offsets, values) result bytes for
// a var-sized attribute, rounded up.
func (s *Subarray[T]) EstResultSizeVar(ctx context.Context, tree *rtree.RTree[T], meta TileSizer, name string) (uint64, uint64, error) {
	attr, err := s.schema.Attribute(name)
	if err != nil {
		return 0, 0, err
	}
	if !attr.Var() {
		return 0, 0, fmt.Errorf("%w: %q is fixed-sized", ErrBudgetVarKind, name)
	}
	if err := s.ComputeTileOverlap(ctx, tree); err != nil {
		return 0, 0, err
	}
	rs, err := s.estResultSize(attr, meta)
	if err != nil {
		return 0, 0, err
	}
	return uint64(math.Ceil(rs.Fixed)), uint64(math.Ceil(rs.Var)), nil
}
