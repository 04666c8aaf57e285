package query

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/tessellate-db/go-tessellate/arrays"
	"github.com/tessellate-db/go-tessellate/fragments"
	"github.com/tessellate-db/go-tessellate/rtree"
	"github.com/tessellate-db/go-tessellate/subarray"
)

// Status is the lifecycle state of a read query.
type Status uint8

const (
	Uninitialized Status = iota
	InProgress
	Incomplete
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case InProgress:
		return "in progress"
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Query streams the cells selected by a subarray into caller-supplied
// buffers. When the buffers cannot hold everything, Submit returns
// Incomplete and the caller resubmits with the same buffers to continue;
// the concatenation of all batches is identical regardless of buffer
// sizing.
//
// Internally each submit reads exactly one non-empty partition from the
// subarray partitioner, asking it to split further whenever the actual
// results overflow the buffers.
type Query[T arrays.Scalar] struct {
	id   uuid.UUID
	log  logger.Logger
	frag *fragments.Fragment[T]

	store  fragments.TileReader[T]
	sub    *subarray.Subarray[T]
	layout arrays.Layout

	buffers    map[string]*attrBuffer
	coordsBuf  []T
	coordsUsed uint64

	part      *subarray.Partitioner[T]
	status    Status
	failure   *Failure
	cancelled atomic.Bool

	tileCache map[uint64]*fragments.TileData[T]
}

// Option configures a query at construction.
type Option func(any)

// WithTileReader overrides the tile source, e.g. with a blob-backed store.
func WithTileReader[T arrays.Scalar](store fragments.TileReader[T]) Option {
	return func(opts any) {
		if q, ok := opts.(*Query[T]); ok {
			q.store = store
		}
	}
}

// New creates a read query against a fragment. The layout defaults to the
// schema cell order until SetLayout is called.
func New[T arrays.Scalar](log logger.Logger, frag *fragments.Fragment[T], opts ...Option) *Query[T] {
	q := &Query[T]{
		id:        uuid.New(),
		log:       log,
		frag:      frag,
		store:     frag.Store,
		layout:    frag.Schema.CellOrder(),
		buffers:   map[string]*attrBuffer{},
		status:    Uninitialized,
		tileCache: map[uint64]*fragments.TileData[T]{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// ID returns the query identity used in diagnostics.
func (q *Query[T]) ID() uuid.UUID { return q.id }

// Status returns the current lifecycle state.
func (q *Query[T]) Status() Status { return q.status }

// Err returns the failure of a Failed query, nil otherwise.
func (q *Query[T]) Err() error {
	if q.failure == nil {
		return nil
	}
	return q.failure
}

// SetSubarray attaches the query region. The subarray must not be mutated
// while the query runs.
func (q *Query[T]) SetSubarray(s *subarray.Subarray[T]) error {
	if q.status != Uninitialized {
		return ErrAlreadyRunning
	}
	q.sub = s
	return nil
}

// SetLayout sets the result order.
func (q *Query[T]) SetLayout(layout arrays.Layout) error {
	if q.status != Uninitialized {
		return ErrAlreadyRunning
	}
	if !layout.Valid() {
		return fmt.Errorf("%w: %s", subarray.ErrInvalidLayout, layout)
	}
	q.layout = layout
	return nil
}

// SetBuffer supplies the result buffer for a fixed-sized attribute. The
// slice length is the capacity.
func (q *Query[T]) SetBuffer(name string, values []byte) error {
	if q.status != Uninitialized {
		return ErrAlreadyRunning
	}
	attr, err := q.frag.Schema.Attribute(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if attr.Var() {
		return fmt.Errorf("%w: %q is var-sized", ErrBufferKind, name)
	}
	q.buffers[name] = &attrBuffer{attr: attr, values: values}
	return nil
}

// SetBufferVar supplies the offsets and values buffers for a var-sized
// attribute.
func (q *Query[T]) SetBufferVar(name string, offsets []uint64, values []byte) error {
	if q.status != Uninitialized {
		return ErrAlreadyRunning
	}
	attr, err := q.frag.Schema.Attribute(name)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownBuffer, name)
	}
	if !attr.Var() {
		return fmt.Errorf("%w: %q is fixed-sized", ErrBufferKind, name)
	}
	q.buffers[name] = &attrBuffer{attr: attr, offsets: offsets, values: values}
	return nil
}

// SetCoordsBuffer supplies the typed buffer receiving cell coordinates,
// interleaved per cell. Its capacity is len(buf) scalars.
func (q *Query[T]) SetCoordsBuffer(buf []T) error {
	if q.status != Uninitialized {
		return ErrAlreadyRunning
	}
	q.coordsBuf = buf
	return nil
}

// Cancel asks the query to stop. The running submit finishes its in-flight
// copy and fails with a cancelled failure at the next partition advance.
func (q *Query[T]) Cancel() {
	q.cancelled.Store(true)
}

// EstResultSize returns the estimated result bytes for a fixed-sized
// attribute of the attached subarray.
func (q *Query[T]) EstResultSize(ctx context.Context, name string) (uint64, error) {
	if q.sub == nil {
		return 0, ErrNoSubarray
	}
	return q.sub.EstResultSize(ctx, q.frag.Tree, q.frag.Meta, name)
}

// ResultBufferElements reports, per buffered attribute, the element counts
// of the most recent batch. The coordinates entry counts scalars across
// all dimensions.
func (q *Query[T]) ResultBufferElements() map[string]ResultElements {
	out := map[string]ResultElements{}
	for name, b := range q.buffers {
		out[name] = ResultElements{
			Offsets: b.offsetsUsed,
			Values:  b.valuesUsed / b.attr.Type.Size(),
		}
	}
	if q.coordsBuf != nil {
		out[arrays.CoordsName] = ResultElements{Values: q.coordsUsed}
	}
	return out
}

// Submit runs the query until the buffers fill or the results are
// exhausted. It returns Incomplete when the caller must resubmit,
// Complete when done, and Failed with the failure as error on a terminal
// failure. Every submit that returns Incomplete copies at least one cell; a
// submit that returns Complete copies none when no results remain.
func (q *Query[T]) Submit(ctx context.Context) (Status, error) {
	switch q.status {
	case Complete:
		return Complete, nil
	case Failed:
		return Failed, q.failure
	}

	if q.status == Uninitialized {
		if err := q.initialize(ctx); err != nil {
			return q.status, err
		}
	}
	q.status = InProgress

	q.coordsUsed = 0
	for _, b := range q.buffers {
		b.reset()
	}

	for {
		if q.cancelled.Load() {
			return q.fail(newFailure(FailureCancelled, nil, "query %s cancelled", q.id))
		}
		if q.part.Done() {
			q.status = Complete
			return Complete, nil
		}

		unsplittable, err := q.part.Next(ctx)
		if err != nil {
			return q.fail(newFailure(FailureInternal, err, "query %s: partition advance", q.id))
		}

		for {
			cells, err := q.collectPartition(ctx, q.part.Current())
			if err != nil {
				return q.fail(newFailure(FailureIo, err, "query %s: tile fetch", q.id))
			}
			if q.fits(cells) {
				if len(cells) == 0 {
					break // empty partition, move on
				}
				q.copyCells(cells)
				q.log.Debugf("query %s: copied %d cells", q.id, len(cells))
				if q.part.Done() {
					q.status = Complete
					return Complete, nil
				}
				q.status = Incomplete
				return Incomplete, nil
			}
			if unsplittable {
				return q.fail(newFailure(FailureBufferTooSmall, nil,
					"query %s: a single cell partition exceeds the buffer capacity", q.id))
			}
			unsplittable, err = q.part.SplitCurrent(ctx)
			if err != nil {
				return q.fail(newFailure(FailureInternal, err, "query %s: partition split", q.id))
			}
		}
	}
}

func (q *Query[T]) fail(f *Failure) (Status, error) {
	q.failure = f
	q.status = Failed
	q.log.Infof("query failed: %v", f)
	return Failed, f
}

// initialize validates the configuration, checks the buffers can hold at
// least one cell each, and prepares the partitioner with the buffer
// capacities as result budgets.
func (q *Query[T]) initialize(ctx context.Context) error {
	if q.sub == nil {
		return ErrNoSubarray
	}
	if len(q.buffers) == 0 && q.coordsBuf == nil {
		return ErrNoBuffers
	}

	scalarSize := arrays.DatatypeOf[T]().Size()
	dimNum := q.frag.Schema.DimNum()
	for name, b := range q.buffers {
		if b.attr.Var() {
			if len(b.offsets) < 1 || len(b.values) < 1 {
				f := newFailure(FailureBufferTooSmall, nil,
					"query %s: buffer for %q cannot hold one cell", q.id, name)
				q.failure, q.status = f, Failed
				return f
			}
			continue
		}
		size, _ := b.attr.CellSize()
		if uint64(len(b.values)) < size {
			f := newFailure(FailureBufferTooSmall, nil,
				"query %s: buffer for %q cannot hold one cell", q.id, name)
			q.failure, q.status = f, Failed
			return f
		}
	}
	if q.coordsBuf != nil && len(q.coordsBuf) < dimNum {
		f := newFailure(FailureBufferTooSmall, nil,
			"query %s: coordinates buffer cannot hold one cell", q.id)
		q.failure, q.status = f, Failed
		return f
	}

	part, err := subarray.NewPartitioner(ctx, q.sub, q.frag.Tree, q.frag.Meta)
	if err != nil {
		return err
	}
	for name, b := range q.buffers {
		if b.attr.Var() {
			err = part.SetResultBudgetVar(name, uint64(len(b.offsets))*8, uint64(len(b.values)))
		} else {
			err = part.SetResultBudget(name, uint64(len(b.values)))
		}
		if err != nil {
			return err
		}
	}
	if q.coordsBuf != nil {
		if err := part.SetResultBudget(arrays.CoordsName, uint64(len(q.coordsBuf))*scalarSize); err != nil {
			return err
		}
	}
	q.part = part
	return nil
}

// cellRef locates one result cell within the fragment.
type cellRef struct {
	tile uint64
	idx  uint64
}

// collectPartition materializes the partition's result cells, per ND range
// in enumeration order, tiles ascending within a range, cells in stored
// order within a tile. Row- and col-major layouts that differ from the
// cell order re-sort each range's cells by coordinates.
func (q *Query[T]) collectPartition(ctx context.Context, part *subarray.Subarray[T]) ([]cellRef, error) {
	if part == nil {
		return nil, nil
	}
	if err := part.ComputeTileOverlap(ctx, q.frag.Tree); err != nil {
		return nil, err
	}
	dimNum := q.frag.Schema.DimNum()
	cellOrder := q.frag.Schema.CellOrder()
	resort := (q.layout == arrays.RowMajor || q.layout == arrays.ColMajor) && q.layout != cellOrder

	var cells []cellRef
	rangeNum := part.NDRangeNum()
	for i := uint64(0); i < rangeNum; i++ {
		rng, err := part.NDRange(i)
		if err != nil {
			return nil, err
		}
		overlap, err := part.Overlap(i)
		if err != nil {
			return nil, err
		}

		var rangeCells []cellRef
		appendTile := func(tile uint64, full bool) error {
			td, err := q.fetchTile(ctx, tile)
			if err != nil {
				return err
			}
			for c := uint64(0); c < td.CellNum; c++ {
				if full || rtree.ContainsPoint(rng, td.CellCoords(dimNum, c)) {
					rangeCells = append(rangeCells, cellRef{tile: tile, idx: c})
				}
			}
			return nil
		}
		// TileRanges and Tiles are each ascending and mutually disjoint;
		// merge them to visit tiles in ascending order.
		tr, pt := 0, 0
		for tr < len(overlap.TileRanges) || pt < len(overlap.Tiles) {
			if pt >= len(overlap.Tiles) ||
				(tr < len(overlap.TileRanges) && overlap.TileRanges[tr][0] < overlap.Tiles[pt].Tile) {
				for tile := overlap.TileRanges[tr][0]; tile <= overlap.TileRanges[tr][1]; tile++ {
					if err := appendTile(tile, true); err != nil {
						return nil, err
					}
				}
				tr++
			} else {
				if err := appendTile(overlap.Tiles[pt].Tile, false); err != nil {
					return nil, err
				}
				pt++
			}
		}

		if resort {
			colMajor := q.layout == arrays.ColMajor
			sort.SliceStable(rangeCells, func(a, b int) bool {
				ca := q.cachedCoords(dimNum, rangeCells[a])
				cb := q.cachedCoords(dimNum, rangeCells[b])
				return fragments.CompareCoords(ca, cb, colMajor) < 0
			})
		}
		cells = append(cells, rangeCells...)
	}
	return cells, nil
}

func (q *Query[T]) fetchTile(ctx context.Context, tile uint64) (*fragments.TileData[T], error) {
	if td, ok := q.tileCache[tile]; ok {
		return td, nil
	}
	td, err := q.store.FetchLeafTile(ctx, tile)
	if err != nil {
		return nil, err
	}
	q.tileCache[tile] = td
	return td, nil
}

// cachedCoords reads a cell's coordinates from an already fetched tile.
func (q *Query[T]) cachedCoords(dimNum int, ref cellRef) []T {
	return q.tileCache[ref.tile].CellCoords(dimNum, ref.idx)
}

// fits reports whether all cells fit the remaining capacity of every
// buffer this submit.
func (q *Query[T]) fits(cells []cellRef) bool {
	n := uint64(len(cells))
	dimNum := uint64(q.frag.Schema.DimNum())
	if q.coordsBuf != nil && q.coordsUsed+n*dimNum > uint64(len(q.coordsBuf)) {
		return false
	}
	for name, b := range q.buffers {
		var varBytes uint64
		if b.attr.Var() {
			for _, ref := range cells {
				varBytes += uint64(len(q.tileCache[ref.tile].VarCell(name, ref.idx)))
			}
		}
		if !b.holds(n, varBytes) {
			return false
		}
	}
	return true
}

// copyCells appends the cells to every buffer. fits must hold.
func (q *Query[T]) copyCells(cells []cellRef) {
	dimNum := q.frag.Schema.DimNum()
	for _, ref := range cells {
		td := q.tileCache[ref.tile]
		if q.coordsBuf != nil {
			copy(q.coordsBuf[q.coordsUsed:], td.CellCoords(dimNum, ref.idx))
			q.coordsUsed += uint64(dimNum)
		}
		for name, b := range q.buffers {
			if b.attr.Var() {
				cell := td.VarCell(name, ref.idx)
				b.offsets[b.offsetsUsed] = b.valuesUsed
				b.offsetsUsed++
				copy(b.values[b.valuesUsed:], cell)
				b.valuesUsed += uint64(len(cell))
				continue
			}
			cell := td.FixedCell(b.attr, ref.idx)
			copy(b.values[b.valuesUsed:], cell)
			b.valuesUsed += uint64(len(cell))
		}
	}
}
