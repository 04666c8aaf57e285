package rtree

import "fmt"

// PartialTile is a leaf tile partially covered by a query range, with the
// covered fraction of its MBR.
type PartialTile struct {
	Tile  uint64
	Ratio float64
}

// TileOverlap decomposes a range query's result into fully covered leaf
// tiles, kept as inclusive [start,end] index ranges, and partially covered
// tiles with their overlap ratios. Walking TileRanges and Tiles together
// yields every overlapping leaf exactly once, in strictly ascending tile
// order.
type TileOverlap struct {
	TileRanges [][2]uint64
	Tiles      []PartialTile
}

// Empty reports whether the query overlapped no tiles at all.
func (o TileOverlap) Empty() bool {
	return len(o.TileRanges) == 0 && len(o.Tiles) == 0
}

// FullTileNum returns the total number of fully covered tiles.
func (o TileOverlap) FullTileNum() uint64 {
	var n uint64
	for _, tr := range o.TileRanges {
		n += tr[1] - tr[0] + 1
	}
	return n
}

type traversalFrame struct {
	level int
	idx   uint64
}

// TileOverlap runs a range query over the index. The traversal is a
// depth-first walk with an explicit stack; children are stacked so that
// results are emitted in ascending leaf order, which makes the output
// deterministic and byte-identical for identical inputs.
func (t *RTree[T]) TileOverlap(r MBR[T]) (TileOverlap, error) {
	var overlap TileOverlap
	if len(r) != 2*t.dimNum {
		return overlap, fmt.Errorf("%w: got %d values, want %d", ErrRangeDimensions, len(r), 2*t.dimNum)
	}
	if !r.Valid() {
		return overlap, fmt.Errorf("%w: query range", ErrMalformedMBR)
	}

	leafNum := t.LeafNum()
	height := t.Height()
	stack := []traversalFrame{{level: 0, idx: 0}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m := t.levels[frame.level].mbr(t.dimNum, frame.idx)

		if !Intersects(r, m) {
			continue
		}
		if Contains(r, m) {
			// The whole subtree is covered. The right-most subtree may be
			// ragged, so clamp against the true leaf count.
			sub := t.SubtreeLeafNum(frame.level)
			start := frame.idx * sub
			end := start + sub - 1
			if end > leafNum-1 {
				end = leafNum - 1
			}
			overlap.TileRanges = append(overlap.TileRanges, [2]uint64{start, end})
			continue
		}
		if frame.level == height {
			ratio := RangeOverlapRatio(r, m)
			overlap.Tiles = append(overlap.Tiles, PartialTile{Tile: frame.idx, Ratio: ratio})
			continue
		}
		// Push children in reverse so the lowest index pops first.
		childNum := t.levels[frame.level+1].mbrNum
		first := frame.idx * t.fanout
		last := first + t.fanout - 1
		if last > childNum-1 {
			last = childNum - 1
		}
		for c := last + 1; c > first; c-- {
			stack = append(stack, traversalFrame{level: frame.level + 1, idx: c - 1})
		}
	}
	return overlap, nil
}
