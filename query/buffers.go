package query

import "github.com/tessellate-db/go-tessellate/arrays"

// attrBuffer is one caller-supplied result buffer. The capacity is fixed
// by the caller; the used counters are reset at every submit, so
// ResultBufferElements describes the most recent batch only.
type attrBuffer struct {
	attr        arrays.Attribute
	values      []byte
	offsets     []uint64
	valuesUsed  uint64
	offsetsUsed uint64
}

func (b *attrBuffer) reset() {
	b.valuesUsed = 0
	b.offsetsUsed = 0
}

// holds reports whether n more cells totalling varBytes variable bytes fit
// in the remaining capacity.
func (b *attrBuffer) holds(n, varBytes uint64) bool {
	if b.attr.Var() {
		if b.offsetsUsed+n > uint64(len(b.offsets)) {
			return false
		}
		return b.valuesUsed+varBytes <= uint64(len(b.values))
	}
	size, _ := b.attr.CellSize()
	return b.valuesUsed+n*size <= uint64(len(b.values))
}

// ResultElements is the per-attribute element counts of the last batch:
// offsets elements and value elements (scalars of the attribute datatype).
type ResultElements struct {
	Offsets uint64
	Values  uint64
}
