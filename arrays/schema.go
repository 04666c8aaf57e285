package arrays

import "fmt"

// CoordsName is the reserved pseudo-attribute under which cell coordinates
// are buffered and estimated. One "cell" of it is DimNum scalars of the
// domain datatype.
const CoordsName = "__coords"

// VarCellNum marks a variable-sized attribute.
const VarCellNum = ^uint32(0)

// Attribute describes a named value column as far as the index and planner
// need it: datatype and values per cell.
type Attribute struct {
	Name       string
	Type       Datatype
	CellValNum uint32
}

// Var reports whether the attribute is variable-sized.
func (a Attribute) Var() bool { return a.CellValNum == VarCellNum }

// CellSize returns the fixed byte size of one cell, or (0, false) for
// variable-sized attributes.
func (a Attribute) CellSize() (uint64, bool) {
	if a.Var() {
		return 0, false
	}
	return uint64(a.CellValNum) * a.Type.Size(), true
}

// Schema carries the slice of an array schema that the index consumes: the
// domain, the attributes, the cell order and the tile capacity.
type Schema[T Scalar] struct {
	domain    Domain[T]
	attrs     []Attribute
	cellOrder Layout
	capacity  uint64
	sparse    bool
}

// NewSchema validates and constructs a schema. The cell order must be
// row-major or col-major; it fixes the global order of cells within and
// across tiles.
func NewSchema[T Scalar](domain Domain[T], cellOrder Layout, capacity uint64, sparse bool, attrs ...Attribute) (*Schema[T], error) {
	if cellOrder != RowMajor && cellOrder != ColMajor {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidCellOrder, cellOrder)
	}
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}
	if len(attrs) == 0 {
		return nil, ErrNoAttributes
	}
	seen := map[string]bool{}
	for _, a := range attrs {
		if a.Name == CoordsName {
			return nil, fmt.Errorf("%w: %q", ErrReservedAttrName, a.Name)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAttr, a.Name)
		}
		seen[a.Name] = true
		if !a.Var() && a.Type.Size() == 0 {
			return nil, fmt.Errorf("%w: %q", ErrZeroCellValSize, a.Name)
		}
	}
	as := make([]Attribute, len(attrs))
	copy(as, attrs)
	return &Schema[T]{
		domain:    domain,
		attrs:     as,
		cellOrder: cellOrder,
		capacity:  capacity,
		sparse:    sparse,
	}, nil
}

func (s *Schema[T]) Domain() Domain[T] { return s.domain }

func (s *Schema[T]) DimNum() int { return s.domain.DimNum() }

func (s *Schema[T]) CellOrder() Layout { return s.cellOrder }

func (s *Schema[T]) Capacity() uint64 { return s.capacity }

func (s *Schema[T]) Sparse() bool { return s.sparse }

func (s *Schema[T]) Attributes() []Attribute { return s.attrs }

// Attribute resolves a name to its attribute. CoordsName resolves to a
// synthetic fixed-size attribute of DimNum domain scalars per cell.
func (s *Schema[T]) Attribute(name string) (Attribute, error) {
	if name == CoordsName {
		return Attribute{
			Name:       CoordsName,
			Type:       DatatypeOf[T](),
			CellValNum: uint32(s.DimNum()),
		}, nil
	}
	for _, a := range s.attrs {
		if a.Name == name {
			return a, nil
		}
	}
	return Attribute{}, fmt.Errorf("%w: %q", ErrUnknownAttr, name)
}
