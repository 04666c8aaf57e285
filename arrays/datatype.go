package arrays

import "fmt"

// Datatype identifies the cell datatype shared by all dimensions of an
// array domain. Coordinate arithmetic in the index is dispatched on it
// exactly once, at the public entry points.
type Datatype uint8

const (
	Int8 Datatype = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// Scalar is the constraint satisfied by every supported cell datatype. All
// geometry and range routines are generic over it, so each datatype gets a
// single monomorphized instantiation rather than per-value dispatch.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Size returns the width of one scalar of the datatype in bytes.
func (t Datatype) Size() uint64 {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Integer reports whether the datatype uses closed-interval cell counting.
// Float datatypes use half-open extents instead.
func (t Datatype) Integer() bool {
	return t != Float32 && t != Float64
}

func (t Datatype) Valid() bool {
	return t <= Float64
}

func (t Datatype) String() string {
	switch t {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("datatype(%d)", uint8(t))
}

// DatatypeOf maps a concrete scalar instantiation back to its tag. It is
// how the serialization and metadata layers recover the datatype from a
// generic context.
func DatatypeOf[T Scalar]() Datatype {
	var v T
	switch any(v).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	// Named types with a Scalar underlying type are not used by this module.
	panic("arrays: unsupported scalar instantiation")
}

// IsNaN reports whether v is a floating point NaN. Integer scalars are
// never NaN.
func IsNaN[T Scalar](v T) bool {
	return v != v
}
