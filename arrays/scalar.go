package arrays

import (
	"encoding/binary"
	"math"
)

// Scalars are persisted little endian, matching the native layout of the
// packed tile buffers the index was designed around.

// PutScalar writes v at the start of b. b must be at least Size() bytes for
// the scalar's datatype.
func PutScalar[T Scalar](b []byte, v T) {
	switch v := any(v).(type) {
	case int8:
		b[0] = byte(v)
	case uint8:
		b[0] = v
	case int16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case uint16:
		binary.LittleEndian.PutUint16(b, v)
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case uint32:
		binary.LittleEndian.PutUint32(b, v)
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	case uint64:
		binary.LittleEndian.PutUint64(b, v)
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

// GetScalar reads one scalar from the start of b.
func GetScalar[T Scalar](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *int8:
		*p = int8(b[0])
	case *uint8:
		*p = b[0]
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(b))
	case *uint16:
		*p = binary.LittleEndian.Uint16(b)
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
	case *uint32:
		*p = binary.LittleEndian.Uint32(b)
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(b))
	case *uint64:
		*p = binary.LittleEndian.Uint64(b)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return v
}

// AppendScalars appends the little endian encoding of vs to b.
func AppendScalars[T Scalar](b []byte, vs []T) []byte {
	size := int(DatatypeOf[T]().Size())
	off := len(b)
	b = append(b, make([]byte, size*len(vs))...)
	for _, v := range vs {
		PutScalar(b[off:], v)
		off += size
	}
	return b
}

// DecodeScalars decodes n scalars from the front of b, returning them and
// the remaining bytes. ok is false if b is too short.
func DecodeScalars[T Scalar](b []byte, n uint64) ([]T, []byte, bool) {
	size := DatatypeOf[T]().Size()
	need := n * size
	if uint64(len(b)) < need {
		return nil, b, false
	}
	vs := make([]T, n)
	for i := range vs {
		vs[i] = GetScalar[T](b[uint64(i)*size:])
	}
	return vs, b[need:], true
}
