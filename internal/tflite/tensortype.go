package tflite

import "fmt"

// TensorType is the closed element-type enumeration from the TFLite
// schema. The numeric codes are fixed by the schema and must not be
// reordered.
type TensorType int8

const (
	TensorFloat32    TensorType = 0
	TensorFloat16    TensorType = 1
	TensorInt32      TensorType = 2
	TensorUint8      TensorType = 3
	TensorInt64      TensorType = 4
	TensorString     TensorType = 5
	TensorBool       TensorType = 6
	TensorInt16      TensorType = 7
	TensorComplex64  TensorType = 8
	TensorInt8       TensorType = 9
	TensorFloat64    TensorType = 10
	TensorComplex128 TensorType = 11
	TensorUint64     TensorType = 12
	TensorResource   TensorType = 13
	TensorVariant    TensorType = 14
	TensorUint32     TensorType = 15
	TensorUint16     TensorType = 16
	TensorInt4       TensorType = 17
)

func (t TensorType) String() string {
	switch t {
	case TensorFloat32:
		return "float32"
	case TensorFloat16:
		return "float16"
	case TensorInt32:
		return "int32"
	case TensorUint8:
		return "uint8"
	case TensorInt64:
		return "int64"
	case TensorString:
		return "string"
	case TensorBool:
		return "bool"
	case TensorInt16:
		return "int16"
	case TensorComplex64:
		return "complex64"
	case TensorInt8:
		return "int8"
	case TensorFloat64:
		return "float64"
	case TensorComplex128:
		return "complex128"
	case TensorUint64:
		return "uint64"
	case TensorResource:
		return "resource"
	case TensorVariant:
		return "variant"
	case TensorUint32:
		return "uint32"
	case TensorUint16:
		return "uint16"
	case TensorInt4:
		return "int4"
	default:
		return fmt.Sprintf("type(%d)", int8(t))
	}
}

// Size returns the byte size of one element, or 0 for types without a
// fixed element size (string, resource, variant, and sub-byte int4).
func (t TensorType) Size() int {
	switch t {
	case TensorUint8, TensorInt8, TensorBool:
		return 1
	case TensorFloat16, TensorInt16, TensorUint16:
		return 2
	case TensorFloat32, TensorInt32, TensorUint32:
		return 4
	case TensorFloat64, TensorInt64, TensorUint64, TensorComplex64:
		return 8
	case TensorComplex128:
		return 16
	default:
		return 0
	}
}
