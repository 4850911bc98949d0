// Package tflite holds a mutable in-memory representation of the TFLite
// flatbuffer schema subset this tool works with, together with decode
// and encode against the wire format.
//
// The object tree mirrors the schema's table layout: a Model owns
// operator codes, subgraphs and buffers; a subgraph owns tensors and
// operators; tensors reference buffers by index. Mutating the tree and
// re-encoding is the supported editing workflow, so transformations may
// rewrite tensor metadata and buffer bytes in place.
package tflite

// Model is the root table of a TFLite file.
type Model struct {
	Version        uint32
	OperatorCodes  []*OperatorCode
	SubGraphs      []*SubGraph
	Description    string
	Buffers        []*Buffer
	MetadataBuffer []int32
	Metadata       []*Metadata
}

// OperatorCode maps an operator's opcode index to a builtin kind.
// Builtin codes above 127 only fit in BuiltinCode; older files carry
// the same value in DeprecatedBuiltinCode.
type OperatorCode struct {
	DeprecatedBuiltinCode int8
	CustomCode            string
	Version               int32
	BuiltinCode           BuiltinOperator
}

// Code returns the effective builtin operator code, reconciling the
// deprecated and current schema fields.
func (c *OperatorCode) Code() BuiltinOperator {
	if dep := BuiltinOperator(c.DeprecatedBuiltinCode); dep > c.BuiltinCode {
		return dep
	}
	return c.BuiltinCode
}

// SubGraph is one computation graph: tensors plus the operators that
// connect them.
type SubGraph struct {
	Tensors   []*Tensor
	Inputs    []int32
	Outputs   []int32
	Operators []*Operator
	Name      string
}

// Tensor is a typed buffer descriptor. Buffer indexes into
// Model.Buffers; buffer 0 is the conventional empty sentinel.
type Tensor struct {
	Shape          []int32
	Type           TensorType
	Buffer         uint32
	Name           string
	Quantization   *Quantization
	IsVariable     bool
	ShapeSignature []int32
}

// Quantization carries the scale/zero-point pairs of a quantized
// tensor. Layer-level quantization has exactly one pair and
// QuantizedDimension 0; per-channel quantization carries one pair per
// slice along QuantizedDimension.
type Quantization struct {
	Min                []float32
	Max                []float32
	Scale              []float32
	ZeroPoint          []int64
	QuantizedDimension int32
}

// Operator is a graph node. Inputs and Outputs index into the owning
// subgraph's tensor list; -1 marks an absent optional input.
type Operator struct {
	OpcodeIndex            uint32
	Inputs                 []int32
	Outputs                []int32
	Options                BuiltinOptions
	CustomOptions          []byte
	CustomOptionsFormat    int8
	MutatingVariableInputs []bool
	Intermediates          []int32
}

// Buffer is raw little-endian tensor storage.
type Buffer struct {
	Data []byte
}

// Metadata is a named reference to a metadata buffer.
type Metadata struct {
	Name   string
	Buffer uint32
}
