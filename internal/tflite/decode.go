package tflite

import (
	"fmt"
	"os"
	"strings"

	flatbuffers "github.com/google/flatbuffers/go"
)

const fileIdentifier = "TFL3"

// Open reads and decodes a model file.
func Open(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}

// Decode unpacks a serialized model into a mutable object tree. All
// returned data is copied out of buf, so buf may be discarded or
// reused afterwards.
func Decode(buf []byte) (*Model, error) {
	if len(buf) < 8 {
		return nil, ErrTruncated
	}
	if string(buf[4:8]) != fileIdentifier {
		return nil, ErrInvalidIdentifier
	}
	root := flatbuffers.Table{Bytes: buf, Pos: flatbuffers.GetUOffsetT(buf)}
	return decodeModel(root)
}

func decodeModel(t flatbuffers.Table) (*Model, error) {
	if _, ok := field(t, 7); ok {
		return nil, fmt.Errorf("%w: signature_defs", ErrUnsupportedFeature)
	}

	m := &Model{
		Version:        fieldUint32(t, 0),
		Description:    fieldString(t, 3),
		MetadataBuffer: fieldInt32s(t, 5),
	}

	if codes := fieldTables(t, 1); codes != nil {
		m.OperatorCodes = make([]*OperatorCode, len(codes))
		for i, ct := range codes {
			m.OperatorCodes[i] = decodeOperatorCode(ct)
		}
	}

	if graphs := fieldTables(t, 2); graphs != nil {
		m.SubGraphs = make([]*SubGraph, len(graphs))
		for i, gt := range graphs {
			sg, err := decodeSubGraph(gt)
			if err != nil {
				return nil, fmt.Errorf("subgraph %d: %w", i, err)
			}
			m.SubGraphs[i] = sg
		}
	}

	if bufs := fieldTables(t, 4); bufs != nil {
		m.Buffers = make([]*Buffer, len(bufs))
		for i, bt := range bufs {
			b, err := decodeBuffer(bt)
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			m.Buffers[i] = b
		}
	}

	if metas := fieldTables(t, 6); metas != nil {
		m.Metadata = make([]*Metadata, len(metas))
		for i, mt := range metas {
			m.Metadata[i] = &Metadata{
				Name:   fieldString(mt, 0),
				Buffer: fieldUint32(mt, 1),
			}
		}
	}

	return m, nil
}

func decodeOperatorCode(t flatbuffers.Table) *OperatorCode {
	c := &OperatorCode{
		DeprecatedBuiltinCode: fieldInt8(t, 0),
		CustomCode:            fieldString(t, 1),
		Version:               1,
		BuiltinCode:           BuiltinOperator(fieldInt32(t, 3)),
	}
	if o, ok := field(t, 2); ok {
		c.Version = t.GetInt32(o + t.Pos)
	}
	return c
}

func decodeSubGraph(t flatbuffers.Table) (*SubGraph, error) {
	sg := &SubGraph{
		Inputs:  fieldInt32s(t, 1),
		Outputs: fieldInt32s(t, 2),
		Name:    fieldString(t, 4),
	}

	if tensors := fieldTables(t, 0); tensors != nil {
		sg.Tensors = make([]*Tensor, len(tensors))
		for i, tt := range tensors {
			tensor, err := decodeTensor(tt)
			if err != nil {
				return nil, fmt.Errorf("tensor %d: %w", i, err)
			}
			sg.Tensors[i] = tensor
		}
	}

	if ops := fieldTables(t, 3); ops != nil {
		sg.Operators = make([]*Operator, len(ops))
		for i, ot := range ops {
			op, err := decodeOperator(ot)
			if err != nil {
				return nil, fmt.Errorf("operator %d: %w", i, err)
			}
			sg.Operators[i] = op
		}
	}

	return sg, nil
}

// decodeBuffer rejects buffers whose data lives outside the flatbuffer
// (non-zero offset/size fields). Encode cannot reproduce them and the
// referenced bytes are not part of buf.
func decodeBuffer(t flatbuffers.Table) (*Buffer, error) {
	if fieldUint64(t, 1) != 0 || fieldUint64(t, 2) != 0 {
		return nil, fmt.Errorf("%w: buffer data stored outside the model", ErrUnsupportedFeature)
	}
	return &Buffer{Data: fieldBytes(t, 0)}, nil
}

func decodeTensor(t flatbuffers.Table) (*Tensor, error) {
	tensor := &Tensor{
		Shape:          fieldInt32s(t, 0),
		Type:           TensorType(fieldInt8(t, 1)),
		Buffer:         fieldUint32(t, 2),
		Name:           fieldString(t, 3),
		IsVariable:     fieldBool(t, 5),
		ShapeSignature: fieldInt32s(t, 7),
	}
	if _, ok := field(t, 6); ok {
		return nil, fmt.Errorf("tensor %q: %w: sparsity", tensor.Name, ErrUnsupportedFeature)
	}
	if qt, ok := fieldTable(t, 4); ok {
		q, err := decodeQuantization(qt)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", tensor.Name, err)
		}
		tensor.Quantization = q
	}
	return tensor, nil
}

func decodeQuantization(t flatbuffers.Table) (*Quantization, error) {
	if details := fieldByte(t, 4); details != 0 {
		return nil, fmt.Errorf("%w: quantization details type %d", ErrUnsupportedFeature, details)
	}
	return &Quantization{
		Min:                fieldFloat32s(t, 0),
		Max:                fieldFloat32s(t, 1),
		Scale:              fieldFloat32s(t, 2),
		ZeroPoint:          fieldInt64s(t, 3),
		QuantizedDimension: fieldInt32(t, 6),
	}, nil
}

func decodeOperator(t flatbuffers.Table) (*Operator, error) {
	op := &Operator{
		OpcodeIndex:            fieldUint32(t, 0),
		Inputs:                 fieldInt32s(t, 1),
		Outputs:                fieldInt32s(t, 2),
		CustomOptions:          fieldBytes(t, 5),
		CustomOptionsFormat:    fieldInt8(t, 6),
		MutatingVariableInputs: fieldBools(t, 7),
		Intermediates:          fieldInt32s(t, 8),
	}

	code := optionsType(fieldByte(t, 3))
	if o, ok := field(t, 4); ok && code != optionsNone {
		var ut flatbuffers.Table
		t.Union(&ut, o)
		opts, err := decodeOptions(code, ut)
		if err != nil {
			return nil, err
		}
		op.Options = opts
	}

	return op, nil
}

func decodeOptions(code optionsType, t flatbuffers.Table) (BuiltinOptions, error) {
	switch code {
	case optionsFullyConnected:
		return &FullyConnectedOptions{
			FusedActivation:          ActivationFunction(fieldInt8(t, 0)),
			WeightsFormat:            fieldInt8(t, 1),
			KeepNumDims:              fieldBool(t, 2),
			AsymmetricQuantizeInputs: fieldBool(t, 3),
		}, nil
	case optionsSoftmax:
		return &SoftmaxOptions{Beta: fieldFloat32(t, 0)}, nil
	case optionsReshape:
		return &ReshapeOptions{NewShape: fieldInt32s(t, 0)}, nil
	case optionsDequantize:
		return &DequantizeOptions{}, nil
	case optionsQuantize:
		return &QuantizeOptions{}, nil
	case optionsUnidirectionalSequenceLSTM:
		return &UnidirectionalSequenceLSTMOptions{
			FusedActivation:          ActivationFunction(fieldInt8(t, 0)),
			CellClip:                 fieldFloat32(t, 1),
			ProjClip:                 fieldFloat32(t, 2),
			TimeMajor:                fieldBool(t, 3),
			AsymmetricQuantizeInputs: fieldBool(t, 4),
		}, nil
	default:
		return nil, fmt.Errorf("%w: union type %d", ErrUnsupportedOptions, code)
	}
}

// Table field accessors. Slot numbers are the schema field ids; the
// vtable offset of field id n is 4 + 2n.

func field(t flatbuffers.Table, slot int) (flatbuffers.UOffsetT, bool) {
	o := flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
	return o, o != 0
}

func fieldTable(t flatbuffers.Table, slot int) (flatbuffers.Table, bool) {
	o, ok := field(t, slot)
	if !ok {
		return flatbuffers.Table{}, false
	}
	return flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(o + t.Pos)}, true
}

func fieldTables(t flatbuffers.Table, slot int) []flatbuffers.Table {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	n := t.VectorLen(o)
	vec := t.Vector(o)
	out := make([]flatbuffers.Table, n)
	for j := range out {
		pos := t.Indirect(vec + flatbuffers.UOffsetT(j)*flatbuffers.SizeUOffsetT)
		out[j] = flatbuffers.Table{Bytes: t.Bytes, Pos: pos}
	}
	return out
}

func fieldUint32(t flatbuffers.Table, slot int) uint32 {
	if o, ok := field(t, slot); ok {
		return t.GetUint32(o + t.Pos)
	}
	return 0
}

func fieldUint64(t flatbuffers.Table, slot int) uint64 {
	if o, ok := field(t, slot); ok {
		return t.GetUint64(o + t.Pos)
	}
	return 0
}

func fieldInt32(t flatbuffers.Table, slot int) int32 {
	if o, ok := field(t, slot); ok {
		return t.GetInt32(o + t.Pos)
	}
	return 0
}

func fieldInt8(t flatbuffers.Table, slot int) int8 {
	if o, ok := field(t, slot); ok {
		return t.GetInt8(o + t.Pos)
	}
	return 0
}

func fieldByte(t flatbuffers.Table, slot int) byte {
	if o, ok := field(t, slot); ok {
		return t.GetByte(o + t.Pos)
	}
	return 0
}

func fieldBool(t flatbuffers.Table, slot int) bool {
	if o, ok := field(t, slot); ok {
		return t.GetBool(o + t.Pos)
	}
	return false
}

func fieldFloat32(t flatbuffers.Table, slot int) float32 {
	if o, ok := field(t, slot); ok {
		return t.GetFloat32(o + t.Pos)
	}
	return 0
}

func fieldString(t flatbuffers.Table, slot int) string {
	o, ok := field(t, slot)
	if !ok {
		return ""
	}
	return strings.Clone(t.String(o + t.Pos))
}

func fieldBytes(t flatbuffers.Table, slot int) []byte {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	src := t.ByteVector(o + t.Pos)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}

func fieldInt32s(t flatbuffers.Table, slot int) []int32 {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	n := t.VectorLen(o)
	vec := t.Vector(o)
	out := make([]int32, n)
	for j := range out {
		out[j] = t.GetInt32(vec + flatbuffers.UOffsetT(j)*flatbuffers.SizeInt32)
	}
	return out
}

func fieldInt64s(t flatbuffers.Table, slot int) []int64 {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	n := t.VectorLen(o)
	vec := t.Vector(o)
	out := make([]int64, n)
	for j := range out {
		out[j] = t.GetInt64(vec + flatbuffers.UOffsetT(j)*flatbuffers.SizeInt64)
	}
	return out
}

func fieldFloat32s(t flatbuffers.Table, slot int) []float32 {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	n := t.VectorLen(o)
	vec := t.Vector(o)
	out := make([]float32, n)
	for j := range out {
		out[j] = t.GetFloat32(vec + flatbuffers.UOffsetT(j)*flatbuffers.SizeFloat32)
	}
	return out
}

func fieldBools(t flatbuffers.Table, slot int) []bool {
	o, ok := field(t, slot)
	if !ok {
		return nil
	}
	n := t.VectorLen(o)
	vec := t.Vector(o)
	out := make([]bool, n)
	for j := range out {
		out[j] = t.GetBool(vec + flatbuffers.UOffsetT(j))
	}
	return out
}
