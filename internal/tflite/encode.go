package tflite

import (
	"fmt"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Encode serializes the model back to the flatbuffer wire format.
func Encode(m *Model) []byte {
	b := flatbuffers.NewBuilder(1024)
	root := encodeModel(b, m)
	b.FinishWithFileIdentifier(root, []byte(fileIdentifier))
	return b.FinishedBytes()
}

// Save encodes the model and writes it to path.
func Save(path string, m *Model) error {
	if err := os.WriteFile(path, Encode(m), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

func encodeModel(b *flatbuffers.Builder, m *Model) flatbuffers.UOffsetT {
	var codes flatbuffers.UOffsetT
	if m.OperatorCodes != nil {
		offs := make([]flatbuffers.UOffsetT, len(m.OperatorCodes))
		for i, c := range m.OperatorCodes {
			offs[i] = encodeOperatorCode(b, c)
		}
		codes = offsetVector(b, offs)
	}

	var graphs flatbuffers.UOffsetT
	if m.SubGraphs != nil {
		offs := make([]flatbuffers.UOffsetT, len(m.SubGraphs))
		for i, sg := range m.SubGraphs {
			offs[i] = encodeSubGraph(b, sg)
		}
		graphs = offsetVector(b, offs)
	}

	var desc flatbuffers.UOffsetT
	if m.Description != "" {
		desc = b.CreateString(m.Description)
	}

	var bufs flatbuffers.UOffsetT
	if m.Buffers != nil {
		offs := make([]flatbuffers.UOffsetT, len(m.Buffers))
		for i, buf := range m.Buffers {
			offs[i] = encodeBuffer(b, buf)
		}
		bufs = offsetVector(b, offs)
	}

	metaBuf := int32Vector(b, m.MetadataBuffer)

	var metas flatbuffers.UOffsetT
	if m.Metadata != nil {
		offs := make([]flatbuffers.UOffsetT, len(m.Metadata))
		for i, md := range m.Metadata {
			offs[i] = encodeMetadata(b, md)
		}
		metas = offsetVector(b, offs)
	}

	b.StartObject(7)
	b.PrependUint32Slot(0, m.Version, 0)
	b.PrependUOffsetTSlot(1, codes, 0)
	b.PrependUOffsetTSlot(2, graphs, 0)
	b.PrependUOffsetTSlot(3, desc, 0)
	b.PrependUOffsetTSlot(4, bufs, 0)
	b.PrependUOffsetTSlot(5, metaBuf, 0)
	b.PrependUOffsetTSlot(6, metas, 0)
	return b.EndObject()
}

func encodeOperatorCode(b *flatbuffers.Builder, c *OperatorCode) flatbuffers.UOffsetT {
	var custom flatbuffers.UOffsetT
	if c.CustomCode != "" {
		custom = b.CreateString(c.CustomCode)
	}
	b.StartObject(4)
	b.PrependInt8Slot(0, c.DeprecatedBuiltinCode, 0)
	b.PrependUOffsetTSlot(1, custom, 0)
	b.PrependInt32Slot(2, c.Version, 1)
	b.PrependInt32Slot(3, int32(c.BuiltinCode), 0)
	return b.EndObject()
}

func encodeSubGraph(b *flatbuffers.Builder, sg *SubGraph) flatbuffers.UOffsetT {
	var tensors flatbuffers.UOffsetT
	if sg.Tensors != nil {
		offs := make([]flatbuffers.UOffsetT, len(sg.Tensors))
		for i, t := range sg.Tensors {
			offs[i] = encodeTensor(b, t)
		}
		tensors = offsetVector(b, offs)
	}

	inputs := int32Vector(b, sg.Inputs)
	outputs := int32Vector(b, sg.Outputs)

	var ops flatbuffers.UOffsetT
	if sg.Operators != nil {
		offs := make([]flatbuffers.UOffsetT, len(sg.Operators))
		for i, op := range sg.Operators {
			offs[i] = encodeOperator(b, op)
		}
		ops = offsetVector(b, offs)
	}

	var name flatbuffers.UOffsetT
	if sg.Name != "" {
		name = b.CreateString(sg.Name)
	}

	b.StartObject(5)
	b.PrependUOffsetTSlot(0, tensors, 0)
	b.PrependUOffsetTSlot(1, inputs, 0)
	b.PrependUOffsetTSlot(2, outputs, 0)
	b.PrependUOffsetTSlot(3, ops, 0)
	b.PrependUOffsetTSlot(4, name, 0)
	return b.EndObject()
}

func encodeTensor(b *flatbuffers.Builder, t *Tensor) flatbuffers.UOffsetT {
	shape := int32Vector(b, t.Shape)

	var name flatbuffers.UOffsetT
	if t.Name != "" {
		name = b.CreateString(t.Name)
	}

	var q flatbuffers.UOffsetT
	if t.Quantization != nil {
		q = encodeQuantization(b, t.Quantization)
	}

	sig := int32Vector(b, t.ShapeSignature)

	b.StartObject(8)
	b.PrependUOffsetTSlot(0, shape, 0)
	b.PrependInt8Slot(1, int8(t.Type), 0)
	b.PrependUint32Slot(2, t.Buffer, 0)
	b.PrependUOffsetTSlot(3, name, 0)
	b.PrependUOffsetTSlot(4, q, 0)
	b.PrependBoolSlot(5, t.IsVariable, false)
	b.PrependUOffsetTSlot(7, sig, 0)
	return b.EndObject()
}

func encodeQuantization(b *flatbuffers.Builder, q *Quantization) flatbuffers.UOffsetT {
	min := float32Vector(b, q.Min)
	max := float32Vector(b, q.Max)
	scale := float32Vector(b, q.Scale)
	zero := int64Vector(b, q.ZeroPoint)

	b.StartObject(7)
	b.PrependUOffsetTSlot(0, min, 0)
	b.PrependUOffsetTSlot(1, max, 0)
	b.PrependUOffsetTSlot(2, scale, 0)
	b.PrependUOffsetTSlot(3, zero, 0)
	b.PrependInt32Slot(6, q.QuantizedDimension, 0)
	return b.EndObject()
}

func encodeOperator(b *flatbuffers.Builder, op *Operator) flatbuffers.UOffsetT {
	inputs := int32Vector(b, op.Inputs)
	outputs := int32Vector(b, op.Outputs)

	code := optionsNone
	var opts flatbuffers.UOffsetT
	if op.Options != nil {
		code = op.Options.optionsType()
		opts = encodeOptions(b, op.Options)
	}

	var custom flatbuffers.UOffsetT
	if op.CustomOptions != nil {
		custom = b.CreateByteVector(op.CustomOptions)
	}

	mutating := boolVector(b, op.MutatingVariableInputs)
	intermediates := int32Vector(b, op.Intermediates)

	b.StartObject(9)
	b.PrependUint32Slot(0, op.OpcodeIndex, 0)
	b.PrependUOffsetTSlot(1, inputs, 0)
	b.PrependUOffsetTSlot(2, outputs, 0)
	b.PrependByteSlot(3, byte(code), 0)
	b.PrependUOffsetTSlot(4, opts, 0)
	b.PrependUOffsetTSlot(5, custom, 0)
	b.PrependInt8Slot(6, op.CustomOptionsFormat, 0)
	b.PrependUOffsetTSlot(7, mutating, 0)
	b.PrependUOffsetTSlot(8, intermediates, 0)
	return b.EndObject()
}

func encodeOptions(b *flatbuffers.Builder, opts BuiltinOptions) flatbuffers.UOffsetT {
	switch o := opts.(type) {
	case *FullyConnectedOptions:
		b.StartObject(4)
		b.PrependInt8Slot(0, int8(o.FusedActivation), 0)
		b.PrependInt8Slot(1, o.WeightsFormat, 0)
		b.PrependBoolSlot(2, o.KeepNumDims, false)
		b.PrependBoolSlot(3, o.AsymmetricQuantizeInputs, false)
		return b.EndObject()
	case *SoftmaxOptions:
		b.StartObject(1)
		b.PrependFloat32Slot(0, o.Beta, 0)
		return b.EndObject()
	case *ReshapeOptions:
		shape := int32Vector(b, o.NewShape)
		b.StartObject(1)
		b.PrependUOffsetTSlot(0, shape, 0)
		return b.EndObject()
	case *DequantizeOptions, *QuantizeOptions:
		b.StartObject(0)
		return b.EndObject()
	case *UnidirectionalSequenceLSTMOptions:
		b.StartObject(5)
		b.PrependInt8Slot(0, int8(o.FusedActivation), 0)
		b.PrependFloat32Slot(1, o.CellClip, 0)
		b.PrependFloat32Slot(2, o.ProjClip, 0)
		b.PrependBoolSlot(3, o.TimeMajor, false)
		b.PrependBoolSlot(4, o.AsymmetricQuantizeInputs, false)
		return b.EndObject()
	default:
		panic(fmt.Sprintf("tflite: unencodable options %T", opts))
	}
}

func encodeBuffer(b *flatbuffers.Builder, buf *Buffer) flatbuffers.UOffsetT {
	var data flatbuffers.UOffsetT
	if buf.Data != nil {
		data = b.CreateByteVector(buf.Data)
	}
	b.StartObject(1)
	b.PrependUOffsetTSlot(0, data, 0)
	return b.EndObject()
}

func encodeMetadata(b *flatbuffers.Builder, md *Metadata) flatbuffers.UOffsetT {
	var name flatbuffers.UOffsetT
	if md.Name != "" {
		name = b.CreateString(md.Name)
	}
	b.StartObject(2)
	b.PrependUOffsetTSlot(0, name, 0)
	b.PrependUint32Slot(1, md.Buffer, 0)
	return b.EndObject()
}

func offsetVector(b *flatbuffers.Builder, offs []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeUOffsetT, len(offs), flatbuffers.SizeUOffsetT)
	for i := len(offs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offs[i])
	}
	return b.EndVector(len(offs))
}

func int32Vector(b *flatbuffers.Builder, vals []int32) flatbuffers.UOffsetT {
	if vals == nil {
		return 0
	}
	b.StartVector(flatbuffers.SizeInt32, len(vals), flatbuffers.SizeInt32)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependInt32(vals[i])
	}
	return b.EndVector(len(vals))
}

func int64Vector(b *flatbuffers.Builder, vals []int64) flatbuffers.UOffsetT {
	if vals == nil {
		return 0
	}
	b.StartVector(flatbuffers.SizeInt64, len(vals), flatbuffers.SizeInt64)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependInt64(vals[i])
	}
	return b.EndVector(len(vals))
}

func float32Vector(b *flatbuffers.Builder, vals []float32) flatbuffers.UOffsetT {
	if vals == nil {
		return 0
	}
	b.StartVector(flatbuffers.SizeFloat32, len(vals), flatbuffers.SizeFloat32)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependFloat32(vals[i])
	}
	return b.EndVector(len(vals))
}

func boolVector(b *flatbuffers.Builder, vals []bool) flatbuffers.UOffsetT {
	if vals == nil {
		return 0
	}
	b.StartVector(flatbuffers.SizeBool, len(vals), flatbuffers.SizeBool)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependBool(vals[i])
	}
	return b.EndVector(len(vals))
}
