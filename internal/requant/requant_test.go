package requant

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"

	"github.com/samcharles93/requant/internal/logger"
	"github.com/samcharles93/requant/internal/tflite"
)

func testLogger() logger.Logger {
	return logger.New(slog.NewTextHandler(io.Discard, nil))
}

func int8Tensor(name string, scale float32, zeroPoint int64) *tflite.Tensor {
	return &tflite.Tensor{
		Name: name,
		Type: tflite.TensorInt8,
		Quantization: &tflite.Quantization{
			Scale:     []float32{scale},
			ZeroPoint: []int64{zeroPoint},
		},
	}
}

func int32BiasTensor(name string, scale float32, buffer uint32) *tflite.Tensor {
	t := int8Tensor(name, scale, 0)
	t.Type = tflite.TensorInt32
	t.Buffer = buffer
	return t
}

func int32Buffer(vals ...int32) *tflite.Buffer {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return &tflite.Buffer{Data: data}
}

func int64BufferValues(t *testing.T, buf *tflite.Buffer) []int64 {
	t.Helper()
	if len(buf.Data)%8 != 0 {
		t.Fatalf("buffer length %d is not a whole number of int64 values", len(buf.Data))
	}
	out := make([]int64, len(buf.Data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(buf.Data[i*8:]))
	}
	return out
}

// fcModel builds a single fully-connected operator over four tensors:
// input, weight, bias (optional) and output.
func fcModel(withBias bool) *tflite.Model {
	biasIndex := int32(-1)
	if withBias {
		biasIndex = 2
	}
	return &tflite.Model{
		Version: 3,
		OperatorCodes: []*tflite.OperatorCode{
			{Version: 1, BuiltinCode: tflite.OpFullyConnected},
		},
		Buffers: []*tflite.Buffer{
			{},
			int32Buffer(5, -5),
		},
		SubGraphs: []*tflite.SubGraph{
			{
				Tensors: []*tflite.Tensor{
					int8Tensor("input", 1.0, 0),
					int8Tensor("weight", 0.02, 0),
					int32BiasTensor("bias", 0.05, 1),
					int8Tensor("output", 0.125, -3),
				},
				Operators: []*tflite.Operator{
					{
						OpcodeIndex: 0,
						Inputs:      []int32{0, 1, biasIndex},
						Outputs:     []int32{3},
					},
				},
			},
		},
	}
}

func TestActivationPromotion(t *testing.T) {
	tensor := int8Tensor("act", 0.5, 10)
	c := New(&tflite.Model{}, testLogger())

	if err := c.changeActivation8To16(tensor); err != nil {
		t.Fatalf("changeActivation8To16: %v", err)
	}
	if tensor.Type != tflite.TensorInt16 {
		t.Errorf("type = %v, want int16", tensor.Type)
	}
	// rmin = 0.5*(-128-10) = -69 dominates; the symmetric scale is
	// 69/32767, computed in float64 as the conversion does.
	wantScale := float32(float64(69) / float64(32767))
	if got := tensor.Quantization.Scale[0]; got != wantScale {
		t.Errorf("scale = %v, want %v", got, wantScale)
	}
	if got := tensor.Quantization.ZeroPoint[0]; got != 0 {
		t.Errorf("zero point = %v, want 0", got)
	}
}

func TestActivationPromotionIdempotent(t *testing.T) {
	tensor := int8Tensor("act", 0.5, 10)
	c := New(&tflite.Model{}, testLogger())

	if err := c.changeActivation8To16(tensor); err != nil {
		t.Fatalf("first promotion: %v", err)
	}
	scale := tensor.Quantization.Scale[0]

	if err := c.changeActivation8To16(tensor); err != nil {
		t.Fatalf("second promotion: %v", err)
	}
	if tensor.Type != tflite.TensorInt16 {
		t.Errorf("type = %v, want int16", tensor.Type)
	}
	if tensor.Quantization.Scale[0] != scale {
		t.Errorf("second promotion changed scale from %v to %v", scale, tensor.Quantization.Scale[0])
	}
}

func TestActivationPromotionRejectsPerChannel(t *testing.T) {
	tensor := int8Tensor("act", 0.5, 10)
	tensor.Quantization.QuantizedDimension = 1
	c := New(&tflite.Model{}, testLogger())

	err := c.changeActivation8To16(tensor)
	if !errors.Is(err, ErrPerChannel) {
		t.Fatalf("got %v, want ErrPerChannel", err)
	}
	if tensor.Type != tflite.TensorInt8 {
		t.Errorf("failed promotion mutated type to %v", tensor.Type)
	}
	if tensor.Quantization.Scale[0] != 0.5 || tensor.Quantization.ZeroPoint[0] != 10 {
		t.Error("failed promotion mutated quantization parameters")
	}
}

func TestFullyConnectedWithBias(t *testing.T) {
	m := fcModel(true)
	if err := New(m, testLogger()).Convert(); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	sg := m.SubGraphs[0]
	input, weight, bias, output := sg.Tensors[0], sg.Tensors[1], sg.Tensors[2], sg.Tensors[3]

	if input.Type != tflite.TensorInt16 || output.Type != tflite.TensorInt16 {
		t.Errorf("activations = %v/%v, want int16/int16", input.Type, output.Type)
	}
	if weight.Type != tflite.TensorInt8 {
		t.Errorf("weight retyped to %v, must stay int8", weight.Type)
	}
	if weight.Quantization.Scale[0] != 0.02 {
		t.Errorf("weight scale changed to %v", weight.Quantization.Scale[0])
	}

	if bias.Type != tflite.TensorInt64 {
		t.Errorf("bias type = %v, want int64", bias.Type)
	}
	// Promoted input scale is 128*1.0/32767; derived bias scale is the
	// product of the promoted input scale and the weight scale.
	inputScale16 := float32(float64(128) / float64(32767))
	wantScale := float32(float64(inputScale16) * float64(float32(0.02)))
	if got := bias.Quantization.Scale[0]; got != wantScale {
		t.Errorf("bias scale = %v, want %v", got, wantScale)
	}
	if bias.Quantization.ZeroPoint[0] != 0 {
		t.Errorf("bias zero point = %v, want 0", bias.Quantization.ZeroPoint[0])
	}

	// Original bias [5, -5] at scale 0.05 dequantizes to [0.25, -0.25];
	// requantized at the derived scale that stores as
	// round(0.25 * 32767 / (128 * 0.02)) = round(3199.902) = 3200.
	stored := int64BufferValues(t, m.Buffers[1])
	wantVal := int64(3200)
	if !reflect.DeepEqual(stored, []int64{wantVal, -wantVal}) {
		t.Errorf("bias buffer = %v, want [%d, %d]", stored, wantVal, -wantVal)
	}
}

func TestFullyConnectedAbsentBias(t *testing.T) {
	m := fcModel(false)
	if err := New(m, testLogger()).Convert(); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	sg := m.SubGraphs[0]
	if sg.Tensors[0].Type != tflite.TensorInt16 || sg.Tensors[3].Type != tflite.TensorInt16 {
		t.Error("activations not promoted")
	}
	bias := sg.Tensors[2]
	if bias.Type != tflite.TensorInt32 {
		t.Errorf("absent bias slot still converted bias tensor to %v", bias.Type)
	}
	if got := int32(binary.LittleEndian.Uint32(m.Buffers[1].Data)); got != 5 {
		t.Errorf("absent bias slot rewrote buffer, first value %d", got)
	}
}

func TestBiasDerivedScale(t *testing.T) {
	m := &tflite.Model{
		Buffers: []*tflite.Buffer{{}, int32Buffer(8, -4)},
	}
	c := New(m, testLogger())

	input := int8Tensor("input", 0.5, 0)
	weight := int8Tensor("weight", 0.25, 0)
	bias := int32BiasTensor("bias", 0.5, 1)

	if err := c.setBiasTypeInt64(input, weight, bias); err != nil {
		t.Fatalf("setBiasTypeInt64: %v", err)
	}

	if got := bias.Quantization.Scale[0]; got != 0.125 {
		t.Errorf("derived scale = %v, want 0.125", got)
	}
	if bias.Quantization.ZeroPoint[0] != 0 {
		t.Errorf("zero point = %v, want 0", bias.Quantization.ZeroPoint[0])
	}
	// [8, -4] at scale 0.5 dequantizes to [4, -2]; at scale 0.125 that
	// stores as [32, -16].
	if got := int64BufferValues(t, m.Buffers[1]); !reflect.DeepEqual(got, []int64{32, -16}) {
		t.Errorf("bias buffer = %v, want [32 -16]", got)
	}
}

func TestBiasOverflowClampsAndContinues(t *testing.T) {
	m := &tflite.Model{
		Buffers: []*tflite.Buffer{{}, int32Buffer(1000, -1000)},
	}
	c := New(m, testLogger())

	// Derived scale 1e-20 pushes the requantized values to ±1e23, far
	// past the int64 range; the rewrite must clamp and carry on rather
	// than fail or wrap.
	input := int8Tensor("input", 1e-10, 0)
	weight := int8Tensor("weight", 1e-10, 0)
	bias := int32BiasTensor("bias", 1.0, 1)

	if err := c.setBiasTypeInt64(input, weight, bias); err != nil {
		t.Fatalf("setBiasTypeInt64: %v", err)
	}
	if bias.Type != tflite.TensorInt64 {
		t.Errorf("bias type = %v, want int64", bias.Type)
	}
	got := int64BufferValues(t, m.Buffers[1])
	want := []int64{math.MaxInt64, math.MinInt64}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bias buffer = %v, want %v", got, want)
	}
}

func TestLSTMConversion(t *testing.T) {
	weightScales := []float32{0.25, 0.5, 0.125, 0.0625}

	// Promoted input scale: input is int8 scale 0.5, zero point 0, so
	// the symmetric int16 scale is 64/32767.
	inputScale16 := float32(float64(64) / float64(32767))
	derived := make([]float32, 4)
	for i, ws := range weightScales {
		derived[i] = float32(float64(inputScale16) * float64(ws))
	}

	tensors := []*tflite.Tensor{
		int8Tensor("input", 0.5, 0),
	}
	for _, ws := range weightScales {
		tensors = append(tensors, int8Tensor("input_weight", ws, 0))
	}
	for range 4 {
		tensors = append(tensors, int8Tensor("recurrent_weight", 0.5, 0))
	}
	buffers := []*tflite.Buffer{{}}
	for i := range 4 {
		// Stored at the scale the conversion will derive, so the
		// quantized values survive the rewrite unchanged.
		bias := int32BiasTensor("gate_bias", derived[i], uint32(i+1))
		tensors = append(tensors, bias)
		buffers = append(buffers, int32Buffer(100, -50))
	}
	tensors = append(tensors,
		int8Tensor("hidden_state", 0.5, -2),
		int8Tensor("output", 0.5, -2),
	)

	m := &tflite.Model{
		Version: 3,
		OperatorCodes: []*tflite.OperatorCode{
			{Version: 1, BuiltinCode: tflite.OpUnidirectionalSequenceLSTM},
		},
		Buffers: buffers,
		SubGraphs: []*tflite.SubGraph{
			{
				Tensors: tensors,
				Operators: []*tflite.Operator{
					{
						// Positions: 0 input, 1-4 input weights, 5-8
						// recurrent weights, 12-15 gate biases, 18
						// hidden state; the rest are absent.
						Inputs:  []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, -1, -1, -1, 9, 10, 11, 12, -1, -1, 13, -1},
						Outputs: []int32{14},
					},
				},
			},
		},
	}

	if err := New(m, testLogger()).Convert(); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	sg := m.SubGraphs[0]
	for _, idx := range []int{0, 13, 14} {
		if sg.Tensors[idx].Type != tflite.TensorInt16 {
			t.Errorf("tensor %d (%s) type = %v, want int16", idx, sg.Tensors[idx].Name, sg.Tensors[idx].Type)
		}
	}
	for idx := 5; idx <= 8; idx++ {
		w := sg.Tensors[idx]
		if w.Type != tflite.TensorInt8 || w.Quantization.Scale[0] != 0.5 {
			t.Errorf("recurrent weight %d modified: type=%v scale=%v", idx, w.Type, w.Quantization.Scale[0])
		}
	}
	for i := range 4 {
		bias := sg.Tensors[9+i]
		if bias.Type != tflite.TensorInt64 {
			t.Errorf("gate bias %d type = %v, want int64", i, bias.Type)
		}
		if got := bias.Quantization.Scale[0]; got != derived[i] {
			t.Errorf("gate bias %d scale = %v, want %v", i, got, derived[i])
		}
		if got := int64BufferValues(t, m.Buffers[i+1]); !reflect.DeepEqual(got, []int64{100, -50}) {
			t.Errorf("gate bias %d buffer = %v, want [100 -50]", i, got)
		}
	}
}

func TestSoftmaxFixedOutputParameters(t *testing.T) {
	m := &tflite.Model{
		Version: 3,
		OperatorCodes: []*tflite.OperatorCode{
			{Version: 2, BuiltinCode: tflite.OpSoftmax},
		},
		Buffers: []*tflite.Buffer{{}},
		SubGraphs: []*tflite.SubGraph{
			{
				Tensors: []*tflite.Tensor{
					int8Tensor("logits", 0.25, 4),
					int8Tensor("probs", 0.00390625, -128),
				},
				Operators: []*tflite.Operator{
					{Inputs: []int32{0}, Outputs: []int32{1}},
				},
			},
		},
	}
	if err := New(m, testLogger()).Convert(); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	out := m.SubGraphs[0].Tensors[1]
	if out.Type != tflite.TensorInt16 {
		t.Errorf("output type = %v, want int16", out.Type)
	}
	if got := out.Quantization.Scale[0]; got != 1.0/32768.0 {
		t.Errorf("output scale = %v, want 1/32768", got)
	}
	if out.Quantization.ZeroPoint[0] != 0 {
		t.Errorf("output zero point = %v, want 0", out.Quantization.ZeroPoint[0])
	}
}

func TestUnsupportedOperator(t *testing.T) {
	m := &tflite.Model{
		OperatorCodes: []*tflite.OperatorCode{
			{Version: 1, BuiltinCode: tflite.OpReshape},
		},
		SubGraphs: []*tflite.SubGraph{
			{
				Tensors:   []*tflite.Tensor{int8Tensor("x", 1, 0)},
				Operators: []*tflite.Operator{{Inputs: []int32{0}, Outputs: []int32{0}}},
			},
		},
	}
	if err := New(m, testLogger()).Convert(); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("got %v, want ErrUnsupportedOperator", err)
	}
}

func TestPerChannelAbortsConversion(t *testing.T) {
	m := fcModel(true)
	m.SubGraphs[0].Tensors[0].Quantization.QuantizedDimension = 3
	if err := New(m, testLogger()).Convert(); !errors.Is(err, ErrPerChannel) {
		t.Errorf("got %v, want ErrPerChannel", err)
	}
}
