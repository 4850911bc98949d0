package requant

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/requant/internal/tflite"
	"github.com/samcharles93/requant/pkg/quant"
)

// setBiasTypeInt64 re-expresses an int32 bias tensor as int64. The new
// scale is derived from the tensors the bias is accumulated against:
// bias scale = input scale × weight scale, zero point 0. It must run
// after the input activation has been promoted, since it reads the
// already-converted input scale.
func (c *Converter) setBiasTypeInt64(input, weight, bias *tflite.Tensor) error {
	q, err := layerQuantization(bias)
	if err != nil {
		return err
	}
	inputQ, err := layerQuantization(input)
	if err != nil {
		return err
	}
	weightQ, err := layerQuantization(weight)
	if err != nil {
		return err
	}

	if int(bias.Buffer) >= len(c.model.Buffers) {
		return fmt.Errorf("tensor %q: buffer index %d out of range", bias.Name, bias.Buffer)
	}
	buf := c.model.Buffers[bias.Buffer]
	if len(buf.Data)%4 != 0 {
		return fmt.Errorf("tensor %q: buffer length %d is not a whole number of int32 values", bias.Name, len(buf.Data))
	}

	stored := make([]float64, len(buf.Data)/4)
	for i := range stored {
		stored[i] = float64(int32(binary.LittleEndian.Uint32(buf.Data[i*4:])))
	}
	dequantized := quant.Dequantize(stored, float64(q.Scale[0]), q.ZeroPoint[0])

	newScale := float64(inputQ.Scale[0]) * float64(weightQ.Scale[0])
	vals, clipped := quant.Quantize(dequantized, newScale, 0, 64)
	if clipped {
		c.log.Warn("integer overflow while requantizing bias, values clamped", "tensor", bias.Name)
	}

	data := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(toInt64(v)))
	}
	buf.Data = data

	bias.Type = tflite.TensorInt64
	q.Scale = []float32{float32(newScale)}
	q.ZeroPoint = []int64{0}
	c.log.Info("retyped bias tensor", "tensor", bias.Name, "from", "int32", "to", "int64")
	return nil
}

// toInt64 converts an integer-valued float64 that has already been
// clamped to the int64 range. The clamp bound rounds up to 2^63 in
// float64, which would wrap on a plain conversion.
func toInt64(v float64) int64 {
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
