package requant

import (
	"fmt"
	"math"

	"github.com/samcharles93/requant/internal/tflite"
)

// int8 bounds used when reconstructing the real range of an activation.
// The upper bound is widened from 127 to 128 to compensate the range
// precision lost when collapsing to a symmetric scheme.
const (
	minInt8 = -128
	maxInt8 = 128
)

// maxInt16Narrow is the symmetric narrow-range int16 magnitude bound
// (-min == max, so 32767 rather than 32768).
const maxInt16Narrow = 32767

// layerQuantization validates that t carries usable layer-level
// quantization parameters and returns them.
func layerQuantization(t *tflite.Tensor) (*tflite.Quantization, error) {
	q := t.Quantization
	if q == nil || len(q.Scale) == 0 || len(q.ZeroPoint) == 0 {
		return nil, fmt.Errorf("tensor %q has no quantization parameters", t.Name)
	}
	if q.QuantizedDimension != 0 {
		return nil, fmt.Errorf("%w: tensor %q has quantized dimension %d", ErrPerChannel, t.Name, q.QuantizedDimension)
	}
	return q, nil
}

// changeQuantization8To16 replaces t's asymmetric int8 parameters with
// symmetric int16 parameters covering the same real range:
//
//	rmax = scale*(128 - zeroPoint), rmin = scale*(-128 - zeroPoint)
//	scale16 = max(|rmax|, |rmin|) / 32767, zeroPoint16 = 0
func changeQuantization8To16(t *tflite.Tensor) error {
	q, err := layerQuantization(t)
	if err != nil {
		return err
	}

	scale := float64(q.Scale[0])
	zero := float64(q.ZeroPoint[0])

	rmax := scale * (maxInt8 - zero)
	rmin := scale * (minInt8 - zero)
	scale16 := math.Max(math.Abs(rmax), math.Abs(rmin)) / maxInt16Narrow

	q.Scale = []float32{float32(scale16)}
	q.ZeroPoint = []int64{0}
	return nil
}

// changeActivation8To16 promotes an int8 activation tensor to int16.
// Tensors of any other type are left untouched, which makes the
// promotion idempotent.
func (c *Converter) changeActivation8To16(t *tflite.Tensor) error {
	if t.Type != tflite.TensorInt8 {
		return nil
	}
	if err := changeQuantization8To16(t); err != nil {
		return err
	}
	t.Type = tflite.TensorInt16
	c.log.Info("retyped activation tensor", "tensor", t.Name, "from", "int8", "to", "int16")
	return nil
}
