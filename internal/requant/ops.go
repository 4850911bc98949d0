package requant

import (
	"fmt"

	"github.com/samcharles93/requant/internal/tflite"
)

// Tensor role positions within each supported operator, fixed by the
// reference kernel implementations.
const (
	fcInput  = 0
	fcWeight = 1
	fcBias   = 2

	lstmInput       = 0
	lstmHiddenState = 18
)

var (
	lstmInputWeights     = [4]int{1, 2, 3, 4}
	lstmRecurrentWeights = [4]int{5, 6, 7, 8}
	lstmGateBiases       = [4]int{12, 13, 14, 15}
)

// absentInput is the sentinel marking an optional operator input that
// is not wired, e.g. a fully-connected layer without a bias.
const absentInput = -1

func operatorTensor(sg *tflite.SubGraph, indices []int32, pos int) (*tflite.Tensor, error) {
	if pos >= len(indices) {
		return nil, fmt.Errorf("operator has no tensor at position %d", pos)
	}
	idx := indices[pos]
	if idx < 0 || int(idx) >= len(sg.Tensors) {
		return nil, fmt.Errorf("tensor index %d at position %d out of range", idx, pos)
	}
	return sg.Tensors[idx], nil
}

// requantizeFullyConnected promotes both activations of a
// fully-connected operator and, when a bias is wired, its bias. The
// weight tensor is never modified.
func (c *Converter) requantizeFullyConnected(sg *tflite.SubGraph, op *tflite.Operator) error {
	input, err := operatorTensor(sg, op.Inputs, fcInput)
	if err != nil {
		return err
	}
	weight, err := operatorTensor(sg, op.Inputs, fcWeight)
	if err != nil {
		return err
	}
	output, err := operatorTensor(sg, op.Outputs, 0)
	if err != nil {
		return err
	}

	if err := c.changeActivation8To16(input); err != nil {
		return err
	}
	if err := c.changeActivation8To16(output); err != nil {
		return err
	}

	if len(op.Inputs) > fcBias && op.Inputs[fcBias] != absentInput {
		bias, err := operatorTensor(sg, op.Inputs, fcBias)
		if err != nil {
			return err
		}
		if err := c.setBiasTypeInt64(input, weight, bias); err != nil {
			return err
		}
	}
	return nil
}

// requantizeLSTM promotes the input, hidden state and output
// activations of a unidirectional sequence LSTM cell, then each of the
// four gate biases keyed off the already-promoted input scale and the
// matching input weight's scale.
func (c *Converter) requantizeLSTM(sg *tflite.SubGraph, op *tflite.Operator) error {
	input, err := operatorTensor(sg, op.Inputs, lstmInput)
	if err != nil {
		return err
	}
	hidden, err := operatorTensor(sg, op.Inputs, lstmHiddenState)
	if err != nil {
		return err
	}
	output, err := operatorTensor(sg, op.Outputs, 0)
	if err != nil {
		return err
	}

	if err := c.changeActivation8To16(input); err != nil {
		return err
	}
	if err := c.changeActivation8To16(hidden); err != nil {
		return err
	}
	if err := c.changeActivation8To16(output); err != nil {
		return err
	}

	for i := range lstmInputWeights {
		weight, err := operatorTensor(sg, op.Inputs, lstmInputWeights[i])
		if err != nil {
			return err
		}
		bias, err := operatorTensor(sg, op.Inputs, lstmGateBiases[i])
		if err != nil {
			return err
		}
		if err := c.setBiasTypeInt64(input, weight, bias); err != nil {
			return err
		}
	}

	// Recurrent weights have no associated biases; they are resolved
	// but deliberately left untouched.
	for _, pos := range lstmRecurrentWeights {
		if _, err := operatorTensor(sg, op.Inputs, pos); err != nil {
			return err
		}
	}
	return nil
}

// requantizeSoftmax promotes the input activation. The output range of
// softmax is [0, 1] by definition, so the int16 output parameters are
// fixed at scale 1/32768, zero point 0 instead of being derived from
// the existing int8 parameters.
func (c *Converter) requantizeSoftmax(sg *tflite.SubGraph, op *tflite.Operator) error {
	input, err := operatorTensor(sg, op.Inputs, 0)
	if err != nil {
		return err
	}
	output, err := operatorTensor(sg, op.Outputs, 0)
	if err != nil {
		return err
	}

	if err := c.changeActivation8To16(input); err != nil {
		return err
	}

	if output.Type == tflite.TensorInt8 {
		q := output.Quantization
		if q == nil {
			q = &tflite.Quantization{}
			output.Quantization = q
		}
		q.Scale = []float32{1.0 / 32768.0}
		q.ZeroPoint = []int64{0}
		output.Type = tflite.TensorInt16
		c.log.Info("retyped activation tensor", "tensor", output.Name, "from", "int8", "to", "int16")
	}
	return nil
}
