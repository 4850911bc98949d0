// Package requant converts an int8-quantized TFLite model to int16
// activations and int64 biases in place, preserving the real-valued
// meaning of every tensor. Weights keep their int8 storage; only
// quantization metadata and bias buffers are rewritten.
package requant

import (
	"fmt"

	"github.com/samcharles93/requant/internal/logger"
	"github.com/samcharles93/requant/internal/tflite"
)

// Converter rewrites one model. It borrows the model for the duration
// of Convert and must not be used concurrently.
type Converter struct {
	model *tflite.Model
	log   logger.Logger
}

func New(model *tflite.Model, log logger.Logger) *Converter {
	return &Converter{model: model, log: log}
}

// Convert walks every operator of every subgraph and applies the
// strategy for its kind. Any error leaves the model partially mutated;
// callers must discard it on failure.
func (c *Converter) Convert() error {
	for si, sg := range c.model.SubGraphs {
		for oi, op := range sg.Operators {
			if int(op.OpcodeIndex) >= len(c.model.OperatorCodes) {
				return fmt.Errorf("subgraph %d operator %d: opcode index %d out of range", si, oi, op.OpcodeIndex)
			}
			code := c.model.OperatorCodes[op.OpcodeIndex].Code()

			var err error
			switch code {
			case tflite.OpFullyConnected:
				err = c.requantizeFullyConnected(sg, op)
			case tflite.OpUnidirectionalSequenceLSTM:
				err = c.requantizeLSTM(sg, op)
			case tflite.OpSoftmax:
				err = c.requantizeSoftmax(sg, op)
			default:
				err = fmt.Errorf("%w: %s", ErrUnsupportedOperator, code)
			}
			if err != nil {
				return fmt.Errorf("subgraph %d operator %d (%s): %w", si, oi, code, err)
			}
		}
	}
	return nil
}
