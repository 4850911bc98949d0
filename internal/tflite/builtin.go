package tflite

import "fmt"

// BuiltinOperator identifies an operator kind. Codes are fixed by the
// TFLite schema; only the ones this tool cares about are named.
type BuiltinOperator int32

const (
	OpDequantize                 BuiltinOperator = 6
	OpFullyConnected             BuiltinOperator = 9
	OpReshape                    BuiltinOperator = 22
	OpSoftmax                    BuiltinOperator = 25
	OpUnidirectionalSequenceLSTM BuiltinOperator = 44
	OpQuantize                   BuiltinOperator = 114
)

func (op BuiltinOperator) String() string {
	switch op {
	case OpDequantize:
		return "DEQUANTIZE"
	case OpFullyConnected:
		return "FULLY_CONNECTED"
	case OpReshape:
		return "RESHAPE"
	case OpSoftmax:
		return "SOFTMAX"
	case OpUnidirectionalSequenceLSTM:
		return "UNIDIRECTIONAL_SEQUENCE_LSTM"
	case OpQuantize:
		return "QUANTIZE"
	default:
		return fmt.Sprintf("BUILTIN_%d", int32(op))
	}
}

// ActivationFunction is a fused activation attached to an operator's
// builtin options.
type ActivationFunction int8

const (
	ActivationNone ActivationFunction = iota
	ActivationRelu
	ActivationReluN1To1
	ActivationRelu6
	ActivationTanh
	ActivationSignBit
)

func (a ActivationFunction) String() string {
	switch a {
	case ActivationNone:
		return "NONE"
	case ActivationRelu:
		return "RELU"
	case ActivationReluN1To1:
		return "RELU_N1_TO_1"
	case ActivationRelu6:
		return "RELU6"
	case ActivationTanh:
		return "TANH"
	case ActivationSignBit:
		return "SIGN_BIT"
	default:
		return fmt.Sprintf("ACTIVATION_%d", int8(a))
	}
}
