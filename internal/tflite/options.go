package tflite

// BuiltinOptions is the closed set of operator option tables this tool
// understands. The decoder rejects any other options union member:
// repacking a model would silently drop options it cannot represent,
// which corrupts the operator.
//
// The set is wider than the operators the converter accepts:
// reshape, quantize and dequantize options are decoded so that models
// containing them can still be inspected.
type BuiltinOptions interface {
	optionsType() optionsType
}

// optionsType is the BuiltinOptions union discriminant from the schema.
type optionsType byte

const (
	optionsNone                       optionsType = 0
	optionsFullyConnected             optionsType = 8
	optionsSoftmax                    optionsType = 9
	optionsReshape                    optionsType = 17
	optionsDequantize                 optionsType = 38
	optionsUnidirectionalSequenceLSTM optionsType = 71
	optionsQuantize                   optionsType = 89
)

type FullyConnectedOptions struct {
	FusedActivation          ActivationFunction
	WeightsFormat            int8
	KeepNumDims              bool
	AsymmetricQuantizeInputs bool
}

func (*FullyConnectedOptions) optionsType() optionsType { return optionsFullyConnected }

type SoftmaxOptions struct {
	Beta float32
}

func (*SoftmaxOptions) optionsType() optionsType { return optionsSoftmax }

type ReshapeOptions struct {
	NewShape []int32
}

func (*ReshapeOptions) optionsType() optionsType { return optionsReshape }

type DequantizeOptions struct{}

func (*DequantizeOptions) optionsType() optionsType { return optionsDequantize }

type QuantizeOptions struct{}

func (*QuantizeOptions) optionsType() optionsType { return optionsQuantize }

type UnidirectionalSequenceLSTMOptions struct {
	FusedActivation          ActivationFunction
	CellClip                 float32
	ProjClip                 float32
	TimeMajor                bool
	AsymmetricQuantizeInputs bool
}

func (*UnidirectionalSequenceLSTMOptions) optionsType() optionsType {
	return optionsUnidirectionalSequenceLSTM
}
