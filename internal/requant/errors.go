package requant

import "errors"

var (
	// ErrPerChannel marks a tensor that carries per-channel (per-axis)
	// quantization parameters. Only layer-level quantization is
	// supported; proceeding would silently change the model's meaning,
	// so the whole conversion aborts.
	ErrPerChannel = errors.New("per-channel quantization is not supported")

	// ErrUnsupportedOperator marks an operator kind this converter has
	// no strategy for. A partially converted model is unusable, so the
	// conversion aborts rather than skipping the operator.
	ErrUnsupportedOperator = errors.New("operator is not supported")
)
