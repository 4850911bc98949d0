// Package quant implements saturating fixed-point quantization arithmetic.
//
// Quantized values are carried as float64 even though they are
// integer-valued: saturation is then an explicit clamp in this package
// instead of whatever overflow behaviour integer conversion happens to
// have on the host.
package quant

import "math"

// Range returns the representable bounds of a signed integer with the
// given bit width, e.g. Range(8) = (-128, 127).
func Range(bitWidth int) (min, max float64) {
	min = -math.Pow(2, float64(bitWidth-1))
	max = math.Pow(2, float64(bitWidth-1)) - 1
	return min, max
}

// Clip saturates vals in place to the signed range of bitWidth and
// reports whether any value was out of range. Out-of-range values are
// clamped to the nearest bound, never wrapped.
func Clip(vals []float64, bitWidth int) bool {
	min, max := Range(bitWidth)
	clipped := false
	for i, v := range vals {
		switch {
		case v < min:
			vals[i] = min
			clipped = true
		case v > max:
			vals[i] = max
			clipped = true
		}
	}
	return clipped
}

// Quantize maps real values into the fixed-point integer domain:
// round(v/scale) + zeroPoint, saturated to the signed bitWidth range.
// Rounding is half away from zero. The returned flag reports whether
// any value saturated; that is survivable precision loss, not an
// error, so surfacing it is left to the caller.
func Quantize(data []float64, scale float64, zeroPoint int64, bitWidth int) ([]float64, bool) {
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = math.Round(v/scale) + float64(zeroPoint)
	}
	clipped := Clip(vals, bitWidth)
	return vals, clipped
}

// Dequantize maps quantized values back to the real domain:
// scale * (q - zeroPoint). It is the exact inverse of Quantize for
// values that did not saturate.
func Dequantize(quantized []float64, scale float64, zeroPoint int64) []float64 {
	vals := make([]float64, len(quantized))
	for i, q := range quantized {
		vals[i] = scale * (q - float64(zeroPoint))
	}
	return vals
}
