package quant

import (
	"math"
	"reflect"
	"testing"
)

func TestRange(t *testing.T) {
	cases := []struct {
		bits     int
		min, max float64
	}{
		{8, -128, 127},
		{16, -32768, 32767},
		{32, -2147483648, 2147483647},
	}
	for _, c := range cases {
		min, max := Range(c.bits)
		if min != c.min || max != c.max {
			t.Errorf("Range(%d) = (%v, %v), want (%v, %v)", c.bits, min, max, c.min, c.max)
		}
	}
}

func TestQuantizeSaturates(t *testing.T) {
	vals, clipped := Quantize([]float64{1000}, 1.0, 0, 8)
	if !reflect.DeepEqual(vals, []float64{127}) {
		t.Errorf("got %v, want [127]", vals)
	}
	if !clipped {
		t.Error("expected overflow to be reported")
	}

	vals, clipped = Quantize([]float64{-1000}, 1.0, 0, 8)
	if !reflect.DeepEqual(vals, []float64{-128}) {
		t.Errorf("got %v, want [-128]", vals)
	}
	if !clipped {
		t.Error("expected overflow to be reported")
	}
}

func TestQuantizeInRange(t *testing.T) {
	vals, clipped := Quantize([]float64{0.9, -1.4, 0}, 0.5, 3, 8)
	want := []float64{5, 0, 3}
	if !reflect.DeepEqual(vals, want) {
		t.Errorf("got %v, want %v", vals, want)
	}
	if clipped {
		t.Error("no overflow expected")
	}
}

// Quantizing the dequantization of an in-range integer value must give
// back exactly that value.
func TestRoundTripExact(t *testing.T) {
	const (
		scale     = 0.5
		zeroPoint = 10
	)
	for q := -128.0; q <= 127; q++ {
		real := Dequantize([]float64{q}, scale, zeroPoint)
		back, clipped := Quantize(real, scale, zeroPoint, 8)
		if clipped {
			t.Fatalf("q=%v: unexpected overflow", q)
		}
		if back[0] != q {
			t.Fatalf("q=%v: round trip gave %v", q, back[0])
		}
	}
}

// Dequantizing a quantized real value must land within one quantization
// step of the original.
func TestDequantizeWithinOneStep(t *testing.T) {
	const (
		scale     = 0.03
		zeroPoint = -5
	)
	for _, v := range []float64{-3.2, -0.017, 0, 0.25, 1.999, 3.5} {
		q, clipped := Quantize([]float64{v}, scale, zeroPoint, 16)
		if clipped {
			t.Fatalf("v=%v: unexpected overflow", v)
		}
		got := Dequantize(q, scale, zeroPoint)[0]
		if math.Abs(got-v) > scale {
			t.Errorf("v=%v: dequantized to %v, off by more than one step", v, got)
		}
	}
}

func TestClip(t *testing.T) {
	vals := []float64{300, -300, 12}
	if !Clip(vals, 8) {
		t.Error("expected clipping")
	}
	if !reflect.DeepEqual(vals, []float64{127, -128, 12}) {
		t.Errorf("got %v", vals)
	}

	vals = []float64{1, -1}
	if Clip(vals, 8) {
		t.Error("unexpected clipping")
	}
}
