package pack

import (
	gomath "math"

	"github.com/chewxy/math32"
	"github.com/x448/float16"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

const (
	snorm16Max  = 32767
	snorm15Max  = 16383
	snorm15Mask = 0x7FFF
)

// quantize clamps v to [-1,1] and rounds v*scale to the nearest integer.
func quantize(v float32, scale float32) int32 {
	if math32.IsNaN(v) {
		return 0
	}
	v = math32.Max(-1, math32.Min(1, v))
	return int32(gomath.Round(float64(v * scale)))
}

func dequantize(q int32, scale float32) float32 {
	return math32.Max(float32(q)/scale, -1)
}

// PackSnorm16x2 stores two signed-normalized 16-bit values, X in the low half.
func PackSnorm16x2(v math.Vec2) uint32 {
	x := uint16(int16(quantize(v.X, snorm16Max)))
	y := uint16(int16(quantize(v.Y, snorm16Max)))
	return uint32(x) | uint32(y)<<16
}

// UnpackSnorm16x2 reverses PackSnorm16x2.
func UnpackSnorm16x2(w uint32) math.Vec2 {
	return math.Vec2{
		X: dequantize(int32(int16(uint16(w))), snorm16Max),
		Y: dequantize(int32(int16(uint16(w>>16))), snorm16Max),
	}
}

// PackTangent stores an octahedral direction as two 15-bit SNORM values in
// bits 0-14 and 15-29, and the handedness as a 2-bit SNORM in bits 30-31
// (+1 = 0b01, -1 = 0b11). The sign bit of w selects the handedness, so -0
// counts as negative.
func PackTangent(oct math.Vec2, w float32) uint32 {
	x := uint32(quantize(oct.X, snorm15Max)) & snorm15Mask
	y := uint32(quantize(oct.Y, snorm15Max)) & snorm15Mask
	var s uint32 = 0b01
	if gomath.Signbit(float64(w)) {
		s = 0b11
	}
	return x | y<<15 | s<<30
}

// UnpackTangent reverses PackTangent, returning the octahedral coordinate and
// the handedness (+1 or -1).
func UnpackTangent(word uint32) (math.Vec2, float32) {
	x := int32(word<<17) >> 17
	y := int32((word>>15)<<17) >> 17
	s := int32(word) >> 30
	return math.Vec2{X: dequantize(x, snorm15Max), Y: dequantize(y, snorm15Max)}, float32(s)
}

// PackHalf2 stores two IEEE 754 binary16 values, X in the low half.
func PackHalf2(v math.Vec2) uint32 {
	x := float16.Fromfloat32(v.X).Bits()
	y := float16.Fromfloat32(v.Y).Bits()
	return uint32(x) | uint32(y)<<16
}

// UnpackHalf2 reverses PackHalf2.
func UnpackHalf2(w uint32) math.Vec2 {
	return math.Vec2{
		X: float16.Frombits(uint16(w)).Float32(),
		Y: float16.Frombits(uint16(w >> 16)).Float32(),
	}
}
