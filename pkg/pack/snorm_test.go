package pack

import (
	gomath "math"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

func TestPackSnorm16x2(t *testing.T) {
	tests := []struct {
		name string
		in   math.Vec2
		want uint32
	}{
		{"zero", math.Vec2{}, 0},
		{"one", math.Vec2{X: 1, Y: 1}, 0x7FFF7FFF},
		{"minus one", math.Vec2{X: -1, Y: -1}, 0x80018001},
		{"clamped", math.Vec2{X: 5, Y: -5}, 0x80017FFF},
		{"x low half", math.Vec2{X: 1, Y: 0}, 0x00007FFF},
		{"nan", math.Vec2{X: math32.NaN(), Y: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PackSnorm16x2(tt.in); got != tt.want {
				t.Errorf("PackSnorm16x2(%v) = %#08x, want %#08x", tt.in, got, tt.want)
			}
		})
	}
}

func TestUnpackSnorm16x2Clamp(t *testing.T) {
	// -32768 is not produced by the packer but must still decode to -1.
	got := UnpackSnorm16x2(0x80008000)
	if got.X != -1 || got.Y != -1 {
		t.Errorf("UnpackSnorm16x2(0x80008000) = %v, want (-1,-1)", got)
	}
}

func TestPackTangentRoundTrip(t *testing.T) {
	tests := []struct {
		oct  math.Vec2
		w    float32
		sign float32
	}{
		{math.Vec2{X: 1, Y: 0}, 1, 1},
		{math.Vec2{X: -0.25, Y: 0.75}, -1, -1},
		{math.Vec2{X: -1, Y: -1}, 0.5, 1},
		{math.Vec2{X: 0, Y: 0}, float32(gomath.Copysign(0, -1)), -1},
	}
	for _, tt := range tests {
		word := PackTangent(tt.oct, tt.w)
		oct, sign := UnpackTangent(word)
		if sign != tt.sign {
			t.Errorf("PackTangent(%v, %v) sign = %v, want %v", tt.oct, tt.w, sign, tt.sign)
		}
		const step = 1.0 / 16383
		if math32.Abs(oct.X-tt.oct.X) > step || math32.Abs(oct.Y-tt.oct.Y) > step {
			t.Errorf("PackTangent(%v) round-tripped to %v", tt.oct, oct)
		}
	}
}

func TestPackTangentLayout(t *testing.T) {
	word := PackTangent(math.Vec2{X: 1, Y: 0}, -1)
	if x := word & 0x7FFF; x != 16383 {
		t.Errorf("x bits = %d, want 16383", x)
	}
	if y := (word >> 15) & 0x7FFF; y != 0 {
		t.Errorf("y bits = %d, want 0", y)
	}
	if s := word >> 30; s != 0b11 {
		t.Errorf("sign bits = %b, want 11", s)
	}
}

func TestPackHalf2(t *testing.T) {
	got := PackHalf2(math.Vec2{X: 1, Y: -2})
	// binary16: 1.0 = 0x3C00, -2.0 = 0xC000.
	if want := uint32(0xC0003C00); got != want {
		t.Errorf("PackHalf2(1,-2) = %#08x, want %#08x", got, want)
	}

	uv := math.Vec2{X: 0.333333, Y: 0.75}
	back := UnpackHalf2(PackHalf2(uv))
	if math32.Abs(back.X-uv.X) > 1e-3 || back.Y != uv.Y {
		t.Errorf("UnpackHalf2(PackHalf2(%v)) = %v", uv, back)
	}
}
