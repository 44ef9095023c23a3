package pack

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

// sampleUnitVectors returns the axes, the octant diagonals, and a fixed set
// of pseudo-random directions.
func sampleUnitVectors() []math.Vec3 {
	vs := []math.Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	for _, sx := range []float32{-1, 1} {
		for _, sy := range []float32{-1, 1} {
			for _, sz := range []float32{-1, 1} {
				vs = append(vs, math.Vec3{X: sx, Y: sy, Z: sz}.Normalize())
			}
		}
	}
	r := rand.New(rand.NewSource(42))
	for len(vs) < 2000 {
		v := math.Vec3{
			X: r.Float32()*2 - 1,
			Y: r.Float32()*2 - 1,
			Z: r.Float32()*2 - 1,
		}
		if l := v.Length(); l < 0.1 || l > 1 {
			continue
		}
		vs = append(vs, v.Normalize())
	}
	return vs
}

func TestOctahedralEncodeRange(t *testing.T) {
	for _, v := range sampleUnitVectors() {
		e := OctahedralEncode(v)
		if math32.Abs(e.X) > 1 || math32.Abs(e.Y) > 1 {
			t.Fatalf("OctahedralEncode(%v) = %v, outside [-1,1]^2", v, e)
		}
	}
}

func TestOctahedralExactAxes(t *testing.T) {
	axes := []math.Vec3{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	for _, v := range axes {
		got := OctahedralDecode(UnpackSnorm16x2(PackSnorm16x2(OctahedralEncode(v))))
		if got.Sub(v).Length() > 1e-6 {
			t.Errorf("axis %v round-tripped to %v", v, got)
		}
	}
}

// The quantization law holds exactly on the unfolded 2-D coordinate: each
// component comes back within half a step of 1/32767.
func TestOctahedralRoundTripQuantized(t *testing.T) {
	const step = 1.0 / 32767
	for _, v := range sampleUnitVectors() {
		e := OctahedralEncode(v)
		q := UnpackSnorm16x2(PackSnorm16x2(e))
		if d := math32.Abs(q.X - e.X); d > step {
			t.Fatalf("x error %g > %g for %v", d, step, v)
		}
		if d := math32.Abs(q.Y - e.Y); d > step {
			t.Fatalf("y error %g > %g for %v", d, step, v)
		}

		// On the sphere the octahedral map stretches the 2-D error by at most 3.
		got := OctahedralDecode(q)
		for i := 0; i < 3; i++ {
			if d := math32.Abs(got.Component(i) - v.Component(i)); d > 3*step {
				t.Fatalf("component %d error %g for %v -> %v", i, d, v, got)
			}
		}
	}
}

func TestOctahedralDecodeIsUnit(t *testing.T) {
	for _, e := range []math.Vec2{{X: 0.3, Y: -0.9}, {X: -1, Y: 1}, {X: 0, Y: 0}, {X: 0.5, Y: 0.5}} {
		l := OctahedralDecode(e).Length()
		if l < 0.9999 || l > 1.0001 {
			t.Errorf("OctahedralDecode(%v) length = %v, want 1", e, l)
		}
	}
}
