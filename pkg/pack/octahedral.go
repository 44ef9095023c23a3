// Package pack implements the compact vertex encodings uploaded to the GPU:
// octahedral normals and tangents, half-float texture coordinates, and the
// per-primitive compressor that produces the position and varying streams.
package pack

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

// signNotZero returns +1 for v >= 0 (including +0) and -1 otherwise.
func signNotZero(v float32) float32 {
	if v >= 0 {
		return 1
	}
	return -1
}

// OctahedralEncode maps a unit vector to [-1,1]^2 by projecting it onto the
// octahedron |x|+|y|+|z| = 1 and unfolding the lower half over the diagonals.
func OctahedralEncode(n math.Vec3) math.Vec2 {
	l1 := math32.Abs(n.X) + math32.Abs(n.Y) + math32.Abs(n.Z)
	p := math.Vec2{X: n.X / l1, Y: n.Y / l1}
	if n.Z < 0 {
		p = math.Vec2{
			X: (1 - math32.Abs(p.Y)) * signNotZero(p.X),
			Y: (1 - math32.Abs(p.X)) * signNotZero(p.Y),
		}
	}
	return p
}

// OctahedralDecode is the inverse of OctahedralEncode and returns a unit vector.
func OctahedralDecode(e math.Vec2) math.Vec3 {
	v := math.Vec3{X: e.X, Y: e.Y, Z: 1 - math32.Abs(e.X) - math32.Abs(e.Y)}
	if v.Z < 0 {
		v.X = (1 - math32.Abs(e.Y)) * signNotZero(e.X)
		v.Y = (1 - math32.Abs(e.X)) * signNotZero(e.Y)
	}
	return v.Normalize()
}
