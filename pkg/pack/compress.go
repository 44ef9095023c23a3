package pack

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

// Byte sizes of one packed vertex in each stream.
const (
	PositionStride = 12
	VaryingStride  = 12
)

// degenerateLength is the shortest normal/tangent that is still normalized;
// anything shorter (or non-finite) is replaced by FallbackDirection.
const degenerateLength = 1e-5

// FallbackDirection replaces zero-length or non-finite normals and tangents.
var FallbackDirection = math.Vec3{X: 1, Y: 0, Z: 0}

// Varying is one vertex of the varying stream.
type Varying struct {
	Normal   uint32 // octahedral, 2x SNORM16
	Tangent  uint32 // octahedral, 2x SNORM15 + 2-bit handedness
	Texcoord uint32 // 2x binary16
}

// Streams holds the raw per-vertex attributes of one primitive. The
// position count is the vertex count; the other streams must match it.
type Streams struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec4
	Texcoords []math.Vec2
}

// Output holds the packed streams and the bounds of the final positions.
type Output struct {
	Positions []math.Vec3
	Varyings  []Varying
	Bounds    math.Box3
}

// unitOrFallback normalizes d, or returns FallbackDirection when d is too
// short or not finite.
func unitOrFallback(d math.Vec3) math.Vec3 {
	if !d.IsFinite() {
		return FallbackDirection
	}
	l := d.Length()
	if !(l > degenerateLength) {
		return FallbackDirection
	}
	return d.Scale(1 / l)
}

// PackNormal fixes up, normalizes and packs one normal.
func PackNormal(n math.Vec3, fx math.Fixup) uint32 {
	return PackSnorm16x2(OctahedralEncode(unitOrFallback(fx.TransformDirection(n))))
}

// PackTangentVec fixes up, normalizes and packs one tangent with handedness in W.
func PackTangentVec(t math.Vec4, fx math.Fixup) uint32 {
	dir := unitOrFallback(fx.TransformDirection(t.XYZ()))
	return PackTangent(OctahedralEncode(dir), t.W)
}

// Compress transforms and packs every vertex of one primitive while
// accumulating the bounds of the transformed positions. It never fails:
// missing stream entries are packed as the fallback direction and zero UV.
func Compress(in Streams, fx math.Fixup) Output {
	n := len(in.Positions)
	out := Output{
		Positions: make([]math.Vec3, n),
		Varyings:  make([]Varying, n),
		Bounds:    math.EmptyBox(),
	}

	for i := 0; i < n; i++ {
		p := fx.TransformPoint(in.Positions[i])
		out.Positions[i] = p
		out.Bounds.Extend(p)

		var normal math.Vec3
		if i < len(in.Normals) {
			normal = in.Normals[i]
		}
		var tangent math.Vec4
		if i < len(in.Tangents) {
			tangent = in.Tangents[i]
		}
		var uv math.Vec2
		if i < len(in.Texcoords) {
			uv = in.Texcoords[i]
		}

		out.Varyings[i] = Varying{
			Normal:   PackNormal(normal, fx),
			Tangent:  PackTangentVec(tangent, fx),
			Texcoord: PackHalf2(uv),
		}
	}

	return out
}

// PositionBytes serializes the position stream as tightly packed
// little-endian float32 triples.
func (o *Output) PositionBytes() []byte {
	buf := make([]byte, len(o.Positions)*PositionStride)
	for i, p := range o.Positions {
		off := i * PositionStride
		binary.LittleEndian.PutUint32(buf[off:], gomath.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[off+4:], gomath.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(buf[off+8:], gomath.Float32bits(p.Z))
	}
	return buf
}

// VaryingBytes serializes the varying stream as little-endian
// (normal, tangent, texcoord) words.
func (o *Output) VaryingBytes() []byte {
	buf := make([]byte, len(o.Varyings)*VaryingStride)
	for i, v := range o.Varyings {
		off := i * VaryingStride
		binary.LittleEndian.PutUint32(buf[off:], v.Normal)
		binary.LittleEndian.PutUint32(buf[off+4:], v.Tangent)
		binary.LittleEndian.PutUint32(buf[off+8:], v.Texcoord)
	}
	return buf
}

// IndexBytes serializes 32-bit indices little-endian.
func IndexBytes(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}
