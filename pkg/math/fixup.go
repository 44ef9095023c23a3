package math

import "fmt"

// AxisRemap permutes and optionally negates axes: out[i] = Sign[i] * in[Source[i]].
// It is always a rotation or a reflection, so it preserves vector length.
type AxisRemap struct {
	Source [3]int
	Sign   [3]float32
}

// Axis remaps understood by the loader.
var (
	// RemapIdentity leaves coordinates untouched.
	RemapIdentity = AxisRemap{Source: [3]int{0, 1, 2}, Sign: [3]float32{1, 1, 1}}
	// RemapSwapYZ exchanges the Y and Z axes (Y-up <-> Z-up).
	RemapSwapYZ = AxisRemap{Source: [3]int{0, 2, 1}, Sign: [3]float32{1, 1, 1}}
	// RemapRotateY90 is a quarter turn about +Y in a left-handed, row-vector
	// convention: x' = z, y' = y, z' = -x.
	RemapRotateY90 = AxisRemap{Source: [3]int{2, 1, 0}, Sign: [3]float32{1, 1, -1}}
)

// Apply remaps v.
func (r AxisRemap) Apply(v Vec3) Vec3 {
	return Vec3{
		r.Sign[0] * v.Component(r.Source[0]),
		r.Sign[1] * v.Component(r.Source[1]),
		r.Sign[2] * v.Component(r.Source[2]),
	}
}

// Determinant returns +1 for a rotation and -1 for a reflection. A
// reflection reverses triangle winding and the handedness of a tangent frame.
func (r AxisRemap) Determinant() float32 {
	det := r.Sign[0] * r.Sign[1] * r.Sign[2]
	s := r.Source
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if s[i] > s[j] {
				det = -det
			}
		}
	}
	return det
}

// Validate checks that Source is a permutation of {0,1,2} and every sign is ±1.
func (r AxisRemap) Validate() error {
	var seen [3]bool
	for i, s := range r.Source {
		if s < 0 || s > 2 || seen[s] {
			return fmt.Errorf("axis remap: source %v is not a permutation", r.Source)
		}
		seen[s] = true
		if r.Sign[i] != 1 && r.Sign[i] != -1 {
			return fmt.Errorf("axis remap: sign %v must be +1 or -1", r.Sign[i])
		}
	}
	return nil
}

// Fixup converts authored coordinates into the renderer's world space:
// positions are scaled, remapped, then offset; directions only get the remap.
type Fixup struct {
	Remap  AxisRemap
	Scale  float32
	Offset Vec3
}

// DefaultFixup swaps Y and Z with unit scale and no offset.
func DefaultFixup() Fixup {
	return Fixup{Remap: RemapSwapYZ, Scale: 1}
}

// SponzaFixup reproduces the placement used for the Khronos Sponza sample:
// centimetres to the renderer's units, quarter turn about Y, recentred.
func SponzaFixup() Fixup {
	return Fixup{
		Remap:  RemapRotateY90,
		Scale:  1.0 / 0.00800000037997961,
		Offset: Vec3{-60.5189208984375, -126.44249725341797, -38.690551757812},
	}
}

// TransformPoint applies the full fixup to a position.
func (f Fixup) TransformPoint(p Vec3) Vec3 {
	return f.Remap.Apply(p.Scale(f.Scale)).Add(f.Offset)
}

// TransformDirection applies only the rotation part to a normal or tangent.
func (f Fixup) TransformDirection(d Vec3) Vec3 {
	return f.Remap.Apply(d)
}

// Mirrors reports whether the fixup is a reflection. Packed tangents keep
// their authored handedness, so consumers of mirrored geometry flip the
// bitangent sign and the front-face winding.
func (f Fixup) Mirrors() bool {
	return f.Remap.Determinant() < 0
}

// FixupPreset returns the named fixup: "identity", "swap-yz", "rotate-y90" or "sponza".
func FixupPreset(name string) (Fixup, error) {
	switch name {
	case "identity":
		return Fixup{Remap: RemapIdentity, Scale: 1}, nil
	case "", "swap-yz":
		return DefaultFixup(), nil
	case "rotate-y90":
		return Fixup{Remap: RemapRotateY90, Scale: 1}, nil
	case "sponza":
		return SponzaFixup(), nil
	default:
		return Fixup{}, fmt.Errorf("unknown fixup preset %q", name)
	}
}
