package math

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box3 is an axis-aligned bounding box. A box that has not accumulated any
// point holds the sentinel Lower=+Inf, Upper=-Inf and must not be used as
// a real volume.
type Box3 struct {
	Lower Vec3
	Upper Vec3
}

// EmptyBox returns the sentinel box.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Lower: Vec3{inf, inf, inf},
		Upper: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box has not been extended by any point.
func (b Box3) IsEmpty() bool {
	return b.Lower.X > b.Upper.X || b.Lower.Y > b.Upper.Y || b.Lower.Z > b.Upper.Z
}

// Extend grows the box to contain p.
func (b *Box3) Extend(p Vec3) {
	b.Lower = b.Lower.Min(p)
	b.Upper = b.Upper.Max(p)
}

// Union returns the smallest box containing both boxes. Unioning with an
// empty box returns the other box unchanged.
func (b Box3) Union(other Box3) Box3 {
	return Box3{
		Lower: b.Lower.Min(other.Lower),
		Upper: b.Upper.Max(other.Upper),
	}
}

// Size returns Upper - Lower. Meaningless for an empty box.
func (b Box3) Size() Vec3 {
	return b.Upper.Sub(b.Lower)
}

// Center returns the midpoint of the box.
func (b Box3) Center() Vec3 {
	return b.Lower.Add(b.Upper).Scale(0.5)
}

// BoundsOf accumulates the box of points in a single pass.
func BoundsOf(points []Vec3) Box3 {
	b := EmptyBox()
	for _, p := range points {
		b.Extend(p)
	}
	return b
}

// String formats the box as "(lower)-(upper)", or "empty".
func (b Box3) String() string {
	if b.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("(%g, %g, %g)-(%g, %g, %g)",
		b.Lower.X, b.Lower.Y, b.Lower.Z, b.Upper.X, b.Upper.Y, b.Upper.Z)
}
