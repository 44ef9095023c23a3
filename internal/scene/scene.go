// Package scene turns a glTF scene file into GPU-resident primitives: it
// reads and validates the descriptor, packs vertex attributes, uploads
// buffers and textures through a gpu.Factory and binds materials.
package scene

import (
	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/math"
	"github.com/Faultbox/scene-ingest/pkg/pack"
)

// Channel is one material input: a factor that is always present and an
// optional texture that modulates it.
type Channel struct {
	Factor  [4]float32
	Texture gpu.Handle
	Path    string // resolved image path, "" when untextured
}

// Textured reports whether the channel has a texture bound.
func (c Channel) Textured() bool {
	return c.Texture != 0
}

// MaterialBinding is the resolved material of a primitive.
//
// Factor layouts:
//   - BaseColor: RGBA
//   - MetallicRoughness: (0, roughness, metallic, 0), matching the G/B
//     channels of the texture
//   - Normal: (scale, 0, 0, 0)
//   - Emissive: RGB multiplied by the emissive strength, A unused
type MaterialBinding struct {
	Name              string
	BaseColor         Channel
	MetallicRoughness Channel
	Normal            Channel
	Emissive          Channel
}

// Primitive is one uploaded triangle list.
type Primitive struct {
	Index       int
	VertexCount int
	IndexCount  int

	IndexBuffer    gpu.Handle // uint32 indices
	PositionBuffer gpu.Handle // float32 xyz, pack.PositionStride bytes per vertex
	VaryingBuffer  gpu.Handle // packed normal, tangent, texcoord

	Bounds   math.Box3
	Material MaterialBinding
}

// DrawArguments is everything a renderer needs to issue one indexed draw.
type DrawArguments struct {
	IndexBuffer    gpu.Handle
	PositionBuffer gpu.Handle
	VaryingBuffer  gpu.Handle
	IndexCount     int
	PositionStride int
	VaryingStride  int

	// Mirrored geometry is drawn with clockwise front faces and the
	// bitangent sign of each packed tangent negated.
	Mirrored bool
}

// Scene is a fully loaded scene. It owns the GPU resources it references.
type Scene struct {
	Path       string
	Primitives []Primitive
	Bounds     math.Box3
	// Mirrored is set when the load fixup was a reflection.
	Mirrored bool

	resources *Materializer
}

// DrawArguments returns the draw call parameters of primitive i.
func (s *Scene) DrawArguments(i int) (DrawArguments, bool) {
	if i < 0 || i >= len(s.Primitives) {
		return DrawArguments{}, false
	}
	p := &s.Primitives[i]
	return DrawArguments{
		IndexBuffer:    p.IndexBuffer,
		PositionBuffer: p.PositionBuffer,
		VaryingBuffer:  p.VaryingBuffer,
		IndexCount:     p.IndexCount,
		PositionStride: pack.PositionStride,
		VaryingStride:  pack.VaryingStride,
		Mirrored:       s.Mirrored,
	}, true
}

// Resources returns the handles of every GPU resource the scene owns.
func (s *Scene) Resources() []gpu.Handle {
	if s.resources == nil {
		return nil
	}
	return s.resources.Handles()
}

// Release frees the scene's GPU resources when the factory supports it.
func (s *Scene) Release() error {
	if s.resources == nil {
		return nil
	}
	return s.resources.Release()
}
