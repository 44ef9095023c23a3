// Package gpu defines the resource factory the scene pipeline uploads into.
// Backends live in subpackages; MemoryFactory keeps uploads in host memory.
package gpu

import "fmt"

// Handle identifies a GPU resource created by a Factory. Zero is no resource.
type Handle uint64

// Format is the pixel layout of a texture.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8
	FormatRGBA8SRGB
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA8SRGB:
		return "RGBA8_SRGB"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// BytesPerPixel returns the texel size of the format, or 0 if unknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatRGBA8SRGB:
		return 4
	default:
		return 0
	}
}

// BufferDesc describes a vertex or index buffer.
type BufferDesc struct {
	Name     string
	IsIndex  bool
	ByteSize int
}

// TextureDesc describes a 2D texture with a single mip level.
type TextureDesc struct {
	Name   string
	Width  int
	Height int
	Format Format
}

// Factory creates GPU resources from host data. Data is only read during
// the call.
type Factory interface {
	CreateBuffer(desc BufferDesc, data []byte) (Handle, error)
	CreateTexture(desc TextureDesc, pixels []byte) (Handle, error)
}

// Releaser is implemented by factories that can free what they created.
type Releaser interface {
	Release(h Handle) error
}
