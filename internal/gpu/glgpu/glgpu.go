// Package glgpu implements gpu.Factory on OpenGL 4.1 core. All calls must be
// made on the thread that owns the current GL context.
package glgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/scene-ingest/internal/gpu"
)

type kind uint8

const (
	kindBuffer kind = iota + 1
	kindTexture
)

type object struct {
	kind kind
	id   uint32
}

// Factory creates GL buffers and textures. Handles map to GL object names.
type Factory struct {
	next    gpu.Handle
	objects map[gpu.Handle]object
}

// New creates a factory. gl.Init must have been called on a current context.
func New() *Factory {
	return &Factory{objects: make(map[gpu.Handle]object)}
}

func (f *Factory) track(o object) gpu.Handle {
	f.next++
	f.objects[f.next] = o
	return f.next
}

func glError(op, name string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("glgpu: %s %q: GL error 0x%x", op, name, code)
	}
	return nil
}

// CreateBuffer uploads data into a STATIC_DRAW array or element buffer.
func (f *Factory) CreateBuffer(desc gpu.BufferDesc, data []byte) (gpu.Handle, error) {
	if desc.ByteSize != len(data) || len(data) == 0 {
		return 0, fmt.Errorf("glgpu: buffer %q: size %d, data %d bytes", desc.Name, desc.ByteSize, len(data))
	}
	target := uint32(gl.ARRAY_BUFFER)
	if desc.IsIndex {
		target = gl.ELEMENT_ARRAY_BUFFER
	}

	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(target, id)
	gl.BufferData(target, len(data), unsafe.Pointer(&data[0]), gl.STATIC_DRAW)
	gl.BindBuffer(target, 0)
	if err := glError("create buffer", desc.Name); err != nil {
		gl.DeleteBuffers(1, &id)
		return 0, err
	}
	return f.track(object{kind: kindBuffer, id: id}), nil
}

// CreateTexture uploads RGBA8 pixels into a linear-filtered 2D texture.
func (f *Factory) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Handle, error) {
	var internal int32
	switch desc.Format {
	case gpu.FormatRGBA8:
		internal = gl.RGBA8
	case gpu.FormatRGBA8SRGB:
		internal = gl.SRGB8_ALPHA8
	default:
		return 0, fmt.Errorf("glgpu: texture %q: unsupported format %s", desc.Name, desc.Format)
	}
	if len(pixels) == 0 || len(pixels) != desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("glgpu: texture %q: %dx%d needs %d bytes, got %d",
			desc.Name, desc.Width, desc.Height, desc.Width*desc.Height*4, len(pixels))
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("create texture", desc.Name); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	return f.track(object{kind: kindTexture, id: id}), nil
}

// Release deletes the GL object behind h.
func (f *Factory) Release(h gpu.Handle) error {
	o, ok := f.objects[h]
	if !ok {
		return fmt.Errorf("%w: %d", gpu.ErrUnknownHandle, h)
	}
	delete(f.objects, h)
	switch o.kind {
	case kindBuffer:
		gl.DeleteBuffers(1, &o.id)
	case kindTexture:
		gl.DeleteTextures(1, &o.id)
	}
	return nil
}

// Name returns the GL object name behind h, for binding at draw time.
func (f *Factory) Name(h gpu.Handle) (uint32, bool) {
	o, ok := f.objects[h]
	return o.id, ok
}
