package formats

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Faultbox/scene-ingest/pkg/math"
)

// ComponentType is the numeric encoding of a single accessor scalar.
type ComponentType int

const (
	ComponentUnknown ComponentType = iota
	ComponentByte
	ComponentUbyte
	ComponentShort
	ComponentUshort
	ComponentUint
	ComponentFloat
)

// Size returns the byte size of one component, or 0 if unknown.
func (c ComponentType) Size() int {
	switch c {
	case ComponentByte, ComponentUbyte:
		return 1
	case ComponentShort, ComponentUshort:
		return 2
	case ComponentUint, ComponentFloat:
		return 4
	default:
		return 0
	}
}

// String returns a human-readable component type name.
func (c ComponentType) String() string {
	switch c {
	case ComponentByte:
		return "i8"
	case ComponentUbyte:
		return "u8"
	case ComponentShort:
		return "i16"
	case ComponentUshort:
		return "u16"
	case ComponentUint:
		return "u32"
	case ComponentFloat:
		return "f32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ElementType is the shape of one accessor element. Its value is the
// number of components; matrices are not supported.
type ElementType int

const (
	ElementUnknown ElementType = 0
	ElementScalar  ElementType = 1
	ElementVec2    ElementType = 2
	ElementVec3    ElementType = 3
	ElementVec4    ElementType = 4
)

// String returns the glTF name of the element type.
func (e ElementType) String() string {
	switch e {
	case ElementScalar:
		return "SCALAR"
	case ElementVec2:
		return "VEC2"
	case ElementVec3:
		return "VEC3"
	case ElementVec4:
		return "VEC4"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Accessor describes how to read a typed array out of a buffer view.
type Accessor struct {
	Name       string
	Component  ComponentType
	Element    ElementType
	Normalized bool
	Count      int
	Offset     int    // byte offset of element 0 within Data
	Stride     int    // declared byte stride, 0 for tightly packed
	Data       []byte // the buffer view's bytes
}

// ElementSize returns the tightly packed byte size of one element.
func (a *Accessor) ElementSize() int {
	return a.Component.Size() * int(a.Element)
}

// EffectiveStride returns the declared stride, or the element size when
// the declared stride is zero.
func (a *Accessor) EffectiveStride() int {
	if a.Stride != 0 {
		return a.Stride
	}
	return a.ElementSize()
}

// view is a validated strided window over an accessor's bytes.
type view struct {
	data   []byte
	offset int
	stride int
}

func (v view) at(i int) []byte {
	return v.data[v.offset+i*v.stride:]
}

// view validates once that every element lies inside Data:
// offset + stride*(count-1) + elementSize <= len(Data).
func (a *Accessor) view() (view, error) {
	size := a.ElementSize()
	if size == 0 {
		return view{}, fmt.Errorf("%w: accessor %q: component %s / element %s",
			ErrUnsupportedFormat, a.Name, a.Component, a.Element)
	}
	if a.Count < 0 || a.Offset < 0 {
		return view{}, fmt.Errorf("%w: accessor %q: negative count or offset", ErrParse, a.Name)
	}
	stride := a.EffectiveStride()
	if stride < size {
		return view{}, fmt.Errorf("%w: accessor %q: stride %d smaller than element size %d",
			ErrParse, a.Name, stride, size)
	}
	if a.Count == 0 {
		return view{data: a.Data, offset: a.Offset, stride: stride}, nil
	}
	avail := len(a.Data) - a.Offset - size
	if avail < 0 || (a.Count-1) > avail/stride {
		return view{}, fmt.Errorf("%w: accessor %q: %d elements of %d bytes at offset %d stride %d exceed %d bytes",
			ErrParse, a.Name, a.Count, size, a.Offset, stride, len(a.Data))
	}
	return view{data: a.Data, offset: a.Offset, stride: stride}, nil
}

func (a *Accessor) expect(elem ElementType, components ...ComponentType) error {
	if a.Element != elem {
		return fmt.Errorf("%w: accessor %q: element %s, want %s", ErrUnsupportedFormat, a.Name, a.Element, elem)
	}
	for _, c := range components {
		if a.Component == c {
			return nil
		}
	}
	return fmt.Errorf("%w: accessor %q: component %s not allowed for %s",
		ErrUnsupportedFormat, a.Name, a.Component, elem)
}

func readFloat(b []byte) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b))
}

// ReadIndices decodes an unsigned 8/16/32-bit scalar accessor.
func (a *Accessor) ReadIndices() ([]uint32, error) {
	if err := a.expect(ElementScalar, ComponentUbyte, ComponentUshort, ComponentUint); err != nil {
		return nil, err
	}
	v, err := a.view()
	if err != nil {
		return nil, err
	}

	out := make([]uint32, a.Count)
	switch a.Component {
	case ComponentUbyte:
		for i := range out {
			out[i] = uint32(v.at(i)[0])
		}
	case ComponentUshort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(v.at(i)))
		}
	case ComponentUint:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(v.at(i))
		}
	}
	return out, nil
}

// ReadVec3 decodes a float32 VEC3 accessor (positions, normals).
func (a *Accessor) ReadVec3() ([]math.Vec3, error) {
	if err := a.expect(ElementVec3, ComponentFloat); err != nil {
		return nil, err
	}
	v, err := a.view()
	if err != nil {
		return nil, err
	}

	out := make([]math.Vec3, a.Count)
	for i := range out {
		b := v.at(i)
		out[i] = math.Vec3{X: readFloat(b), Y: readFloat(b[4:]), Z: readFloat(b[8:])}
	}
	return out, nil
}

// ReadVec4 decodes a float32 VEC4 accessor (tangents).
func (a *Accessor) ReadVec4() ([]math.Vec4, error) {
	if err := a.expect(ElementVec4, ComponentFloat); err != nil {
		return nil, err
	}
	v, err := a.view()
	if err != nil {
		return nil, err
	}

	out := make([]math.Vec4, a.Count)
	for i := range out {
		b := v.at(i)
		out[i] = math.Vec4{X: readFloat(b), Y: readFloat(b[4:]), Z: readFloat(b[8:]), W: readFloat(b[12:])}
	}
	return out, nil
}

// ReadTexcoords decodes a VEC2 accessor stored as unsigned-normalized
// 8/16-bit integers (value / max) or float32.
func (a *Accessor) ReadTexcoords() ([]math.Vec2, error) {
	if err := a.expect(ElementVec2, ComponentUbyte, ComponentUshort, ComponentFloat); err != nil {
		return nil, err
	}
	v, err := a.view()
	if err != nil {
		return nil, err
	}

	out := make([]math.Vec2, a.Count)
	switch a.Component {
	case ComponentUbyte:
		for i := range out {
			b := v.at(i)
			out[i] = math.Vec2{X: float32(b[0]) / 255, Y: float32(b[1]) / 255}
		}
	case ComponentUshort:
		for i := range out {
			b := v.at(i)
			out[i] = math.Vec2{
				X: float32(binary.LittleEndian.Uint16(b)) / 65535,
				Y: float32(binary.LittleEndian.Uint16(b[2:])) / 65535,
			}
		}
	case ComponentFloat:
		for i := range out {
			b := v.at(i)
			out[i] = math.Vec2{X: readFloat(b), Y: readFloat(b[4:])}
		}
	}
	return out, nil
}
