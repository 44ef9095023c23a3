package formats

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/scene-ingest/pkg/alloc"
)

// Attribute semantics consumed by the pipeline.
const (
	SemanticPosition = "POSITION"
	SemanticNormal   = "NORMAL"
	SemanticTangent  = "TANGENT"
	SemanticTexcoord = "TEXCOORD"
)

const emissiveStrengthExtension = "KHR_materials_emissive_strength"

// ParseOptions configures ParseSceneFile.
type ParseOptions struct {
	// Alloc provides the memory for binary buffers. Nil means alloc.Default.
	Alloc alloc.Allocator
}

// MaterialDesc is the material of one primitive with glTF defaults applied.
// Texture fields hold slash-separated paths relative to the descriptor
// directory, or "" when the channel has no texture.
type MaterialDesc struct {
	Name string

	BaseColorFactor  [4]float32
	BaseColorTexture string

	MetallicFactor           float32
	RoughnessFactor          float32
	MetallicRoughnessTexture string

	NormalTexture string
	NormalScale   float32

	EmissiveFactor  [3]float32 // already multiplied by the emissive strength
	EmissiveTexture string
}

// DefaultMaterial returns the glTF default material.
func DefaultMaterial() MaterialDesc {
	return MaterialDesc{
		BaseColorFactor: [4]float32{1, 1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
		NormalScale:     1,
	}
}

// PrimitiveDesc is one triangle-list primitive with its selected streams.
type PrimitiveDesc struct {
	Index    int
	Indices  *Accessor
	Position *Accessor
	Normal   *Accessor
	Tangent  *Accessor
	Texcoord *Accessor
	Material MaterialDesc
}

// VertexCount returns the number of vertices of the primitive.
func (p *PrimitiveDesc) VertexCount() int {
	return p.Position.Count
}

// IndexCount returns the number of indices of the primitive.
func (p *PrimitiveDesc) IndexCount() int {
	return p.Indices.Count
}

// Descriptor is a validated scene descriptor. Accessors point into buffers
// owned by the descriptor; call Release once they are no longer read.
type Descriptor struct {
	Path       string
	Dir        string
	NodeCount  int
	Primitives []PrimitiveDesc

	alloc   alloc.Allocator
	buffers [][]byte
}

// Release returns the buffer memory to the allocator. Accessors of the
// descriptor must not be read afterwards.
func (d *Descriptor) Release() {
	for _, b := range d.buffers {
		d.alloc.Free(b)
	}
	d.buffers = nil
}

// ParseSceneFile reads a .gltf or .glb file, loads its buffers and returns
// the validated descriptor.
func ParseSceneFile(name string, opts ParseOptions) (*Descriptor, error) {
	data, err := ReadFile(name)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Path:  name,
		Dir:   filepath.Dir(name),
		alloc: opts.Alloc,
	}
	if d.alloc == nil {
		d.alloc = alloc.Default
	}

	jsonData, binChunk := data, []byte(nil)
	if IsGLB(data) {
		if jsonData, binChunk, err = splitGLB(data); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	var doc gltf.Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}

	if err := d.build(&doc, binChunk); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

// ReadFile reads a whole file, mapping a missing file to ErrFileNotFound and
// other failures to ErrIO.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, name, err)
	}
	return data, nil
}

func (d *Descriptor) build(doc *gltf.Document, binChunk []byte) error {
	if major, _, _ := strings.Cut(doc.Asset.Version, "."); major != "2" {
		return fmt.Errorf("%w: %s: asset version %q, want 2.x", ErrParse, d.Path, doc.Asset.Version)
	}
	if len(doc.Nodes) == 0 {
		return fmt.Errorf("%w: %s: no nodes", ErrParse, d.Path)
	}
	if len(doc.Meshes) != 1 {
		return fmt.Errorf("%w: %s: %d meshes, want exactly 1", ErrParse, d.Path, len(doc.Meshes))
	}
	mesh := doc.Meshes[0]
	if mesh == nil || len(mesh.Primitives) == 0 {
		return fmt.Errorf("%w: %s: mesh has no primitives", ErrParse, d.Path)
	}
	d.NodeCount = len(doc.Nodes)

	if err := d.loadBuffers(doc, binChunk); err != nil {
		return err
	}

	d.Primitives = make([]PrimitiveDesc, len(mesh.Primitives))
	for i, prim := range mesh.Primitives {
		if prim == nil {
			return fmt.Errorf("%w: %s: primitive %d is null", ErrParse, d.Path, i)
		}
		p, err := d.primitive(doc, i, prim)
		if err != nil {
			return err
		}
		d.Primitives[i] = p
	}
	return nil
}

// loadBuffers reads every buffer in full into allocator memory.
func (d *Descriptor) loadBuffers(doc *gltf.Document, binChunk []byte) error {
	d.buffers = make([][]byte, 0, len(doc.Buffers))
	for i, b := range doc.Buffers {
		if b == nil {
			return fmt.Errorf("%w: %s: buffer %d is null", ErrParse, d.Path, i)
		}
		size := int(b.ByteLength)
		if size < 0 {
			return fmt.Errorf("%w: %s: buffer %d has negative length", ErrParse, d.Path, i)
		}
		block := d.alloc.Alloc(size)
		d.buffers = append(d.buffers, block)

		var err error
		switch {
		case b.URI == "":
			if i != 0 || binChunk == nil {
				err = fmt.Errorf("%w: buffer %d has no uri and no GLB binary chunk", ErrParse, i)
			} else if len(binChunk) < size {
				err = fmt.Errorf("%w: GLB binary chunk has %d of %d bytes", ErrIO, len(binChunk), size)
			} else {
				copy(block, binChunk)
			}
		case strings.HasPrefix(b.URI, "data:"):
			err = decodeDataURI(b.URI, block)
		default:
			err = d.readSibling(b.URI, block)
		}
		if err != nil {
			return fmt.Errorf("%s: buffer %d: %w", d.Path, i, err)
		}
	}
	return nil
}

// decodeDataURI fills block from a base64 data URI.
func decodeDataURI(uri string, block []byte) error {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.Contains(uri[:len(uri)-len(payload)], ";base64") {
		return fmt.Errorf("%w: data uri is not base64", ErrUnsupportedFormat)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: data uri: %v", ErrParse, err)
	}
	if len(raw) < len(block) {
		return fmt.Errorf("%w: data uri has %d of %d bytes", ErrIO, len(raw), len(block))
	}
	copy(block, raw)
	return nil
}

// readSibling fills block from a file next to the descriptor.
func (d *Descriptor) readSibling(uri string, block []byte) error {
	rel, err := resolveURI(uri)
	if err != nil {
		return err
	}
	name := filepath.Join(d.Dir, filepath.FromSlash(rel))
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return fmt.Errorf("%w: %s: %v", ErrIO, name, err)
	}
	defer f.Close()

	if n, err := io.ReadFull(f, block); err != nil {
		return fmt.Errorf("%w: %s: read %d of %d bytes: %v", ErrIO, name, n, len(block), err)
	}
	return nil
}

// resolveURI percent-decodes a relative URI into a clean slash path.
func resolveURI(uri string) (string, error) {
	rel, err := url.PathUnescape(uri)
	if err != nil {
		return "", fmt.Errorf("%w: uri %q: %v", ErrParse, uri, err)
	}
	if strings.Contains(rel, "://") {
		return "", fmt.Errorf("%w: uri %q is not a relative path", ErrUnsupportedFormat, uri)
	}
	return path.Clean(rel), nil
}

func (d *Descriptor) primitive(doc *gltf.Document, index int, prim *gltf.Primitive) (PrimitiveDesc, error) {
	p := PrimitiveDesc{Index: index}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: primitive %d: %s", ErrParse, d.Path, index, fmt.Sprintf(format, args...))
	}

	if prim.Mode != gltf.PrimitiveTriangles {
		return p, fail("mode %v, want triangles", prim.Mode)
	}
	if prim.Indices == nil {
		return p, fail("no index accessor")
	}

	var err error
	if p.Indices, err = d.accessor(doc, int(*prim.Indices)); err != nil {
		return p, fmt.Errorf("primitive %d indices: %w", index, err)
	}
	if p.Indices.Count%3 != 0 {
		return p, fail("index count %d is not a multiple of 3", p.Indices.Count)
	}

	selected := selectAttributes(prim.Attributes)
	streams := []struct {
		semantic string
		dst      **Accessor
	}{
		{SemanticPosition, &p.Position},
		{SemanticNormal, &p.Normal},
		{SemanticTangent, &p.Tangent},
		{SemanticTexcoord, &p.Texcoord},
	}
	for _, s := range streams {
		idx, ok := selected[s.semantic]
		if !ok {
			return p, fail("missing %s attribute", s.semantic)
		}
		acc, err := d.accessor(doc, idx)
		if err != nil {
			return p, fmt.Errorf("primitive %d %s: %w", index, s.semantic, err)
		}
		acc.Name = s.semantic
		*s.dst = acc
	}
	p.Indices.Name = "INDICES"

	vertices := p.Position.Count
	for _, acc := range []*Accessor{p.Normal, p.Tangent, p.Texcoord} {
		if acc.Count != vertices {
			return p, fail("%s count %d differs from POSITION count %d", acc.Name, acc.Count, vertices)
		}
	}

	p.Material = DefaultMaterial()
	if prim.Material != nil {
		if p.Material, err = d.material(doc, int(*prim.Material)); err != nil {
			return p, fmt.Errorf("primitive %d: %w", index, err)
		}
	}
	return p, nil
}

// selectAttributes maps each semantic to its accessor. Attributes are named
// SEMANTIC or SEMANTIC_n; when a semantic appears more than once the lowest
// set index wins.
func selectAttributes(attrs gltf.Attribute) map[string]int {
	type pick struct{ set, accessor int }
	picks := make(map[string]pick, len(attrs))
	for name, acc := range attrs {
		accessor := int(acc)
		semantic, set := splitSemantic(name)
		if cur, ok := picks[semantic]; ok && cur.set < set {
			continue
		} else if ok && cur.set == set && cur.accessor < accessor {
			continue
		}
		picks[semantic] = pick{set: set, accessor: accessor}
	}

	out := make(map[string]int, len(picks))
	for semantic, p := range picks {
		out[semantic] = p.accessor
	}
	return out
}

func splitSemantic(name string) (string, int) {
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		if set, err := strconv.Atoi(name[i+1:]); err == nil && set >= 0 {
			return name[:i], set
		}
	}
	return name, 0
}

func componentType(c gltf.ComponentType) ComponentType {
	switch c {
	case gltf.ComponentByte:
		return ComponentByte
	case gltf.ComponentUbyte:
		return ComponentUbyte
	case gltf.ComponentShort:
		return ComponentShort
	case gltf.ComponentUshort:
		return ComponentUshort
	case gltf.ComponentUint:
		return ComponentUint
	case gltf.ComponentFloat:
		return ComponentFloat
	default:
		return ComponentUnknown
	}
}

func elementType(t gltf.AccessorType) ElementType {
	switch t {
	case gltf.AccessorScalar:
		return ElementScalar
	case gltf.AccessorVec2:
		return ElementVec2
	case gltf.AccessorVec3:
		return ElementVec3
	case gltf.AccessorVec4:
		return ElementVec4
	default:
		return ElementUnknown
	}
}

// accessor resolves a glTF accessor to its buffer view bytes.
func (d *Descriptor) accessor(doc *gltf.Document, index int) (*Accessor, error) {
	if index < 0 || index >= len(doc.Accessors) || doc.Accessors[index] == nil {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrParse, index)
	}
	src := doc.Accessors[index]
	if src.Sparse != nil {
		return nil, fmt.Errorf("%w: sparse accessor %d", ErrUnsupportedFormat, index)
	}
	if src.BufferView == nil {
		return nil, fmt.Errorf("%w: accessor %d has no buffer view", ErrUnsupportedFormat, index)
	}

	bvIndex := int(*src.BufferView)
	if bvIndex < 0 || bvIndex >= len(doc.BufferViews) || doc.BufferViews[bvIndex] == nil {
		return nil, fmt.Errorf("%w: buffer view %d out of range", ErrParse, bvIndex)
	}
	bv := doc.BufferViews[bvIndex]
	buffer := int(bv.Buffer)
	if buffer < 0 || buffer >= len(d.buffers) {
		return nil, fmt.Errorf("%w: buffer %d out of range", ErrParse, buffer)
	}
	start, length := int(bv.ByteOffset), int(bv.ByteLength)
	if start < 0 || length < 0 || length > len(d.buffers[buffer])-start {
		return nil, fmt.Errorf("%w: buffer view %d [%d, +%d) exceeds buffer %d of %d bytes",
			ErrParse, bvIndex, start, length, buffer, len(d.buffers[buffer]))
	}

	acc := &Accessor{
		Component:  componentType(src.ComponentType),
		Element:    elementType(src.Type),
		Normalized: src.Normalized,
		Count:      int(src.Count),
		Offset:     int(src.ByteOffset),
		Stride:     int(bv.ByteStride),
		Data:       d.buffers[buffer][start : start+length],
	}
	if _, err := acc.view(); err != nil {
		return nil, err
	}
	return acc, nil
}

func (d *Descriptor) material(doc *gltf.Document, index int) (MaterialDesc, error) {
	m := DefaultMaterial()
	if index < 0 || index >= len(doc.Materials) || doc.Materials[index] == nil {
		return m, fmt.Errorf("%w: material %d out of range", ErrParse, index)
	}
	src := doc.Materials[index]
	m.Name = src.Name

	var err error
	texture := func(i int) string {
		if err != nil {
			return ""
		}
		var ref string
		ref, err = textureRef(doc, i)
		return ref
	}

	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			for i, v := range pbr.BaseColorFactor {
				m.BaseColorFactor[i] = float32(v)
			}
		}
		if pbr.MetallicFactor != nil {
			m.MetallicFactor = float32(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			m.RoughnessFactor = float32(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			m.BaseColorTexture = texture(int(pbr.BaseColorTexture.Index))
		}
		if pbr.MetallicRoughnessTexture != nil {
			m.MetallicRoughnessTexture = texture(int(pbr.MetallicRoughnessTexture.Index))
		}
	}

	if nt := src.NormalTexture; nt != nil {
		if nt.Scale != nil {
			m.NormalScale = float32(*nt.Scale)
		}
		if m.NormalScale != 1 {
			return m, fmt.Errorf("%w: material %q: normal scale %v, only 1 is supported",
				ErrUnsupportedFormat, src.Name, m.NormalScale)
		}
		if nt.Index != nil {
			m.NormalTexture = texture(int(*nt.Index))
		}
	}

	strength := float32(1)
	if raw, ok := src.Extensions[emissiveStrengthExtension]; ok {
		s, serr := emissiveStrength(raw)
		if serr != nil {
			return m, fmt.Errorf("material %q: %w", src.Name, serr)
		}
		strength = s
	}
	for i, v := range src.EmissiveFactor {
		m.EmissiveFactor[i] = float32(v) * strength
	}
	if src.EmissiveTexture != nil {
		m.EmissiveTexture = texture(int(src.EmissiveTexture.Index))
	}

	if err != nil {
		return m, fmt.Errorf("material %q: %w", src.Name, err)
	}
	return m, nil
}

// emissiveStrength reads the KHR_materials_emissive_strength payload, which
// is kept as raw JSON unless an extension decoder is registered.
func emissiveStrength(ext any) (float32, error) {
	raw, err := json.Marshal(ext)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrParse, emissiveStrengthExtension, err)
	}
	var payload struct {
		EmissiveStrength *float64 `json:"emissiveStrength"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrParse, emissiveStrengthExtension, err)
	}
	if payload.EmissiveStrength == nil {
		return 1, nil
	}
	return float32(*payload.EmissiveStrength), nil
}

// textureRef returns the image path of a texture. Only images stored as
// relative files are supported.
func textureRef(doc *gltf.Document, index int) (string, error) {
	if index < 0 || index >= len(doc.Textures) || doc.Textures[index] == nil {
		return "", fmt.Errorf("%w: texture %d out of range", ErrParse, index)
	}
	tex := doc.Textures[index]
	if tex.Source == nil {
		return "", fmt.Errorf("%w: texture %d has no source image", ErrUnsupportedFormat, index)
	}
	src := int(*tex.Source)
	if src < 0 || src >= len(doc.Images) || doc.Images[src] == nil {
		return "", fmt.Errorf("%w: image %d out of range", ErrParse, src)
	}
	img := doc.Images[src]
	if img.URI == "" || strings.HasPrefix(img.URI, "data:") {
		return "", fmt.Errorf("%w: image %d is embedded, only file references are supported",
			ErrUnsupportedFormat, src)
	}
	return resolveURI(img.URI)
}
