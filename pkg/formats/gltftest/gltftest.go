// Package gltftest synthesizes small glTF and GLB scenes for tests.
package gltftest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// glTF component type codes.
const (
	Ubyte  = 5121
	Ushort = 5123
	Uint   = 5125
	Float  = 5126
)

// Vertex is one vertex of a fixture primitive.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Tangent  [4]float32
	UV       [2]float32
}

// Primitive is one mesh primitive. IndexComponent defaults to Ushort.
type Primitive struct {
	Vertices       []Vertex
	Indices        []uint32
	IndexComponent int
	Material       *int
	Mode           *int
}

// Scene describes a single-mesh document with one node.
type Scene struct {
	Primitives []Primitive
	Materials  []map[string]any
	Images     []string // texture i samples image i
	BinName    string   // defaults to "scene.bin"

	// Edit may change the JSON document before it is written.
	Edit func(doc map[string]any)
}

// Triangle returns three vertices of a right triangle in the XY plane with
// +Z normals, +X tangents and distinct texcoords.
func Triangle() []Vertex {
	return []Vertex{
		{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}, Tangent: [4]float32{1, 0, 0, 1}, UV: [2]float32{0, 0}},
		{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, 1}, Tangent: [4]float32{1, 0, 0, 1}, UV: [2]float32{1, 0}},
		{Position: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, 1}, Tangent: [4]float32{1, 0, 0, -1}, UV: [2]float32{0, 1}},
	}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Document builds the JSON document and the binary buffer it references.
func (s *Scene) Document() (map[string]any, []byte) {
	var bin bytes.Buffer
	var views, accessors []map[string]any

	add := func(data any, count int, component int, typ string) int {
		for bin.Len()%4 != 0 {
			bin.WriteByte(0)
		}
		offset := bin.Len()
		binary.Write(&bin, binary.LittleEndian, data)
		views = append(views, map[string]any{
			"buffer":     0,
			"byteOffset": offset,
			"byteLength": bin.Len() - offset,
		})
		accessors = append(accessors, map[string]any{
			"bufferView":    len(views) - 1,
			"componentType": component,
			"count":         count,
			"type":          typ,
		})
		return len(accessors) - 1
	}

	prims := make([]map[string]any, 0, len(s.Primitives))
	for _, p := range s.Primitives {
		n := len(p.Vertices)
		pos := make([][3]float32, n)
		nrm := make([][3]float32, n)
		tan := make([][4]float32, n)
		uv := make([][2]float32, n)
		for i, v := range p.Vertices {
			pos[i], nrm[i], tan[i], uv[i] = v.Position, v.Normal, v.Tangent, v.UV
		}
		attrs := map[string]any{
			"POSITION":   add(pos, n, Float, "VEC3"),
			"NORMAL":     add(nrm, n, Float, "VEC3"),
			"TANGENT":    add(tan, n, Float, "VEC4"),
			"TEXCOORD_0": add(uv, n, Float, "VEC2"),
		}

		var indices any
		component := p.IndexComponent
		switch component {
		case Ubyte:
			b := make([]uint8, len(p.Indices))
			for i, v := range p.Indices {
				b[i] = uint8(v)
			}
			indices = b
		case Uint:
			indices = p.Indices
		default:
			component = Ushort
			h := make([]uint16, len(p.Indices))
			for i, v := range p.Indices {
				h[i] = uint16(v)
			}
			indices = h
		}

		prim := map[string]any{
			"attributes": attrs,
			"indices":    add(indices, len(p.Indices), component, "SCALAR"),
		}
		if p.Material != nil {
			prim["material"] = *p.Material
		}
		if p.Mode != nil {
			prim["mode"] = *p.Mode
		}
		prims = append(prims, prim)
	}
	for bin.Len()%4 != 0 {
		bin.WriteByte(0)
	}

	name := s.BinName
	if name == "" {
		name = "scene.bin"
	}
	doc := map[string]any{
		"asset":       map[string]any{"version": "2.0"},
		"scene":       0,
		"scenes":      []any{map[string]any{"nodes": []int{0}}},
		"nodes":       []any{map[string]any{"mesh": 0}},
		"meshes":      []any{map[string]any{"primitives": prims}},
		"buffers":     []any{map[string]any{"uri": name, "byteLength": bin.Len()}},
		"bufferViews": views,
		"accessors":   accessors,
	}
	if len(s.Materials) > 0 {
		doc["materials"] = s.Materials
	}
	if len(s.Images) > 0 {
		images := make([]any, len(s.Images))
		textures := make([]any, len(s.Images))
		for i, uri := range s.Images {
			images[i] = map[string]any{"uri": uri}
			textures[i] = map[string]any{"source": i}
		}
		doc["images"] = images
		doc["textures"] = textures
	}
	if s.Edit != nil {
		s.Edit(doc)
	}
	return doc, bin.Bytes()
}

// Write stores the scene as dir/name (.gltf) plus its sibling buffer file and
// returns the descriptor path.
func (s *Scene) Write(t testing.TB, dir, name string) string {
	t.Helper()
	doc, bin := s.Document()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}

	binName := s.BinName
	if binName == "" {
		binName = "scene.bin"
	}
	if err := os.WriteFile(filepath.Join(dir, binName), bin, 0o644); err != nil {
		t.Fatalf("write buffer: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

// WriteGLB stores the scene as a single binary container and returns its path.
func (s *Scene) WriteGLB(t testing.TB, dir, name string) string {
	t.Helper()
	doc, bin := s.Document()
	buffers := doc["buffers"].([]any)
	delete(buffers[0].(map[string]any), "uri")
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	for len(raw)%4 != 0 {
		raw = append(raw, ' ')
	}

	var out bytes.Buffer
	total := 12 + 8 + len(raw) + 8 + len(bin)
	binary.Write(&out, binary.LittleEndian, [3]uint32{0x46546c67, 2, uint32(total)})
	binary.Write(&out, binary.LittleEndian, [2]uint32{uint32(len(raw)), 0x4e4f534a})
	out.Write(raw)
	binary.Write(&out, binary.LittleEndian, [2]uint32{uint32(len(bin)), 0x004e4942})
	out.Write(bin)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write glb: %v", err)
	}
	return path
}
