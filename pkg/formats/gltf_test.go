package formats_test

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/scene-ingest/pkg/alloc"
	"github.com/Faultbox/scene-ingest/pkg/formats"
	"github.com/Faultbox/scene-ingest/pkg/formats/gltftest"
	"github.com/Faultbox/scene-ingest/pkg/math"
)

func triangleScene() *gltftest.Scene {
	return &gltftest.Scene{
		Primitives: []gltftest.Primitive{{Vertices: gltftest.Triangle(), Indices: []uint32{0, 1, 2}}},
	}
}

// countingAlloc records how many blocks are outstanding.
type countingAlloc struct {
	live int
}

func (a *countingAlloc) Alloc(size int) []byte {
	a.live++
	return alloc.Heap{}.Alloc(size)
}

func (a *countingAlloc) Free([]byte) { a.live-- }

func TestParseSceneFile_Triangle(t *testing.T) {
	path := triangleScene().Write(t, t.TempDir(), "tri.gltf")

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	defer desc.Release()

	if desc.NodeCount != 1 {
		t.Errorf("NodeCount = %d, want 1", desc.NodeCount)
	}
	if len(desc.Primitives) != 1 {
		t.Fatalf("got %d primitives, want 1", len(desc.Primitives))
	}
	p := desc.Primitives[0]
	if p.VertexCount() != 3 || p.IndexCount() != 3 {
		t.Errorf("counts = %d vertices / %d indices, want 3 / 3", p.VertexCount(), p.IndexCount())
	}

	pos, err := p.Position.ReadVec3()
	if err != nil {
		t.Fatalf("ReadVec3 failed: %v", err)
	}
	if pos[1] != (math.Vec3{X: 1}) {
		t.Errorf("position[1] = %v, want (1,0,0)", pos[1])
	}
	uv, err := p.Texcoord.ReadTexcoords()
	if err != nil {
		t.Fatalf("ReadTexcoords failed: %v", err)
	}
	if uv[2] != (math.Vec2{Y: 1}) {
		t.Errorf("texcoord[2] = %v, want (0,1)", uv[2])
	}
	tan, err := p.Tangent.ReadVec4()
	if err != nil {
		t.Fatalf("ReadVec4 failed: %v", err)
	}
	if tan[2].W != -1 {
		t.Errorf("tangent[2].w = %v, want -1", tan[2].W)
	}

	if p.Material != formats.DefaultMaterial() {
		t.Errorf("material = %+v, want glTF defaults", p.Material)
	}
}

func TestParseSceneFile_GLB(t *testing.T) {
	path := triangleScene().WriteGLB(t, t.TempDir(), "tri.glb")

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	defer desc.Release()

	idx, err := desc.Primitives[0].Indices.ReadIndices()
	if err != nil {
		t.Fatalf("ReadIndices failed: %v", err)
	}
	if len(idx) != 3 || idx[0] != 0 || idx[1] != 1 || idx[2] != 2 {
		t.Errorf("indices = %v, want [0 1 2]", idx)
	}
}

func TestParseSceneFile_PercentEncodedBuffer(t *testing.T) {
	scene := triangleScene()
	scene.BinName = "my mesh.bin"
	scene.Edit = func(doc map[string]any) {
		doc["buffers"].([]any)[0].(map[string]any)["uri"] = "my%20mesh.bin"
	}
	path := scene.Write(t, t.TempDir(), "tri.gltf")

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	desc.Release()
}

func TestParseSceneFile_DataURIBuffer(t *testing.T) {
	scene := triangleScene()
	_, bin := scene.Document()
	scene.Edit = func(doc map[string]any) {
		doc["buffers"].([]any)[0].(map[string]any)["uri"] = "data:application/octet-stream;base64," +
			base64.StdEncoding.EncodeToString(bin)
	}
	dir := t.TempDir()
	path := scene.Write(t, dir, "tri.gltf")
	os.Remove(filepath.Join(dir, "scene.bin"))

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	desc.Release()
}

func TestParseSceneFile_LowestSetWins(t *testing.T) {
	tests := []struct {
		name string
		edit func(attrs map[string]any)
	}{
		{
			name: "TEXCOORD_0 beats TEXCOORD_1",
			edit: func(attrs map[string]any) { attrs["TEXCOORD_1"] = attrs["NORMAL"] },
		},
		{
			name: "TEXCOORD_1 beats TEXCOORD_3",
			edit: func(attrs map[string]any) {
				attrs["TEXCOORD_1"] = attrs["TEXCOORD_0"]
				attrs["TEXCOORD_3"] = attrs["NORMAL"]
				delete(attrs, "TEXCOORD_0")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := triangleScene()
			scene.Edit = func(doc map[string]any) {
				tt.edit(primitiveAttrs(doc, 0))
			}
			path := scene.Write(t, t.TempDir(), "tri.gltf")

			desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
			if err != nil {
				t.Fatalf("ParseSceneFile failed: %v", err)
			}
			defer desc.Release()
			if got := desc.Primitives[0].Texcoord.Element; got != formats.ElementVec2 {
				t.Errorf("selected texcoord element %s, want VEC2", got)
			}
		})
	}
}

func TestParseSceneFile_Material(t *testing.T) {
	scene := triangleScene()
	scene.Primitives[0].Material = gltftest.Int(0)
	scene.Images = []string{"textures/albedo%20map.png", "textures/mr.png", "textures/normal.png", "textures/emissive.png"}
	scene.Materials = []map[string]any{{
		"name": "brick",
		"pbrMetallicRoughness": map[string]any{
			"baseColorFactor":          []float64{0.5, 0.25, 1, 1},
			"baseColorTexture":         map[string]any{"index": 0},
			"metallicFactor":           0.1,
			"roughnessFactor":          0.7,
			"metallicRoughnessTexture": map[string]any{"index": 1},
		},
		"normalTexture":   map[string]any{"index": 2, "scale": 1.0},
		"emissiveFactor":  []float64{1, 0.5, 0},
		"emissiveTexture": map[string]any{"index": 3},
		"extensions": map[string]any{
			"KHR_materials_emissive_strength": map[string]any{"emissiveStrength": 4.0},
		},
	}}
	path := scene.Write(t, t.TempDir(), "tri.gltf")

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	defer desc.Release()

	m := desc.Primitives[0].Material
	if m.BaseColorFactor != [4]float32{0.5, 0.25, 1, 1} {
		t.Errorf("BaseColorFactor = %v", m.BaseColorFactor)
	}
	if m.BaseColorTexture != "textures/albedo map.png" {
		t.Errorf("BaseColorTexture = %q", m.BaseColorTexture)
	}
	if m.MetallicFactor != 0.1 || m.RoughnessFactor != 0.7 {
		t.Errorf("metallic/roughness = %v/%v, want 0.1/0.7", m.MetallicFactor, m.RoughnessFactor)
	}
	if m.MetallicRoughnessTexture != "textures/mr.png" || m.NormalTexture != "textures/normal.png" {
		t.Errorf("textures = %q, %q", m.MetallicRoughnessTexture, m.NormalTexture)
	}
	if m.EmissiveFactor != [3]float32{4, 2, 0} {
		t.Errorf("EmissiveFactor = %v, want strength-scaled [4 2 0]", m.EmissiveFactor)
	}
	if m.EmissiveTexture != "textures/emissive.png" {
		t.Errorf("EmissiveTexture = %q", m.EmissiveTexture)
	}
}

func TestParseSceneFile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		scene func() *gltftest.Scene
		after func(dir string)
		want  error
	}{
		{
			name:  "missing buffer file",
			scene: triangleScene,
			after: func(dir string) { os.Remove(filepath.Join(dir, "scene.bin")) },
			want:  formats.ErrFileNotFound,
		},
		{
			name:  "short buffer file",
			scene: triangleScene,
			after: func(dir string) {
				name := filepath.Join(dir, "scene.bin")
				data, _ := os.ReadFile(name)
				os.WriteFile(name, data[:len(data)-4], 0o644)
			},
			want: formats.ErrIO,
		},
		{
			name: "index count not a multiple of 3",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Primitives[0].Indices = []uint32{0, 1, 2, 0}
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "line topology",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Primitives[0].Mode = gltftest.Int(1)
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "two meshes",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) {
					meshes := doc["meshes"].([]any)
					doc["meshes"] = append(meshes, meshes[0])
				}
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "no nodes",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) { doc["nodes"] = []any{} }
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "no primitives",
			scene: func() *gltftest.Scene {
				return &gltftest.Scene{}
			},
			want: formats.ErrParse,
		},
		{
			name: "missing tangent",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) { delete(primitiveAttrs(doc, 0), "TANGENT") }
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "normal count mismatch",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) {
					nrm := primitiveAttrs(doc, 0)["NORMAL"].(int)
					doc["accessors"].([]map[string]any)[nrm]["count"] = 2
				}
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "accessor outside buffer view",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) {
					pos := primitiveAttrs(doc, 0)["POSITION"].(int)
					doc["accessors"].([]map[string]any)[pos]["byteOffset"] = 4
				}
				return s
			},
			want: formats.ErrParse,
		},
		{
			name: "normal scale",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Primitives[0].Material = gltftest.Int(0)
				s.Images = []string{"n.png"}
				s.Materials = []map[string]any{{"normalTexture": map[string]any{"index": 0, "scale": 2.0}}}
				return s
			},
			want: formats.ErrUnsupportedFormat,
		},
		{
			name: "embedded image",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Primitives[0].Material = gltftest.Int(0)
				s.Images = []string{"data:image/png;base64,AAAA"}
				s.Materials = []map[string]any{{
					"pbrMetallicRoughness": map[string]any{"baseColorTexture": map[string]any{"index": 0}},
				}}
				return s
			},
			want: formats.ErrUnsupportedFormat,
		},
		{
			name: "asset version 1",
			scene: func() *gltftest.Scene {
				s := triangleScene()
				s.Edit = func(doc map[string]any) { doc["asset"] = map[string]any{"version": "1.0"} }
				return s
			},
			want: formats.ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := tt.scene().Write(t, dir, "scene.gltf")
			if tt.after != nil {
				tt.after(dir)
			}

			a := &countingAlloc{}
			desc, err := formats.ParseSceneFile(path, formats.ParseOptions{Alloc: a})
			if !errors.Is(err, tt.want) {
				t.Fatalf("got error %v, want %v", err, tt.want)
			}
			if desc != nil {
				t.Error("expected no descriptor on failure")
			}
			if a.live != 0 {
				t.Errorf("%d buffer blocks leaked", a.live)
			}
		})
	}
}

func TestParseSceneFile_NotFound(t *testing.T) {
	_, err := formats.ParseSceneFile(filepath.Join(t.TempDir(), "absent.gltf"), formats.ParseOptions{})
	if !errors.Is(err, formats.ErrFileNotFound) {
		t.Errorf("got error %v, want ErrFileNotFound", err)
	}
}

func TestParseSceneFile_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gltf")
	os.WriteFile(path, []byte(`{"asset": {"version": "2.0"`), 0o644)
	_, err := formats.ParseSceneFile(path, formats.ParseOptions{})
	if !errors.Is(err, formats.ErrParse) {
		t.Errorf("got error %v, want ErrParse", err)
	}
}

func TestDescriptor_Release(t *testing.T) {
	path := triangleScene().Write(t, t.TempDir(), "tri.gltf")
	a := &countingAlloc{}
	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{Alloc: a})
	if err != nil {
		t.Fatalf("ParseSceneFile failed: %v", err)
	}
	if a.live != 1 {
		t.Errorf("live blocks = %d, want 1", a.live)
	}
	desc.Release()
	if a.live != 0 {
		t.Errorf("live blocks after Release = %d, want 0", a.live)
	}
}

func primitiveAttrs(doc map[string]any, i int) map[string]any {
	mesh := doc["meshes"].([]any)[0].(map[string]any)
	return mesh["primitives"].([]map[string]any)[i]["attributes"].(map[string]any)
}
