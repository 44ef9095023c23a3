package scene

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/scene-ingest/internal/engine/texture"
	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/alloc"
	"github.com/Faultbox/scene-ingest/pkg/formats"
	"github.com/Faultbox/scene-ingest/pkg/math"
	"github.com/Faultbox/scene-ingest/pkg/pack"
)

// Loader loads scenes into a gpu.Factory. A Loader keeps no per-load state;
// each Load call builds its own LoadContext.
type Loader struct {
	factory           gpu.Factory
	fixup             math.Fixup
	alloc             alloc.Allocator
	decoder           ImageDecoder
	observer          MaterialObserver
	log               *zap.Logger
	policy            TexturePolicy
	releaseOnFailure  bool
	maxImageDimension int
}

// NewLoader creates a loader uploading into factory.
func NewLoader(factory gpu.Factory, opts ...Option) *Loader {
	l := &Loader{
		factory:          factory,
		fixup:            math.DefaultFixup(),
		alloc:            alloc.Default,
		log:              zap.NewNop(),
		policy:           TextureAbort,
		releaseOnFailure: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.decoder == nil {
		l.decoder = &texture.Decoder{MaxDimension: l.maxImageDimension, Alloc: l.alloc}
	}
	return l
}

// LoadContext is the state of one scene load, passed explicitly through the
// pipeline stages.
type LoadContext struct {
	Descriptor   *formats.Descriptor
	Fixup        math.Fixup
	Cache        *TextureCache
	Materializer *Materializer
	Log          *zap.Logger
}

func (l *Loader) newContext(desc *formats.Descriptor, log *zap.Logger) *LoadContext {
	m := NewMaterializer(l.factory, log)
	return &LoadContext{
		Descriptor:   desc,
		Fixup:        l.fixup,
		Cache:        NewTextureCache(desc.Dir, l.decoder, m, l.policy, log),
		Materializer: m,
		Log:          log,
	}
}

// Load reads the scene at path and uploads it. On failure no scene is
// returned and, unless disabled with WithReleaseOnFailure, every resource
// created so far is released.
func (l *Loader) Load(path string) (_ *Scene, err error) {
	start := time.Now()
	log := l.log.With(zap.String("scene", path))
	log.Info("loading scene")

	desc, err := formats.ParseSceneFile(path, formats.ParseOptions{Alloc: l.alloc})
	if err != nil {
		log.Error("scene parse failed", zap.Error(err))
		return nil, err
	}
	defer desc.Release()

	ctx := l.newContext(desc, log)
	defer func() {
		if err == nil {
			return
		}
		log.Error("scene load failed", zap.Error(err))
		if !l.releaseOnFailure {
			return
		}
		created := len(ctx.Materializer.handles)
		if rerr := ctx.Materializer.Release(); rerr != nil {
			log.Warn("releasing resources of failed load", zap.Error(rerr))
		} else if created > 0 {
			log.Info("released resources of failed load", zap.Int("count", created))
		}
	}()

	s := &Scene{
		Path:       path,
		Primitives: make([]Primitive, len(desc.Primitives)),
		Bounds:     math.EmptyBox(),
		Mirrored:   l.fixup.Mirrors(),
		resources:  ctx.Materializer,
	}
	for i := range desc.Primitives {
		p, err := ctx.loadPrimitive(&desc.Primitives[i])
		if err != nil {
			return nil, fmt.Errorf("%s: primitive %d: %w", path, i, err)
		}
		s.Primitives[i] = p
		s.Bounds = s.Bounds.Union(p.Bounds)
	}

	if l.observer != nil {
		for i := range s.Primitives {
			l.observer.OnMaterialBound(i, s.Primitives[i].Material)
		}
	}

	log.Info("scene loaded",
		zap.Int("primitives", len(s.Primitives)),
		zap.Int("textures", ctx.Cache.Len()),
		zap.Int("resources", len(ctx.Materializer.handles)),
		zap.Stringer("bounds", s.Bounds),
		zap.Bool("mirrored", s.Mirrored),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s, nil
}

// loadPrimitive reads, validates, packs and uploads one primitive and binds
// its material.
func (ctx *LoadContext) loadPrimitive(pd *formats.PrimitiveDesc) (Primitive, error) {
	p := Primitive{
		Index:       pd.Index,
		VertexCount: pd.VertexCount(),
		IndexCount:  pd.IndexCount(),
	}

	indices, err := pd.Indices.ReadIndices()
	if err != nil {
		return p, err
	}
	var in pack.Streams
	if in.Positions, err = pd.Position.ReadVec3(); err != nil {
		return p, err
	}
	if in.Normals, err = pd.Normal.ReadVec3(); err != nil {
		return p, err
	}
	if in.Tangents, err = pd.Tangent.ReadVec4(); err != nil {
		return p, err
	}
	if in.Texcoords, err = pd.Texcoord.ReadTexcoords(); err != nil {
		return p, err
	}
	if err := validateIndices(indices, p.VertexCount); err != nil {
		return p, err
	}

	out := pack.Compress(in, ctx.Fixup)
	p.Bounds = out.Bounds

	ctx.Log.Debug("primitive packed",
		zap.Int("primitive", p.Index),
		zap.Int("vertices", p.VertexCount),
		zap.Int("indices", p.IndexCount),
	)

	if p.IndexCount > 0 {
		name := fmt.Sprintf("primitive %d indices", p.Index)
		if p.IndexBuffer, err = ctx.Materializer.CreateIndexBuffer(name, indices); err != nil {
			return p, err
		}
	}
	if p.VertexCount > 0 {
		name := fmt.Sprintf("primitive %d positions", p.Index)
		if p.PositionBuffer, err = ctx.Materializer.CreateVertexBuffer(name, out.PositionBytes()); err != nil {
			return p, err
		}
		name = fmt.Sprintf("primitive %d varyings", p.Index)
		if p.VaryingBuffer, err = ctx.Materializer.CreateVertexBuffer(name, out.VaryingBytes()); err != nil {
			return p, err
		}
	}

	if p.Material, err = ctx.bindMaterial(&pd.Material); err != nil {
		return p, err
	}
	return p, nil
}

// validateIndices checks that every index addresses an existing vertex.
func validateIndices(indices []uint32, vertexCount int) error {
	for i, idx := range indices {
		if int64(idx) >= int64(vertexCount) {
			return fmt.Errorf("%w: index %d at position %d out of range for %d vertices",
				formats.ErrParse, idx, i, vertexCount)
		}
	}
	return nil
}

// bindMaterial converts the descriptor material and resolves its textures.
// Color channels are sampled as sRGB, data channels as linear.
func (ctx *LoadContext) bindMaterial(md *formats.MaterialDesc) (MaterialBinding, error) {
	b := MaterialBinding{
		Name:              md.Name,
		BaseColor:         Channel{Factor: md.BaseColorFactor},
		MetallicRoughness: Channel{Factor: [4]float32{0, md.RoughnessFactor, md.MetallicFactor, 0}},
		Normal:            Channel{Factor: [4]float32{md.NormalScale, 0, 0, 0}},
		Emissive:          Channel{Factor: [4]float32{md.EmissiveFactor[0], md.EmissiveFactor[1], md.EmissiveFactor[2], 0}},
	}

	textures := []struct {
		ref  string
		srgb bool
		ch   *Channel
	}{
		{md.BaseColorTexture, true, &b.BaseColor},
		{md.MetallicRoughnessTexture, false, &b.MetallicRoughness},
		{md.NormalTexture, false, &b.Normal},
		{md.EmissiveTexture, true, &b.Emissive},
	}
	for _, t := range textures {
		if t.ref == "" {
			continue
		}
		h, err := ctx.Cache.GetOrLoad(t.ref, t.srgb)
		if err != nil {
			return b, err
		}
		t.ch.Texture = h
		t.ch.Path = ctx.Cache.Resolve(t.ref)
	}
	return b, nil
}
