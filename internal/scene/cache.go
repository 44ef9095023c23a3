package scene

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/scene-ingest/internal/engine/texture"
	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/formats"
)

// ImageDecoder turns encoded image bytes into RGBA8 pixels.
type ImageDecoder interface {
	Decode(data []byte, srgb bool) (*texture.Image, error)
}

// imageReleaser is implemented by decoders that own the pixel memory.
type imageReleaser interface {
	Release(img *texture.Image)
}

var fallbackPixel = []byte{0xff, 0xff, 0xff, 0xff}

// TextureCache memoizes textures by resolved path for one scene load. The
// first request for a path decides its format. Not safe for concurrent use.
type TextureCache struct {
	dir          string
	decoder      ImageDecoder
	materializer *Materializer
	policy       TexturePolicy
	log          *zap.Logger

	entries  map[string]gpu.Handle
	fallback gpu.Handle
}

// NewTextureCache creates a cache resolving references against dir.
func NewTextureCache(dir string, decoder ImageDecoder, m *Materializer, policy TexturePolicy, log *zap.Logger) *TextureCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &TextureCache{
		dir:          dir,
		decoder:      decoder,
		materializer: m,
		policy:       policy,
		log:          log,
		entries:      make(map[string]gpu.Handle),
	}
}

// Resolve returns the cache key of a slash-separated reference: the cleaned
// path joined to the scene directory.
func (c *TextureCache) Resolve(ref string) string {
	return filepath.Clean(filepath.Join(c.dir, filepath.FromSlash(ref)))
}

// Len returns the number of cached paths.
func (c *TextureCache) Len() int {
	return len(c.entries)
}

// GetOrLoad returns the texture for ref, decoding and uploading it on the
// first request.
func (c *TextureCache) GetOrLoad(ref string, forceSRGB bool) (gpu.Handle, error) {
	key := c.Resolve(ref)
	if h, ok := c.entries[key]; ok {
		c.log.Debug("texture cache hit", zap.String("path", key))
		return h, nil
	}
	c.log.Debug("texture cache miss", zap.String("path", key), zap.Bool("srgb", forceSRGB))

	img, err := c.decode(key, forceSRGB)
	if err != nil {
		if c.policy != TextureFallback {
			return 0, err
		}
		c.log.Warn("texture unusable, binding fallback",
			zap.String("path", key),
			zap.Error(err),
		)
		h, ferr := c.fallbackTexture()
		if ferr != nil {
			return 0, ferr
		}
		c.entries[key] = h
		return h, nil
	}
	if r, ok := c.decoder.(imageReleaser); ok {
		defer r.Release(img)
	}

	h, err := c.materializer.CreateTexture(key, img)
	if err != nil {
		return 0, err
	}
	c.entries[key] = h
	return h, nil
}

func (c *TextureCache) decode(path string, srgb bool) (*texture.Image, error) {
	data, err := formats.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}
	img, err := c.decoder.Decode(data, srgb)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	return img, nil
}

// fallbackTexture creates the 1x1 white texture once per cache.
func (c *TextureCache) fallbackTexture() (gpu.Handle, error) {
	if c.fallback != 0 {
		return c.fallback, nil
	}
	img := &texture.Image{Width: 1, Height: 1, Format: gpu.FormatRGBA8, Pix: fallbackPixel}
	h, err := c.materializer.CreateTexture("fallback", img)
	if err != nil {
		return 0, err
	}
	c.fallback = h
	return h, nil
}
