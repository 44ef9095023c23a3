package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/scene-ingest/pkg/alloc"
	"github.com/Faultbox/scene-ingest/pkg/math"
)

// TexturePolicy decides what happens when a texture cannot be read or decoded.
type TexturePolicy int

const (
	// TextureAbort fails the whole load.
	TextureAbort TexturePolicy = iota
	// TextureFallback binds a 1x1 white texture and continues.
	TextureFallback
)

// String returns the configuration name of the policy.
func (p TexturePolicy) String() string {
	switch p {
	case TextureAbort:
		return "abort"
	case TextureFallback:
		return "fallback"
	default:
		return fmt.Sprintf("TexturePolicy(%d)", int(p))
	}
}

// ParseTexturePolicy parses "abort" or "fallback".
func ParseTexturePolicy(s string) (TexturePolicy, error) {
	switch s {
	case "", "abort":
		return TextureAbort, nil
	case "fallback":
		return TextureFallback, nil
	default:
		return TextureAbort, fmt.Errorf("unknown texture failure policy %q", s)
	}
}

// MaterialObserver is told about every material binding of a loaded scene,
// in primitive order, once the load has succeeded.
type MaterialObserver interface {
	OnMaterialBound(primitive int, material MaterialBinding)
}

// MaterialObserverFunc adapts a function to MaterialObserver.
type MaterialObserverFunc func(primitive int, material MaterialBinding)

// OnMaterialBound calls f.
func (f MaterialObserverFunc) OnMaterialBound(primitive int, material MaterialBinding) {
	f(primitive, material)
}

// Option configures a Loader.
type Option func(*Loader)

// WithFixup sets the coordinate fixup applied to positions and directions.
func WithFixup(fx math.Fixup) Option {
	return func(l *Loader) {
		l.fixup = fx
	}
}

// WithAllocator sets the allocator for parsed buffers and decoded pixels.
func WithAllocator(a alloc.Allocator) Option {
	return func(l *Loader) {
		l.alloc = a
	}
}

// WithDecoder replaces the image decoder.
func WithDecoder(d ImageDecoder) Option {
	return func(l *Loader) {
		l.decoder = d
	}
}

// WithObserver registers the material observer.
func WithObserver(o MaterialObserver) Option {
	return func(l *Loader) {
		l.observer = o
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// WithTexturePolicy sets the texture failure policy.
func WithTexturePolicy(p TexturePolicy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithReleaseOnFailure controls whether a failed load frees the GPU
// resources it already created. Enabled by default.
func WithReleaseOnFailure(release bool) Option {
	return func(l *Loader) {
		l.releaseOnFailure = release
	}
}

// WithMaxImageDimension sets the largest accepted image width or height for
// the default decoder.
func WithMaxImageDimension(n int) Option {
	return func(l *Loader) {
		l.maxImageDimension = n
	}
}
