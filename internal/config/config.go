// Package config handles scene-ingest configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/scene-ingest/internal/engine/texture"
	"github.com/Faultbox/scene-ingest/internal/scene"
	"github.com/Faultbox/scene-ingest/pkg/math"
)

// GPU backends.
const (
	BackendMemory = "memory"
	BackendGL     = "gl"
)

// Config holds all settings.
type Config struct {
	Scene   SceneConfig   `yaml:"scene"`
	GPU     GPUConfig     `yaml:"gpu"`
	Logging LoggingConfig `yaml:"logging"`
}

// SceneConfig holds loader settings.
type SceneConfig struct {
	Path              string      `yaml:"path"`
	Fixup             FixupConfig `yaml:"fixup"`
	MaxImageDimension int         `yaml:"max_image_dimension"`
	TextureFailure    string      `yaml:"texture_failure"` // abort | fallback
	ReleaseOnFailure  bool        `yaml:"release_on_failure"`
}

// FixupConfig selects the coordinate fixup. Scale and Offset, when set,
// override the preset's values.
type FixupConfig struct {
	Preset string    `yaml:"preset"`
	Scale  float32   `yaml:"scale,omitempty"`
	Offset []float32 `yaml:"offset,omitempty"`
}

// GPUConfig holds upload backend settings.
type GPUConfig struct {
	Backend      string `yaml:"backend"` // memory | gl
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scene: SceneConfig{
			Fixup:             FixupConfig{Preset: "swap-yz"},
			MaxImageDimension: texture.DefaultMaxDimension,
			TextureFailure:    scene.TextureAbort.String(),
			ReleaseOnFailure:  true,
		},
		GPU: GPUConfig{
			Backend:      BackendMemory,
			WindowWidth:  64,
			WindowHeight: 64,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Fixup resolves the configured preset and overrides.
func (c *FixupConfig) Fixup() (math.Fixup, error) {
	fx, err := math.FixupPreset(c.Preset)
	if err != nil {
		return fx, err
	}
	if c.Scale != 0 {
		fx.Scale = c.Scale
	}
	switch len(c.Offset) {
	case 0:
	case 3:
		fx.Offset = math.Vec3{X: c.Offset[0], Y: c.Offset[1], Z: c.Offset[2]}
	default:
		return fx, fmt.Errorf("fixup offset needs 3 components, got %d", len(c.Offset))
	}
	return fx, nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.GPU.Backend {
	case BackendMemory, BackendGL:
	default:
		return fmt.Errorf("unknown gpu backend %q", c.GPU.Backend)
	}
	if c.Scene.MaxImageDimension < 0 {
		return fmt.Errorf("max_image_dimension must not be negative, got %d", c.Scene.MaxImageDimension)
	}
	if _, err := scene.ParseTexturePolicy(c.Scene.TextureFailure); err != nil {
		return err
	}
	if _, err := c.Scene.Fixup.Fixup(); err != nil {
		return err
	}
	return nil
}

// LoaderOptions converts the scene section into loader options.
func (c *Config) LoaderOptions() ([]scene.Option, error) {
	fx, err := c.Scene.Fixup.Fixup()
	if err != nil {
		return nil, err
	}
	policy, err := scene.ParseTexturePolicy(c.Scene.TextureFailure)
	if err != nil {
		return nil, err
	}
	return []scene.Option{
		scene.WithFixup(fx),
		scene.WithTexturePolicy(policy),
		scene.WithReleaseOnFailure(c.Scene.ReleaseOnFailure),
		scene.WithMaxImageDimension(c.Scene.MaxImageDimension),
	}, nil
}
