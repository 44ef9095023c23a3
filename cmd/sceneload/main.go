// Package main is the entry point for the scene loader. It loads one glTF
// scene into the configured GPU backend and prints what was created.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Faultbox/scene-ingest/internal/config"
	"github.com/Faultbox/scene-ingest/internal/engine/window"
	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/internal/gpu/glgpu"
	"github.com/Faultbox/scene-ingest/internal/logger"
	"github.com/Faultbox/scene-ingest/internal/scene"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if config.WriteConfigRequested() {
		if err := cfg.Save(); err != nil {
			logger.Error("failed to write config", zap.Error(err))
			return 1
		}
		logger.Info("config written", zap.String("path", filepath.Join(config.ConfigDir(), config.FileName)))
		return 0
	}

	if cfg.Scene.Path == "" {
		fmt.Fprintln(os.Stderr, "usage: sceneload [flags] <scene.gltf|scene.glb>")
		return 2
	}
	logger.Sugar.Debugf("config: %+v", cfg)

	factory, closeBackend, err := newBackend(cfg)
	if err != nil {
		logger.Error("failed to create gpu backend", zap.String("backend", cfg.GPU.Backend), zap.Error(err))
		return 1
	}
	defer closeBackend()

	opts, err := cfg.LoaderOptions()
	if err != nil {
		logger.Error("invalid scene options", zap.Error(err))
		return 1
	}
	opts = append(opts, scene.WithLogger(logger.Log))

	s, err := scene.NewLoader(factory, opts...).Load(cfg.Scene.Path)
	if err != nil {
		logger.Error("failed to load scene", zap.Error(err))
		return 1
	}

	printSummary(os.Stdout, s)

	if err := s.Release(); err != nil {
		logger.Warn("releasing scene resources", zap.Error(err))
	}
	return 0
}

// newBackend creates the configured factory and a function tearing it down.
func newBackend(cfg *config.Config) (gpu.Factory, func(), error) {
	switch cfg.GPU.Backend {
	case config.BackendGL:
		w, err := window.New(window.Config{
			Title:  "sceneload",
			Width:  cfg.GPU.WindowWidth,
			Height: cfg.GPU.WindowHeight,
			Hidden: true,
		}, logger.Log)
		if err != nil {
			return nil, nil, err
		}
		return glgpu.New(), w.Close, nil
	default:
		return gpu.NewMemoryFactory(), func() {}, nil
	}
}

func printSummary(out io.Writer, s *scene.Scene) {
	fmt.Fprintf(out, "scene %s\n", s.Path)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIM\tVERTICES\tINDICES\tMATERIAL\tBOUNDS")
	for _, p := range s.Primitives {
		name := p.Material.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n", p.Index, p.VertexCount, p.IndexCount, name, p.Bounds)
	}
	tw.Flush()
	fmt.Fprintf(out, "bounds %s\n", s.Bounds)
	if !s.Bounds.IsEmpty() {
		c, size := s.Bounds.Center(), s.Bounds.Size()
		fmt.Fprintf(out, "center (%g, %g, %g) size (%g, %g, %g)\n", c.X, c.Y, c.Z, size.X, size.Y, size.Z)
	}
	fmt.Fprintf(out, "mirrored %t\n", s.Mirrored)
	fmt.Fprintf(out, "resources %d\n", len(s.Resources()))
}
