package config

import "flag"

var (
	flagConfig          = flag.String("config", "", "Path to config file")
	flagDebug           = flag.Bool("debug", false, "Enable debug logging")
	flagScene           = flag.String("scene", "", "Path to the .gltf or .glb scene")
	flagBackend         = flag.String("backend", "", "GPU backend: memory or gl")
	flagPreset          = flag.String("preset", "", "Fixup preset: identity, swap-yz, rotate-y90, sponza")
	flagTextureFallback = flag.Bool("texture-fallback", false, "Bind a white texture instead of failing on bad images")
	flagWriteConfig     = flag.Bool("write-config", false, "Write the effective config to the user config directory and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigRequested reports whether -write-config was given.
func WriteConfigRequested() bool {
	return *flagWriteConfig
}

// applyFlags applies CLI flag overrides to the config. A positional argument
// is taken as the scene path when -scene is not given.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagScene != "" {
		cfg.Scene.Path = *flagScene
	} else if flag.NArg() > 0 {
		cfg.Scene.Path = flag.Arg(0)
	}
	if *flagBackend != "" {
		cfg.GPU.Backend = *flagBackend
	}
	if *flagPreset != "" {
		cfg.Scene.Fixup.Preset = *flagPreset
	}
	if *flagTextureFallback {
		cfg.Scene.TextureFailure = "fallback"
	}
}
