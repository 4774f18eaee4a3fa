/*
Package config provides type-safe configuration extraction from map[string]any.

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values. Pipeline
settings typically arrive as nested YAML, so Section gives access to sub-maps
without type assertions:

	cfg, err := config.FromFile("uilens.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	capCfg := cfg.Section("capture")
	width := capCfg.Int("viewport_width", 1280)
	timeout := capCfg.Duration("timeout", 30*time.Second)

	cmp := cfg.Section("compare")
	threshold := cmp.Float("pass_threshold", 0.95)

Duration handles multiple input types: strings parsed with time.ParseDuration,
int/float64 interpreted as seconds, and time.Duration used directly. Int refuses
float64 values with a fractional part rather than silently truncating.

Config is safe for concurrent read access. The underlying map is not modified
after creation.
*/
package config
