// Package config handles rove.toml engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/rove-lang/rove/compiler"
	"github.com/rove-lang/rove/vm"
)

// File represents a rove.toml configuration file.
type File struct {
	Engine EngineSection `toml:"engine"`
	Limits LimitsSection `toml:"limits"`
}

// EngineSection carries language-level settings.
type EngineSection struct {
	IntWidth     int    `toml:"int-width"`
	DisableFloat bool   `toml:"disable-float"`
	OptLevel     string `toml:"opt-level"`
}

// LimitsSection carries the safety caps; 0 means unlimited.
type LimitsSection struct {
	MaxOperations uint64 `toml:"max-operations"`
	MaxCallDepth  int    `toml:"max-call-depth"`
	MaxStringLen  int    `toml:"max-string-len"`
	MaxArrayLen   int    `toml:"max-array-len"`
	MaxMapLen     int    `toml:"max-map-len"`
	MaxExprDepth  int    `toml:"max-expr-depth"`
}

// Load parses a rove.toml file from the given directory. A missing
// file yields the defaults.
func Load(dir string) (vm.Config, error) {
	path := filepath.Join(dir, "rove.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return vm.Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML configuration bytes; path only labels errors.
func Parse(data []byte, path string) (vm.Config, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return vm.Config{}, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg := Default()
	if f.Engine.IntWidth != 0 {
		if f.Engine.IntWidth != 32 && f.Engine.IntWidth != 64 {
			return vm.Config{}, fmt.Errorf("%s: int-width must be 32 or 64, got %d", path, f.Engine.IntWidth)
		}
		cfg.IntWidth = f.Engine.IntWidth
	}
	cfg.DisableFloat = f.Engine.DisableFloat

	switch f.Engine.OptLevel {
	case "", "simple":
		cfg.OptLevel = compiler.OptimizeSimple
	case "none":
		cfg.OptLevel = compiler.OptimizeNone
	case "full":
		cfg.OptLevel = compiler.OptimizeFull
	default:
		return vm.Config{}, fmt.Errorf("%s: opt-level must be none, simple or full, got %q", path, f.Engine.OptLevel)
	}

	cfg.Limits = vm.Limits{
		MaxOperations: f.Limits.MaxOperations,
		MaxCallDepth:  f.Limits.MaxCallDepth,
		MaxStringLen:  f.Limits.MaxStringLen,
		MaxArrayLen:   f.Limits.MaxArrayLen,
		MaxMapLen:     f.Limits.MaxMapLen,
		MaxExprDepth:  f.Limits.MaxExprDepth,
	}
	return cfg, nil
}

// Default is the configuration used when no rove.toml is present:
// 64-bit integers, floats on, simple folding, no limits.
func Default() vm.Config {
	return vm.Config{
		IntWidth: 64,
		OptLevel: compiler.OptimizeSimple,
	}
}
