// Package config handles stapel.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/you-not-fish/stapel/internal/codegen"
	"github.com/you-not-fish/stapel/internal/rtabi"
)

// FileName is the name of the project configuration file.
const FileName = "stapel.toml"

// Config represents a stapel.toml project configuration.
type Config struct {
	Build   Build   `toml:"build"`
	Codegen Codegen `toml:"codegen"`
	Log     Log     `toml:"log"`

	// Path is the file the configuration was read from; empty for
	// defaults.
	Path string `toml:"-"`
}

// Build configures the external toolchain.
type Build struct {
	Assembler string `toml:"assembler"`
	Linker    string `toml:"linker"`
	Output    string `toml:"output"` // default: source path without .spl
	KeepAsm   bool   `toml:"keep-asm"`
}

// Codegen configures code generation.
type Codegen struct {
	ReturnStackDepth int  `toml:"return-stack-depth"`
	Comments         bool `toml:"comments"`
	ExpandInlines    bool `toml:"expand-inlines"`
}

// Log configures diagnostics logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no stapel.toml exists.
func Default() *Config {
	return &Config{
		Build: Build{
			Assembler: "nasm",
			Linker:    "ld",
		},
		Codegen: Codegen{
			ReturnStackDepth: rtabi.DefaultReturnStackDepth,
			Comments:         true,
			ExpandInlines:    true,
		},
	}
}

// Parse decodes a stapel.toml document on top of the defaults. Keys the
// configuration does not know are errors.
func Parse(data []byte, path string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	c.Path = path
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load parses the stapel.toml file in dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(data, path)
}

// FindAndLoad walks up from startDir to find a stapel.toml file, then
// loads it. Without one, it returns the defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Codegen.ReturnStackDepth <= 0 {
		return fmt.Errorf("codegen.return-stack-depth must be positive, got %d", c.Codegen.ReturnStackDepth)
	}
	if c.Codegen.ReturnStackDepth > rtabi.MaxReturnStackDepth {
		return fmt.Errorf("codegen.return-stack-depth must be at most %d, got %d",
			rtabi.MaxReturnStackDepth, c.Codegen.ReturnStackDepth)
	}
	if c.Build.Assembler == "" {
		return fmt.Errorf("build.assembler must not be empty")
	}
	if c.Build.Linker == "" {
		return fmt.Errorf("build.linker must not be empty")
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	return nil
}

// CodegenConfig returns the code generator settings.
func (c *Config) CodegenConfig() codegen.Config {
	return codegen.Config{
		ReturnStackDepth: c.Codegen.ReturnStackDepth,
		Comments:         c.Codegen.Comments,
	}
}

// OutputPath returns the executable path for source: the configured output
// if set, else the source path without its .spl extension.
func (c *Config) OutputPath(source string) string {
	if c.Build.Output != "" {
		if c.Path != "" && !filepath.IsAbs(c.Build.Output) {
			return filepath.Join(filepath.Dir(c.Path), c.Build.Output)
		}
		return c.Build.Output
	}
	return strings.TrimSuffix(source, ".spl")
}
