// Package config handles the runner configuration: built-in defaults that
// mirror the repository layout, an optional YAML file and flag overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the test directory when no file is given.
const DefaultFile = "unitrun.yaml"

// Config describes where tests live and which external tools build them.
type Config struct {
	// TestDir holds the utest.* files.
	TestDir string `yaml:"test_dir"`
	// Root is the repository root. ENVIRONMENT-* values and CODE-EXTRACT
	// sources are relative to it.
	Root string `yaml:"root"`

	Compiler      string `yaml:"compiler"`
	ExtractTool   string `yaml:"extract_tool"`
	DriverInclude string `yaml:"driver_include"`

	// HelperModules is appended to SearchPathVar for interpreted tests.
	HelperModules string `yaml:"helper_modules"`
	SearchPathVar string `yaml:"search_path_var"`

	// Interpreter runs interpreted tests when set. Otherwise the test file
	// is executed directly and must be executable.
	Interpreter string `yaml:"interpreter"`
}

// Default returns the configuration for the conventional layout, where the
// tests sit in <root>/test/unit. Paths derived from the test directory are
// left empty and filled in by Complete once every layer has been applied.
func Default(testDir string) *Config {
	return &Config{
		TestDir:       absOrSelf(testDir),
		Compiler:      "gcc",
		SearchPathVar: "PYTHONPATH",
	}
}

// Load reads a configuration file and layers it over base. Relative paths
// in the file are resolved against the file's directory.
func Load(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	return Parse(data, filepath.Dir(absPath), base)
}

// Parse parses YAML data over base. Relative paths are resolved against dir.
func Parse(data []byte, dir string, base *Config) (*Config, error) {
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	file.resolve(dir)

	cfg := *base
	cfg.Merge(&file)
	return &cfg, nil
}

// Complete fills in the paths not set explicitly, deriving them from the
// final TestDir and Root, and validates the result.
func (c *Config) Complete() error {
	if c.TestDir != "" {
		if c.Root == "" {
			c.Root = filepath.Dir(filepath.Dir(c.TestDir))
		}
		if c.HelperModules == "" {
			c.HelperModules = filepath.Join(filepath.Dir(c.TestDir), "modules", "python")
		}
	}
	if c.ExtractTool == "" && c.Root != "" {
		c.ExtractTool = filepath.Join(c.Root, "tools", "bin", "code-extract")
	}
	if c.DriverInclude == "" && c.Root != "" {
		c.DriverInclude = filepath.Join(c.Root, "driver")
	}
	return c.Validate()
}

// Merge copies every non-empty field of o into c.
func (c *Config) Merge(o *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.TestDir, o.TestDir)
	set(&c.Root, o.Root)
	set(&c.Compiler, o.Compiler)
	set(&c.ExtractTool, o.ExtractTool)
	set(&c.DriverInclude, o.DriverInclude)
	set(&c.HelperModules, o.HelperModules)
	set(&c.SearchPathVar, o.SearchPathVar)
	set(&c.Interpreter, o.Interpreter)
}

// resolve makes path-like fields absolute relative to dir. Tool names
// without a separator are left for PATH lookup.
func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.TestDir, &c.Root, &c.DriverInclude, &c.HelperModules} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	for _, p := range []*string{&c.Compiler, &c.ExtractTool, &c.Interpreter} {
		if *p != "" && !filepath.IsAbs(*p) && filepath.Base(*p) != *p {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TestDir == "" {
		return errors.New("test_dir is required")
	}
	if c.Root == "" {
		return errors.New("root is required")
	}
	if c.Compiler == "" {
		return errors.New("compiler is required")
	}
	if c.ExtractTool == "" {
		return errors.New("extract_tool is required")
	}

	info, err := os.Stat(c.TestDir)
	if err != nil {
		return fmt.Errorf("test_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("test_dir %q is not a directory", c.TestDir)
	}

	return nil
}

// SearchPath returns the value SearchPathVar should take: the current value
// with HelperModules appended.
func (c *Config) SearchPath(current string) string {
	if current == "" {
		return c.HelperModules
	}
	return current + string(os.PathListSeparator) + c.HelperModules
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
