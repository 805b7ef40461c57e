// Package suite discovers unit test files and reads the metadata they
// declare about themselves.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Kind selects how a test is prepared and executed.
type Kind string

const (
	// Interpreted tests are executable scripts run directly.
	Interpreted Kind = "interpreted"
	// Compiled tests are C sources built into an artifact before running.
	Compiled Kind = "compiled"
)

// testFilePattern is utest.<group>.<index>.<ext>.
var testFilePattern = regexp.MustCompile(`^utest\.(\d{3})\.(\d{4})\.(py|c)$`)

// KindFromExtension maps a test file extension to its kind.
func KindFromExtension(ext string) (Kind, error) {
	switch ext {
	case "py":
		return Interpreted, nil
	case "c":
		return Compiled, nil
	default:
		return "", fmt.Errorf("unsupported test extension: %q", ext)
	}
}

// Descriptor is one discovered test file.
type Descriptor struct {
	Name string
	Kind Kind
	Path string

	// Group and Index are the numeric parts of the file name.
	Group string
	Index string

	once     sync.Once
	metadata *Metadata
	err      error
}

// NewDescriptor builds a descriptor for the test file name inside dir.
func NewDescriptor(dir, name string) (*Descriptor, error) {
	match := testFilePattern.FindStringSubmatch(name)
	if match == nil {
		return nil, fmt.Errorf("not a test file name: %q", name)
	}
	kind, err := KindFromExtension(match[3])
	if err != nil {
		return nil, err
	}
	return &Descriptor{
		Name:  name,
		Kind:  kind,
		Path:  filepath.Join(dir, name),
		Group: match[1],
		Index: match[2],
	}, nil
}

// IsTestFile reports whether name follows the test naming convention.
func IsTestFile(name string) bool {
	return testFilePattern.MatchString(name)
}

// Metadata loads the test's self-description on first use and returns the
// cached result afterwards.
func (d *Descriptor) Metadata() (*Metadata, error) {
	d.once.Do(func() {
		d.metadata, d.err = d.ReadSelfDescription()
	})
	return d.metadata, d.err
}

// ReadSelfDescription scans the test file from scratch. Calling it again
// yields the same values, never accumulated duplicates.
func (d *Descriptor) ReadSelfDescription() (*Metadata, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test file: %w", err)
	}
	defer f.Close()

	m, err := ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	return m, nil
}

// Discover returns a descriptor for every test file in dir, in directory
// listing order. Other entries are skipped.
func Discover(dir string) ([]*Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read test directory: %w", err)
	}

	var tests []*Descriptor
	for _, entry := range entries {
		if entry.IsDir() || !IsTestFile(entry.Name()) {
			continue
		}
		d, err := NewDescriptor(dir, entry.Name())
		if err != nil {
			return nil, err
		}
		tests = append(tests, d)
	}

	return tests, nil
}

// Filter keeps the tests whose names are listed, preserving discovery
// order. An empty list keeps everything. Names that match no test are
// returned so the caller can report them.
func Filter(tests []*Descriptor, names []string) (kept []*Descriptor, unknown []string) {
	if len(names) == 0 {
		return tests, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = false
	}
	for _, t := range tests {
		if _, ok := wanted[t.Name]; ok {
			wanted[t.Name] = true
			kept = append(kept, t)
		}
	}
	for _, n := range names {
		if !wanted[n] {
			unknown = append(unknown, n)
		}
	}
	return kept, unknown
}
