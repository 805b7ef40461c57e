package suite

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Tags understood by the runner. Any other tag is kept but not interpreted.
const (
	TagExpectedExitCode  = "EXPECTED_EXIT_CODE"
	TagCodeExtract       = "CODE-EXTRACT"
	TagEnvironmentPrefix = "ENVIRONMENT-"
)

var (
	expectedExitCodePattern = regexp.MustCompile(`^#EXPECTED_EXIT_CODE: (\d+)`)
	tagPattern              = regexp.MustCompile(`^#([a-zA-Z0-9\-_]+):\s*(.+)`)
	extractPattern          = regexp.MustCompile(`^([a-zA-Z0-9/\.\-_]+)::(.+)`)
)

// EnvVar is a variable exported into a test's environment.
type EnvVar struct {
	Name  string
	Value string
}

// String renders the variable as NAME=VALUE.
func (e EnvVar) String() string {
	return e.Name + "=" + e.Value
}

// Extract names a code fragment to pull out of a source file.
type Extract struct {
	Source string
	Name   string
}

// Metadata is the self-description declared by a test file: an ordered
// mapping from tag to every value declared for it.
type Metadata struct {
	keys   []string
	values map[string][]string
}

// NewMetadata returns metadata holding only the defaults.
func NewMetadata() *Metadata {
	m := &Metadata{values: make(map[string][]string)}
	m.set(TagExpectedExitCode, "0")
	return m
}

// ParseMetadata scans every line of r for tags. Lines that carry no tag
// are ignored, so tags may appear anywhere in the file. Line length is
// unbounded.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	m := NewMetadata()

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			m.scanLine(strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
	}

	return m, nil
}

func (m *Metadata) scanLine(line string) {
	if !strings.HasPrefix(line, "#") {
		return
	}
	if match := expectedExitCodePattern.FindStringSubmatch(line); match != nil {
		m.set(TagExpectedExitCode, match[1])
		return
	}
	if match := tagPattern.FindStringSubmatch(line); match != nil {
		m.add(match[1], match[2])
	}
}

func (m *Metadata) set(tag, value string) {
	if _, ok := m.values[tag]; !ok {
		m.keys = append(m.keys, tag)
	}
	m.values[tag] = []string{value}
}

func (m *Metadata) add(tag, value string) {
	if _, ok := m.values[tag]; !ok {
		m.keys = append(m.keys, tag)
	}
	m.values[tag] = append(m.values[tag], value)
}

// Keys returns tags in order of first appearance.
func (m *Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Values returns every value declared for tag, in declaration order.
func (m *Metadata) Values(tag string) []string {
	return append([]string(nil), m.values[tag]...)
}

// First returns the first value declared for tag.
func (m *Metadata) First(tag string) (string, bool) {
	v := m.values[tag]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Has reports whether tag was declared (or defaulted).
func (m *Metadata) Has(tag string) bool {
	_, ok := m.values[tag]
	return ok
}

// ExpectedExitCode returns the declared exit code, 0 by default. A tag
// whose value is not a plain non-negative integer is an error.
func (m *Metadata) ExpectedExitCode() (int, error) {
	raw := m.values[TagExpectedExitCode]
	if len(raw) != 1 {
		return 0, fmt.Errorf("invalid %s: %q", TagExpectedExitCode, raw)
	}
	code, err := strconv.Atoi(raw[0])
	if err != nil || code < 0 {
		return 0, fmt.Errorf("invalid %s: %q", TagExpectedExitCode, raw[0])
	}
	return code, nil
}

// Environment returns one variable per ENVIRONMENT-<NAME> tag, in tag
// order. Only the first declared value of each tag is used.
func (m *Metadata) Environment() []EnvVar {
	var vars []EnvVar
	for _, key := range m.keys {
		name, ok := strings.CutPrefix(key, TagEnvironmentPrefix)
		if !ok || name == "" {
			continue
		}
		value, _ := m.First(key)
		vars = append(vars, EnvVar{Name: name, Value: value})
	}
	return vars
}

// Extracts returns the well-formed CODE-EXTRACT entries in declaration
// order. Entries that are not of the form <source>::<name> are skipped.
func (m *Metadata) Extracts() []Extract {
	var extracts []Extract
	for _, line := range m.values[TagCodeExtract] {
		match := extractPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		extracts = append(extracts, Extract{Source: match[1], Name: match[2]})
	}
	return extracts
}

// ExtractSet returns the unique source paths and unique extract names
// referenced by the CODE-EXTRACT entries, each sorted lexicographically.
func (m *Metadata) ExtractSet() (sources, names []string) {
	srcSeen := make(map[string]struct{})
	nameSeen := make(map[string]struct{})
	for _, e := range m.Extracts() {
		if _, ok := srcSeen[e.Source]; !ok {
			srcSeen[e.Source] = struct{}{}
			sources = append(sources, e.Source)
		}
		if _, ok := nameSeen[e.Name]; !ok {
			nameSeen[e.Name] = struct{}{}
			names = append(names, e.Name)
		}
	}
	sort.Strings(sources)
	sort.Strings(names)
	return sources, names
}
