package suite

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, lines ...string) *Metadata {
	t.Helper()
	m, err := ParseMetadata(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return m
}

func TestParseMetadata_Defaults(t *testing.T) {
	m := parse(t,
		"#!/usr/bin/env python",
		"import sys",
		"sys.exit(0)",
	)

	code, err := m.ExpectedExitCode()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{TagExpectedExitCode}, m.Keys())
	assert.Empty(t, m.Environment())
	assert.Empty(t, m.Extracts())
	assert.False(t, m.Has(TagCodeExtract))
}

func TestParseMetadata_ExpectedExitCodeOverwrites(t *testing.T) {
	m := parse(t,
		"#EXPECTED_EXIT_CODE: 2",
		"#EXPECTED_EXIT_CODE: 3",
	)

	code, err := m.ExpectedExitCode()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"3"}, m.Values(TagExpectedExitCode))
}

func TestParseMetadata_InvalidExpectedExitCode(t *testing.T) {
	m := parse(t, "#EXPECTED_EXIT_CODE: two")

	_, err := m.ExpectedExitCode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), TagExpectedExitCode)
}

func TestParseMetadata_TagsAnywhere(t *testing.T) {
	m := parse(t,
		"/*",
		" * header",
		" */",
		"#include <stdlib.h>",
		"int main(void) {",
		"#NOTE: trailing tag",
		"}",
	)

	assert.Equal(t, []string{TagExpectedExitCode, "NOTE"}, m.Keys())
	assert.Equal(t, []string{"trailing tag"}, m.Values("NOTE"))
}

func TestParseMetadata_TagSyntax(t *testing.T) {
	m := parse(t,
		"#Mixed-Case_9: value one",
		"#spaced:    trimmed leading space",
		"# NOT-A-TAG: leading space",
		"#BAD TAG: space in name",
		"#EMPTY:",
		"  #INDENTED: not at line start",
		"#CRLF: windows\r",
	)

	assert.Equal(t, []string{"value one"}, m.Values("Mixed-Case_9"))
	assert.Equal(t, []string{"trimmed leading space"}, m.Values("spaced"))
	assert.Equal(t, []string{"windows"}, m.Values("CRLF"))
	assert.False(t, m.Has("NOT-A-TAG"))
	assert.False(t, m.Has("BAD TAG"))
	assert.False(t, m.Has("EMPTY"))
	assert.False(t, m.Has("INDENTED"))
}

func TestMetadata_Environment(t *testing.T) {
	m := parse(t,
		"#ENVIRONMENT-ARTEFACT: .hooks/git/commit-msg.py",
		"#ENVIRONMENT-ARTEFACT: ignored/second/value",
		"#ENVIRONMENT-HELPER: tools/helper",
		"#ENVIRONMENT-: no name",
	)

	assert.Equal(t, []EnvVar{
		{Name: "ARTEFACT", Value: ".hooks/git/commit-msg.py"},
		{Name: "HELPER", Value: "tools/helper"},
	}, m.Environment())
}

func TestMetadata_Extracts(t *testing.T) {
	m := parse(t,
		"#CODE-EXTRACT: driver/ngCore/mvx_if.c::mvx_hw_instance_devices",
		"#CODE-EXTRACT: driver/ngCore/mvx_if.c::find_hw_dev",
		"#CODE-EXTRACT: driver/ngCore/mvx_discovery.c::find_hw_dev",
		"#CODE-EXTRACT: malformed entry",
	)

	assert.Equal(t, []Extract{
		{Source: "driver/ngCore/mvx_if.c", Name: "mvx_hw_instance_devices"},
		{Source: "driver/ngCore/mvx_if.c", Name: "find_hw_dev"},
		{Source: "driver/ngCore/mvx_discovery.c", Name: "find_hw_dev"},
	}, m.Extracts())

	sources, names := m.ExtractSet()
	assert.Equal(t, []string{"driver/ngCore/mvx_discovery.c", "driver/ngCore/mvx_if.c"}, sources)
	assert.Equal(t, []string{"find_hw_dev", "mvx_hw_instance_devices"}, names)
}

func TestMetadata_FirstAndCopies(t *testing.T) {
	m := parse(t, "#A: 1", "#A: 2")

	v, ok := m.First("A")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = m.First("B")
	assert.False(t, ok)

	values := m.Values("A")
	values[0] = "mutated"
	assert.Equal(t, []string{"1", "2"}, m.Values("A"))
}

func TestEnvVar_String(t *testing.T) {
	assert.Equal(t, "ARTEFACT=/repo/x", EnvVar{Name: "ARTEFACT", Value: "/repo/x"}.String())
}

func TestParseMetadata_LongLines(t *testing.T) {
	blob := strings.Repeat("x", 2<<20)
	m := parse(t,
		"#EXPECTED_EXIT_CODE: 3",
		"static const char data[] = \""+blob+"\";",
		"#ENVIRONMENT-DATA: "+blob,
		"#CODE-EXTRACT: src/foo.c::bar",
	)

	code, err := m.ExpectedExitCode()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	require.Len(t, m.Environment(), 1)
	assert.Len(t, m.Environment()[0].Value, len(blob))
	assert.Equal(t, []Extract{{Source: "src/foo.c", Name: "bar"}}, m.Extracts())
}

func TestParseMetadata_ReadError(t *testing.T) {
	_, err := ParseMetadata(iotest.ErrReader(errors.New("disk on fire")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
