package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTables(t *testing.T, endpoints, registers string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ep := filepath.Join(dir, "endpoints.json")
	rg := filepath.Join(dir, "registers.json")
	require.NoError(t, os.WriteFile(ep, []byte(endpoints), 0644))
	require.NoError(t, os.WriteFile(rg, []byte(registers), 0644))
	return ep, rg
}

func TestLoad_JoinsTables(t *testing.T) {
	ep, rg := writeTables(t,
		`{"temp-1": 1, "temp-2": 2}`,
		`{"temp-1": 0, "temp-2": 4}`,
	)

	d, err := Load(ep, rg)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"temp-1", "temp-2"}, d.Channels())

	e, ok := d.Lookup("temp-2")
	require.True(t, ok)
	assert.Equal(t, Entry{EndpointID: 2, RegisterOffset: 4}, e)

	_, ok = d.Lookup("missing")
	assert.False(t, ok)
}

func TestLoad_MissingRegisterOffset(t *testing.T) {
	ep, rg := writeTables(t, `{"a": 1, "b": 1}`, `{"a": 0}`)

	_, err := Load(ep, rg)
	require.Error(t, err)

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Message, `"b"`)
}

func TestLoad_MissingEndpoint(t *testing.T) {
	ep, rg := writeTables(t, `{"a": 1}`, `{"a": 0, "b": 8}`)

	_, err := Load(ep, rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint id")
}

func TestLoad_RejectsZeroEndpoint(t *testing.T) {
	ep, rg := writeTables(t, `{"a": 0}`, `{"a": 0}`)

	_, err := Load(ep, rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint id must be >= 1")
}

func TestLoad_RejectsNegativeOffset(t *testing.T) {
	ep, rg := writeTables(t, `{"a": 1}`, `{"a": -4}`)

	_, err := Load(ep, rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register offset must be >= 0")
}

func TestLoad_InvalidJSON(t *testing.T) {
	ep, rg := writeTables(t, `{"a": 1`, `{"a": 0}`)

	_, err := Load(ep, rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON table")
}

func TestLoad_MissingFile(t *testing.T) {
	_, rg := writeTables(t, `{}`, `{"a": 0}`)

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read failed")
}

func TestLoad_EmptyTable(t *testing.T) {
	ep, rg := writeTables(t, `{}`, `{}`)

	_, err := Load(ep, rg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table is empty")
}

func TestNew_NormalizesChannelIDs(t *testing.T) {
	// "é" as e + combining acute accent.
	decomposed := "cafe\u0301"
	d := New(map[string]Entry{decomposed: {EndpointID: 1, RegisterOffset: 0}})

	_, ok := d.Lookup("caf\u00e9")
	assert.True(t, ok, "lookup by composed form should hit")
}
