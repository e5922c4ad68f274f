package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/config"
)

func TestParseRate(t *testing.T) {
	r, err := parseRate("12:3:1.25")
	require.NoError(t, err)
	assert.Equal(t, card.RateOverride{Reaction: 12, Correction: 3, Factor: 1.25}, r)

	r, err = parseRate("2:2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Factor)

	for _, bad := range []string{"", "1", "a:1", "1:b", "1:2:x", "1:2:3:4"} {
		_, err := parseRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestGridDefinition(t *testing.T) {
	defer func() { preset, gridFile = "", "" }()

	def, err := gridDefinition()
	require.NoError(t, err)
	set, err := def.Set()
	require.NoError(t, err)
	assert.Equal(t, 1, set.Total())

	preset = "eta-neff"
	def, err = gridDefinition()
	require.NoError(t, err)
	set, err = def.Set()
	require.NoError(t, err)
	assert.Equal(t, 45, set.Total())

	preset = "nope"
	_, err = gridDefinition()
	assert.ErrorContains(t, err, "unknown preset")

	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grids:\n  - params:\n      eta10: {min: 5, max: 7, n: 3}\n"), 0644))
	preset, gridFile = "eta", path
	_, err = gridDefinition()
	assert.ErrorContains(t, err, "mutually exclusive")

	preset = ""
	def, err = gridDefinition()
	require.NoError(t, err)
	set, err = def.Set()
	require.NoError(t, err)
	assert.Equal(t, 3, set.Total())
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbngrid.yaml")
	require.NoError(t, initConfig(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultExecutable, cfg.Executable)
	assert.Equal(t, []string{"make"}, cfg.Build)

	assert.ErrorContains(t, initConfig(path, false), "already exists")
	assert.NoError(t, initConfig(path, true))
}
