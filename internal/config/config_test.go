package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultRecursionCap, cfg.RecursionCap)
	assert.Equal(t, DefaultMaxChildren, cfg.MaxChildren)
	assert.True(t, cfg.MarkupEnabled)
	assert.False(t, cfg.GlobalHexOverride)
	assert.Empty(t, cfg.CharsetOverride)
	assert.Empty(t, cfg.NatvisSearchPaths)
}

func TestLoad_NoKDLFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecursionCap, cfg.RecursionCap)
	assert.Equal(t, DefaultMaxChildren, cfg.MaxChildren)
}

func TestLoad_ProjectKDLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	kdl := `engine {
    recursion_cap 8
    max_children 500
    markup_enabled false
    global_hex_override true
    charset_override "utf-16"
}
natvis_search_paths {
    "vendor/**/*.natvis"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".natvis.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.RecursionCap)
	assert.Equal(t, 500, cfg.MaxChildren)
	assert.False(t, cfg.MarkupEnabled)
	assert.True(t, cfg.GlobalHexOverride)
	assert.Equal(t, "utf-16", cfg.CharsetOverride)
	assert.Equal(t, []string{"vendor/**/*.natvis"}, cfg.NatvisSearchPaths)
}

func TestLoad_MalformedKDLReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".natvis.kdl"), []byte("engine {"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestMergeKDLFile_MissingFileIsNotAnError(t *testing.T) {
	cfg := Default()
	err := mergeKDLFile(cfg, filepath.Join(t.TempDir(), "does-not-exist.kdl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRecursionCap, cfg.RecursionCap)
}
