package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKDL_PartialEngineBlockOnlyTouchesSetFields(t *testing.T) {
	cfg := Default()
	err := mergeKDL(cfg, `engine {
    recursion_cap 3
}
`)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RecursionCap)
	assert.Equal(t, DefaultMaxChildren, cfg.MaxChildren)
	assert.True(t, cfg.MarkupEnabled)
}

func TestMergeKDL_SearchPathsAppendAcrossCalls(t *testing.T) {
	cfg := Default()
	require.NoError(t, mergeKDL(cfg, `natvis_search_paths {
    "vendor/**/*.natvis"
}
`))
	require.NoError(t, mergeKDL(cfg, `natvis_search_paths {
    "third_party/**/*.natvis"
}
`))

	assert.Equal(t, []string{"vendor/**/*.natvis", "third_party/**/*.natvis"}, cfg.NatvisSearchPaths)
}

func TestMergeKDL_UnknownNodesAreIgnored(t *testing.T) {
	cfg := Default()
	err := mergeKDL(cfg, `something_else {
    foo "bar"
}
`)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecursionCap, cfg.RecursionCap)
}

func TestMergeKDL_InvalidKDLReturnsError(t *testing.T) {
	cfg := Default()
	err := mergeKDL(cfg, `engine {`)
	assert.Error(t, err)
}

func TestNodeName_NilNodeReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", nodeName(nil))
}
