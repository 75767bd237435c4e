// Package config holds the engine-wide settings that apply uniformly
// across every dispatched value — the recursion cap, the child-count
// cap, the markup/hex/charset overrides the `set_*` CLI commands flip —
// and loads them from a project's `.natvis.kdl` layered over a user-
// global `~/.natvis.kdl`. Ported from LCI's config.go/kdl_config.go: the
// two-file layering and the kdl-go node-walking style survive, the
// fields are rebuilt for this domain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRecursionCap mirrors dispatch.DefaultRecursionCap; kept as an
// independent constant here since config must not import dispatch.
const DefaultRecursionCap = 5

// DefaultMaxChildren bounds how many synthetic children a size-less
// LinkedListItems/TreeItems walk may produce, mirroring g_max_num_children.
const DefaultMaxChildren = 10000

// Config is the engine's mutable runtime configuration.
type Config struct {
	// RecursionCap caps nested natvis dispatch depth before falling back
	// to a built-in visualiser (spec.md §4.H step 5).
	RecursionCap int

	// MaxChildren caps discovery-walk synthetic children (LinkedListItems/
	// TreeItems with no explicit <Size>).
	MaxChildren int

	// MarkupEnabled controls whether summaries may contain the host's
	// rich-text markup tags, or must be plain text.
	MarkupEnabled bool

	// GlobalHexOverride renders a value in hex when it reaches the
	// built-in fallback with no explicit format spec and its text parses
	// as an integer; set by `set_global_hex`.
	GlobalHexOverride bool

	// CharsetOverride ("utf8", "utf16" or "utf32") swaps the L/U width
	// prefix of a quoted string that reaches the built-in fallback with no
	// explicit format spec; set by `override_charset`. Empty (or any
	// other value) leaves the text unchanged.
	CharsetOverride string

	// NatvisSearchPaths are additional glob patterns (beyond what `load`
	// names explicitly), e.g. "vendor/**/*.natvis". They are resolved
	// through Manager.AddGlob when the CLI builds its state; `reload_all`
	// does not re-expand them.
	NatvisSearchPaths []string
}

// Default returns the engine's built-in defaults, used when neither a
// global nor a project `.natvis.kdl` is present.
func Default() *Config {
	return &Config{
		RecursionCap:      DefaultRecursionCap,
		MaxChildren:       DefaultMaxChildren,
		MarkupEnabled:     true,
		GlobalHexOverride: false,
	}
}

// Load builds the effective configuration for a project rooted at
// projectRoot: defaults, overridden by `~/.natvis.kdl` if present,
// overridden again by `<projectRoot>/.natvis.kdl` if present.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := mergeKDLFile(cfg, filepath.Join(home, ".natvis.kdl")); err != nil {
			return nil, fmt.Errorf("config: global .natvis.kdl: %w", err)
		}
	}
	if err := mergeKDLFile(cfg, filepath.Join(projectRoot, ".natvis.kdl")); err != nil {
		return nil, fmt.Errorf("config: project .natvis.kdl: %w", err)
	}
	return cfg, nil
}

func mergeKDLFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return mergeKDL(cfg, string(content))
}
