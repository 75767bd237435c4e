package config

import (
	"fmt"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// mergeKDL parses a .natvis.kdl document and overlays whatever keys it
// sets onto cfg, leaving every other field untouched. Structure:
//
//	engine {
//	    recursion_cap 5
//	    max_children 10000
//	    markup_enabled true
//	    global_hex_override false
//	    charset_override "utf16"
//	}
//	natvis_search_paths {
//	    "vendor/**/*.natvis"
//	    "third_party/**/*.natvis"
//	}
func mergeKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("parsing KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "engine":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "recursion_cap":
					if v, ok := firstIntArg(cn); ok {
						cfg.RecursionCap = v
					}
				case "max_children":
					if v, ok := firstIntArg(cn); ok {
						cfg.MaxChildren = v
					}
				case "markup_enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.MarkupEnabled = b
					}
				case "global_hex_override":
					if b, ok := firstBoolArg(cn); ok {
						cfg.GlobalHexOverride = b
					}
				case "charset_override":
					if s, ok := firstStringArg(cn); ok {
						cfg.CharsetOverride = s
					}
				}
			}
		case "natvis_search_paths":
			cfg.NatvisSearchPaths = append(cfg.NatvisSearchPaths, collectStringArgs(n)...)
		}
	}

	return nil
}

// nodeName returns a node's plain string name, or "" for a nil node or
// one with no name (kdl-go represents both absence and malformed nodes
// this way).
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs gathers a node's string values either from its
// inline arguments or, for the block form (one child node per entry,
// the string living in the child's own name), from its children.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}
