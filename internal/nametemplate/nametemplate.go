// Package nametemplate implements the type-name template parser and
// matcher (spec component 4.A): parsing a C++ qualified name like
// `Ns::Foo<A,B*>` into a tree, and matching one template against another
// with wildcard capture.
package nametemplate

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is one node of a parsed type name. A wildcard leaf has no
// Args and IsWildcard set; only leaves may be wildcards. Fmt is a
// printf-style pattern with `{i}` holes for each argument, used to
// reconstruct the printed form and (by the storage package) a matching
// regex.
type Template struct {
	Name       string
	Args       []*Template
	IsWildcard bool
	Fmt        string
}

// Wildcard constructs a free wildcard leaf ("*" in a natvis type name).
func Wildcard() *Template {
	return &Template{IsWildcard: true}
}

// Leaf constructs a named leaf with no template arguments.
func Leaf(name string) *Template {
	return &Template{Name: name}
}

var argHoleRe = regexp.MustCompile(`\{\d+\}`)

// String reconstructs the printed form of the template.
func (t *Template) String() string {
	if t.IsWildcard {
		return "*"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	fmtStr := t.Fmt
	if fmtStr == "" {
		fmtStr = t.Name + "<" + strings.Repeat("{0},", len(t.Args))
		fmtStr = strings.TrimSuffix(fmtStr, ",") + ">"
	}
	args := make([]interface{}, len(t.Args))
	var b strings.Builder
	last := 0
	for _, loc := range argHoleRe.FindAllStringIndex(fmtStr, -1) {
		b.WriteString(fmtStr[last:loc[0]])
		idxStr := fmtStr[loc[0]+1 : loc[1]-1]
		idx := atoiSafe(idxStr)
		if idx >= 0 && idx < len(t.Args) {
			b.WriteString(t.Args[idx].String())
		}
		last = loc[1]
	}
	b.WriteString(fmtStr[last:])
	_ = args
	return b.String()
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// HasWildcard reports whether this template or any descendant is a
// wildcard leaf.
func (t *Template) HasWildcard() bool {
	if t.IsWildcard {
		return true
	}
	for _, arg := range t.Args {
		if arg.HasWildcard() {
			return true
		}
	}
	return false
}

// PrefixKey is everything up to the first `<` in the printed name, or the
// whole name if there is no `<`. Two templates share a storage bucket iff
// they share this key.
func (t *Template) PrefixKey() string {
	full := t.String()
	if idx := strings.IndexByte(full, '<'); idx >= 0 {
		return full[:idx]
	}
	return full
}

// Match recursively compares self against other. Identical leaves match;
// a wildcard leaf matches any other subtree and, if captures is
// non-nil, appends the matched subtree's printed form to *captures. Two
// wildcard templates match iff other is at least as specific (i.e. the
// self wildcard still matches, since any wildcard matches anything —
// "at least as specific" manifests at the storage layer's DAG edges,
// which call Match in both directions to discover orderings).
func (t *Template) Match(other *Template, captures *[]string) bool {
	if t.IsWildcard {
		if captures != nil {
			*captures = append(*captures, other.String())
		}
		return true
	}
	if other.IsWildcard {
		return false
	}
	if t.Name != other.Name {
		return false
	}
	if len(t.Args) != len(other.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Match(other.Args[i], captures) {
			return false
		}
	}
	return true
}

// Parse parses a C++ qualified name into a Template tree. Free "*"
// tokens anywhere a type is expected become wildcard leaves.
func Parse(name string) (*Template, error) {
	p := &parser{src: name}
	t, err := p.parseTemplate()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("nametemplate: trailing input at %d in %q", p.pos, name)
	}
	return t, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) parseTemplate() (*Template, error) {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '*' {
		p.pos++
		return Wildcard(), nil
	}

	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '<' || ch == '>' || ch == ',' {
			break
		}
		p.pos++
	}
	name := strings.TrimSpace(p.src[start:p.pos])
	if name == "" {
		return nil, fmt.Errorf("nametemplate: expected name at %d in %q", start, p.src)
	}

	t := &Template{Name: name}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '<' {
		p.pos++
		var fmtParts []string
		for {
			arg, err := p.parseTemplate()
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
			fmtParts = append(fmtParts, fmt.Sprintf("{%d}", len(t.Args)-1))
			p.skipSpace()
			if p.pos >= len(p.src) {
				return nil, fmt.Errorf("nametemplate: unterminated template args in %q", p.src)
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == '>' {
				p.pos++
				break
			}
			return nil, fmt.Errorf("nametemplate: expected ',' or '>' at %d in %q", p.pos, p.src)
		}
		t.Fmt = name + "<" + strings.Join(fmtParts, ",") + ">"
	}
	return t, nil
}
