// Package storage indexes registered TypeViz rules by type-name prefix
// and orders the wildcard matches for one prefix into a most-specific-
// first DAG, so dispatch only ever has to walk one short candidate list
// per lookup. Ported from jb_declarative_formatters/type_viz_storage.py.
package storage

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/nametemplate"
	"github.com/standardbeagle/natvis-engine/internal/synth"
)

// Descriptor groups every TypeViz registered under one exact regex (a
// type registered twice, e.g. once per natvis file, accumulates here
// rather than creating a second entry).
type Descriptor struct {
	Name                   *model.TypeVizName
	Regex                  string
	Visualizers            []*model.TypeViz
	moreSpecificDescriptors []*Descriptor
}

func (d *Descriptor) String() string { return d.Name.Raw }

type bucket struct {
	sorted       bool
	exactMatch   []*Descriptor
	wildcardMatch []*Descriptor
}

func (b *bucket) ensureSorted() {
	if b.sorted {
		return
	}
	for _, d := range b.exactMatch {
		sortByPriorityDesc(d.Visualizers)
	}
	for _, d := range b.wildcardMatch {
		sortByPriorityDesc(d.Visualizers)
	}
	b.wildcardMatch = topoSort(b.wildcardMatch)
	b.sorted = true
}

func sortByPriorityDesc(vs []*model.TypeViz) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Priority > vs[j].Priority })
}

// topoSort runs the same "children first" DFS topological sort the
// upstream DirectAcyclicGraph does: a descriptor's more-specific
// descriptors are emitted before it, so dispatch walking the result in
// order tries the most specific match first.
func topoSort(vertices []*Descriptor) []*Descriptor {
	visited := make(map[*Descriptor]bool, len(vertices))
	var out []*Descriptor
	var visit func(*Descriptor)
	visit = func(v *Descriptor) {
		visited[v] = true
		for _, c := range v.moreSpecificDescriptors {
			if !visited[c] {
				visit(c)
			}
		}
		out = append(out, v)
	}
	for _, v := range vertices {
		if !visited[v] {
			visit(v)
		}
	}
	return out
}

// Storage is the registered-visualiser index (spec component 4.F).
type Storage struct {
	logger          *log.Logger
	buckets         map[string]*bucket
	topLevelMethods []*model.SyntheticMethodDefinition
}

// New builds an empty Storage. logger may be nil.
func New(logger *log.Logger) *Storage {
	return &Storage{logger: logger, buckets: make(map[string]*bucket)}
}

func buildKey(t *nametemplate.Template) string { return t.PrefixKey() }

func buildRegex(t *nametemplate.Template) string {
	if t.IsWildcard {
		return "(.*)"
	}
	if len(t.Args) == 0 {
		return regexp.QuoteMeta(t.Name)
	}
	parts := make([]string, len(t.Args))
	for i, arg := range t.Args {
		parts[i] = buildRegex(arg)
	}
	return regexp.QuoteMeta(t.Name) + "<" + strings.Join(parts, ",") + ">"
}

func tryAddToDescriptors(regex string, tv *model.TypeViz, descriptors []*Descriptor) bool {
	for _, d := range descriptors {
		if d.Regex == regex {
			d.Visualizers = append(d.Visualizers, tv)
			return true
		}
	}
	return false
}

// AddType registers tv under every one of its TypeVizNames.
func (s *Storage) AddType(tv *model.TypeViz) {
	for _, tvName := range tv.TypeVizNames {
		key := buildKey(tvName.Template)
		b, ok := s.buckets[key]
		if !ok {
			b = &bucket{}
			s.buckets[key] = b
		}
		b.sorted = false

		if tvName.HasWildcard {
			regex := "^" + buildRegex(tvName.Template) + "$"
			if tryAddToDescriptors(regex, tv, b.wildcardMatch) {
				continue
			}
			added := &Descriptor{Name: tvName, Regex: regex, Visualizers: []*model.TypeViz{tv}}
			for _, existing := range b.wildcardMatch {
				if existing.Name.Template.Match(tvName.Template, nil) {
					existing.moreSpecificDescriptors = append(existing.moreSpecificDescriptors, added)
				} else if tvName.Template.Match(existing.Name.Template, nil) {
					added.moreSpecificDescriptors = append(added.moreSpecificDescriptors, existing)
				}
			}
			b.wildcardMatch = append(b.wildcardMatch, added)
		} else {
			name := tvName.Template.String()
			if tryAddToDescriptors(name, tv, b.exactMatch) {
				continue
			}
			b.exactMatch = append(b.exactMatch, &Descriptor{Name: tvName, Regex: name, Visualizers: []*model.TypeViz{tv}})
		}
	}
}

// Match is one candidate returned by GetMatchedTypes: the visualiser
// plus the TypeVizName it matched through, and the wildcard captures
// (nil for an exact match).
type Match struct {
	Visualizer *model.TypeViz
	Name       *model.TypeVizName
	Captures   []string
}

// GetMatchedTypes returns, most-specific-first, every visualiser whose
// name matches requested (an exact-match bucket hit, then every
// wildcard descriptor in DAG order).
func (s *Storage) GetMatchedTypes(requested *nametemplate.Template) []Match {
	key := buildKey(requested)
	b, ok := s.buckets[key]
	if !ok {
		return nil
	}
	b.ensureSorted()

	requestedStr := requested.String()
	var matches []Match
	for _, d := range b.exactMatch {
		if d.Regex == requestedStr {
			for _, v := range d.Visualizers {
				matches = append(matches, Match{Visualizer: v, Name: d.Name})
			}
		}
	}
	for _, d := range b.wildcardMatch {
		var captures []string
		if d.Name.Template.Match(requested, &captures) {
			for _, v := range d.Visualizers {
				matches = append(matches, Match{Visualizer: v, Name: d.Name, Captures: append([]string(nil), captures...)})
			}
		}
	}
	return matches
}

// IterateExact and IterateWildcard expose every registered descriptor
// in bucket-then-sorted order, for diagnostics and the natvis_list tool.
func (s *Storage) IterateExact(fn func(regex string, tv *model.TypeViz, name *model.TypeVizName)) {
	for _, b := range s.buckets {
		b.ensureSorted()
		for _, d := range b.exactMatch {
			for _, v := range d.Visualizers {
				fn(d.Regex, v, d.Name)
			}
		}
	}
}

func (s *Storage) IterateWildcard(fn func(regex string, tv *model.TypeViz, name *model.TypeVizName)) {
	for _, b := range s.buckets {
		b.ensureSorted()
		for _, d := range b.wildcardMatch {
			for _, v := range d.Visualizers {
				fn(d.Regex, v, d.Name)
			}
		}
	}
}

// detachAlternativeTypeVisualizers gives each multi-name TypeViz its
// own descriptor-scoped copy before synthesis runs, matching the
// upstream comment: synthesised getters can differ per descriptor even
// when the same <Type> rule lists several Name= entries.
func detachAlternativeTypeVisualizers(d *Descriptor) {
	for i, tv := range d.Visualizers {
		if len(tv.TypeVizNames) > 1 {
			cp := tv.Clone()
			cp.TypeVizNames = []*model.TypeVizName{d.Name}
			d.Visualizers[i] = cp
		}
	}
}

// GenerateTopLevelMethods walks every registered descriptor through the
// synthesiser and caches the resulting declarations.
func (s *Storage) GenerateTopLevelMethods() {
	top := synth.New()
	for _, b := range s.buckets {
		b.ensureSorted()
		for _, descriptors := range [][]*Descriptor{b.exactMatch, b.wildcardMatch} {
			for _, d := range descriptors {
				detachAlternativeTypeVisualizers(d)
				for _, v := range d.Visualizers {
					top.CollectTopLevelMethods(d.Regex, v, d.Name)
				}
			}
		}
	}
	s.topLevelMethods = top.Definitions()
	if s.logger != nil {
		s.logger.Printf("natvis: synthesised %d top-level method declarations", len(s.topLevelMethods))
	}
}

// TopLevelMethods returns the declarations produced by the last call to
// GenerateTopLevelMethods.
func (s *Storage) TopLevelMethods() []*model.SyntheticMethodDefinition {
	return s.topLevelMethods
}

// SuggestNearest is a lookup-miss diagnostic: when GetMatchedTypes finds
// nothing for requested, this scans every registered bucket key and
// returns the one most similar by Jaro-Winkler distance, so
// natvis_list/dispatch logging can tell a user "did you mean Foo<T>?"
// instead of just "no match". Returns ("", false) if nothing is
// registered at all.
func (s *Storage) SuggestNearest(requested string) (string, bool) {
	var best string
	var bestScore float32
	found := false
	for key := range s.buckets {
		score, err := edlib.StringsSimilarity(requested, key, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = key, score, true
		}
	}
	return best, found
}
