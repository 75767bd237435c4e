// Package model holds the in-memory visualiser data model described in
// the spec's data model section: TypeViz, TypeVizName, item-provider
// variants, IntrinsicsScope, SyntheticMethod(Definition), and Stream.
// This tree is produced by the (non-goal) XML loader collaborator; the
// core only consumes it.
package model

import (
	"github.com/standardbeagle/natvis-engine/internal/nametemplate"
)

// TypeVizName pairs a raw natvis `Name=` string with its parsed template.
type TypeVizName struct {
	Raw         string
	Template    *nametemplate.Template
	HasWildcard bool
}

// NewTypeVizName parses raw and records whether it (or any argument)
// contains a wildcard.
func NewTypeVizName(raw string) (*TypeVizName, error) {
	t, err := nametemplate.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &TypeVizName{Raw: raw, Template: t, HasWildcard: t.HasWildcard()}, nil
}

// StringView is a <StringView> directive: a named alternate string
// rendering for an element type.
type StringView struct {
	Name       string
	Condition  string
	Expression string
}

// SmartPointerUsage controls which smart-pointer operators get
// synthesised.
type SmartPointerUsage string

const (
	SmartPointerMinimal   SmartPointerUsage = "Minimal"
	SmartPointerIndexable SmartPointerUsage = "Indexable"
	// SmartPointerFull is documented upstream as unsupported and is
	// silently downgraded to SmartPointerIndexable — see spec.md §9's
	// open question; this behaviour is intentionally preserved, not
	// strengthened.
	SmartPointerFull SmartPointerUsage = "Full"
)

// SmartPointer is a <SmartPointer> directive.
type SmartPointer struct {
	Usage      SmartPointerUsage
	Expression string
}

// EffectiveUsage returns Usage, downgrading Full to Indexable per the
// preserved open-question behaviour.
func (sp *SmartPointer) EffectiveUsage() SmartPointerUsage {
	if sp.Usage == SmartPointerFull {
		return SmartPointerIndexable
	}
	return sp.Usage
}

// Summary is one <DisplayString> (or <Expand><Summary> ) entry: an
// interpolated string template plus an optional guarding condition and
// optional include/exclude view ids.
type Summary struct {
	Condition    string
	Value        string
	Optional     bool
	IncludeView  string
	ExcludeView  string
}

// TypeViz is one <Type> rule.
type TypeViz struct {
	TypeVizNames []*TypeVizName

	IsInheritable bool
	IncludeView   string
	ExcludeView   string
	Priority      int

	Summaries     []*Summary
	ItemProviders []ItemProvider

	GlobalIntrinsics *IntrinsicsScope
	TypeIntrinsics   *IntrinsicsScope

	HideRawView  bool
	SmartPointer *SmartPointer
	StringViews  []*StringView
}

// Clone returns a shallow copy of tv suitable for visualiser detachment
// (spec 4.F): item_providers must still be deep-copied by the caller.
func (tv *TypeViz) Clone() *TypeViz {
	cp := *tv
	return &cp
}
