package model

// TypeVizIntrinsic is one named inline helper definition, scoped to a
// visualiser (or global), inlined into every evaluated expression that
// can see it (spec §4.D).
type TypeVizIntrinsic struct {
	Name       string
	Expression string
	Parameters []string
	IsUsed     bool
	IsLazy     bool
	Optional   bool
}

// IntrinsicNamePrefix is replaced by the synthesiser with an internal
// prefix so intrinsic calls never collide with user code, per spec §4.E.
const IntrinsicNamePrefix = "$intrinsic$"

// DefinitionCode renders the C++ declaration for this intrinsic, e.g.
// "auto size() { return m_size; }".
func (t *TypeVizIntrinsic) DefinitionCode() string {
	params := ""
	for i, p := range t.Parameters {
		if i > 0 {
			params += ", "
		}
		params += p
	}
	return "auto " + t.Name + "(" + params + ") { return " + t.Expression + "; }"
}

// ValidateExpression renders the expression used to probe whether this
// intrinsic compiles against the current context, given the prolog
// already accepted ahead of it.
func (t *TypeVizIntrinsic) ValidateExpression(priorProlog string) string {
	if priorProlog == "" {
		return t.DefinitionCode()
	}
	return priorProlog + "\n" + t.DefinitionCode()
}

// IntrinsicsScope is an ordered list of intrinsics, either global to a
// visualiser file or scoped to one TypeViz.
type IntrinsicsScope struct {
	SortedList []*TypeVizIntrinsic
}

// NewIntrinsicsScope builds a scope from an unordered list, ordering by
// declaration order (natvis does not define intrinsic priority; when two
// intrinsics share a name, the prolog cache keeps the later one at
// assembly time).
func NewIntrinsicsScope(intrinsics []*TypeVizIntrinsic) *IntrinsicsScope {
	return &IntrinsicsScope{SortedList: intrinsics}
}
