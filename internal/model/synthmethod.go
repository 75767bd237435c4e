package model

// SyntheticMethod identifies an auxiliary method the top-level-method
// synthesiser (component E) has registered for a node: either a named
// helper (`_get$0`, `private$get$next$<hash>`, ...) or the subscript
// operator.
type SyntheticMethod struct {
	Name          string
	IsSubscript   bool
}

// NamedMethod constructs a SyntheticMethod referring to a named helper.
func NamedMethod(name string) *SyntheticMethod {
	return &SyntheticMethod{Name: name}
}

// SubscriptOperatorMethod constructs a SyntheticMethod referring to the
// type's subscript operator.
func SubscriptOperatorMethod() *SyntheticMethod {
	return &SyntheticMethod{IsSubscript: true}
}

// MakeCallExpr builds the call expression for invoking this method
// against thisRef, e.g. "this_ref._get$0()" or "this_ref[idx]".
func (m *SyntheticMethod) MakeCallExpr(thisRef string, args ...string) string {
	if m == nil {
		return thisRef
	}
	if m.IsSubscript {
		if len(args) == 0 {
			return thisRef + "[0]"
		}
		return thisRef + "[" + args[0] + "]"
	}
	call := thisRef + "." + m.Name + "("
	for i, a := range args {
		if i > 0 {
			call += ", "
		}
		call += a
	}
	return call + ")"
}

// SyntheticMethodDefinition is the unit handed to the debugger's
// top-level-declaration API (component E's output, §3's
// SyntheticMethodDefinition entity).
type SyntheticMethodDefinition struct {
	FullName      string
	Body          string
	NameUsesRegex bool
}
