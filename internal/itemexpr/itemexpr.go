// Package itemexpr reconstructs and maintains the debuggable "item
// expression" attached to every value the engine produces — the path a
// user could paste back into a watch window to reach that value. Ported
// from renderers/jb_lldb_item_expression.py: the four invariants below
// map 1:1 to that file's _save_item_expression, _update_dereference_metadata,
// update_struct_child_item_expression, and _explicit_up_cast_for_base_class.
//
//  1. Every produced value's item expression is saved as metadata on its
//     non-synthetic value, so repeated lookups are idempotent.
//  2. Dereferencing a pointer whose own expression is known reuses that
//     expression with "*" prepended (merged via cppsyntax's
//     TryMergeDerefAndAddressOf); otherwise falls back to a raw address cast.
//  3. A struct member's expression is the parent's expression plus
//     ".field", a synthetic getter call, or an array-subscript, chosen by
//     the shape of the member's access expression.
//  4. A base-class up-cast reuses the derived object's expression wrapped
//     in a reference cast to the base type, unless the base is anonymous
//     (in which case the expression is simply copied through).
package itemexpr

import (
	"github.com/standardbeagle/natvis-engine/internal/cppsyntax"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/model"
)

const metadataKey = "natvis.item_expression"

// MaxExpressionLength caps how long a reconstructed expression may grow
// before the tracker gives up and substitutes a raw address-of cast,
// mirroring the Python implementation's guard against runaway nesting.
const MaxExpressionLength = 1024

// Invalid is the sentinel returned (and stored) when no debuggable path
// could be reconstructed for a value.
const Invalid = "/* Cannot make a path to the item. */"

// Tracker reconstructs item expressions against a host Value graph.
type Tracker struct{}

func New() *Tracker { return &Tracker{} }

func typeExpression(t hostapi.Type, originalName string) string {
	name := originalName
	if name == "" {
		name = t.Name()
	}
	switch t.Class() {
	case hostapi.TypeClassClass:
		return cppsyntax.InsertTypeClassSpecifier(name, "class")
	case hostapi.TypeClassEnum:
		return cppsyntax.InsertTypeClassSpecifier(name, "enum")
	case hostapi.TypeClassStruct:
		return cppsyntax.InsertTypeClassSpecifier(name, "struct")
	case hostapi.TypeClassUnion:
		return cppsyntax.InsertTypeClassSpecifier(name, "union")
	case hostapi.TypeClassReference:
		return typeExpression(t.PointeeType(), name)
	case hostapi.TypeClassPointer:
		return typeExpression(t.PointeeType(), name)
	case hostapi.TypeClassArray:
		return typeExpression(t.ArrayElementType(), name)
	default:
		return name
	}
}

func (tr *Tracker) save(v hostapi.Value, expr string) string {
	if len(expr) >= MaxExpressionLength {
		expr = tr.asRawReference(v)
	}
	v.SetMetadata(metadataKey, expr)
	return expr
}

func isCastAllowed(t hostapi.Type) bool {
	if t.IsAnonymous() {
		return false
	}
	return !cppsyntax.HasLambdaInTypeExpr(t.Name())
}

func (tr *Tracker) asRawReference(v hostapi.Value) string {
	t := v.Type()
	if !isCastAllowed(t) {
		return Invalid
	}
	if addr, ok := v.AddressOf(); ok {
		typeExpr := typeExpression(t.PointerType(), "")
		return "(*(" + typeExpr + ")(" + addr.Raw() + "))"
	}
	if t.Class() == hostapi.TypeClassPointer {
		typeExpr := typeExpression(t, "")
		return "((" + typeExpr + ")(" + v.Raw() + "))"
	}
	return Invalid
}

// GetOrCreate returns the previously-saved expression for v, or
// reconstructs and saves a raw-reference fallback if none exists.
func (tr *Tracker) GetOrCreate(v hostapi.Value) string {
	nonSynthetic := v.NonSynthetic()
	if expr, ok := nonSynthetic.Metadata(metadataKey); ok && expr != "" {
		return expr
	}
	if nonSynthetic.IsDynamic() {
		if staticExpr, ok := nonSynthetic.StaticValue().NonSynthetic().Metadata(metadataKey); ok && staticExpr != "" {
			return tr.save(nonSynthetic, staticExpr)
		}
	}
	if path := nonSynthetic.Path(); path != "" {
		return tr.save(nonSynthetic, path)
	}
	return tr.save(nonSynthetic, tr.asRawReference(nonSynthetic))
}

func (tr *Tracker) thisReference(v hostapi.Value) string {
	if ref := tr.GetOrCreate(v); ref != Invalid {
		return ref
	}
	return tr.asRawReference(v)
}

// UpdateDereferenceMetadata records the expression for derefValue,
// produced by dereferencing ptrValue, merging "*" into the pointer's
// known expression when allowDerefStar is set (array-cast derefs pass
// false, plain pointer derefs pass true).
func (tr *Tracker) UpdateDereferenceMetadata(derefValue, ptrValue hostapi.Value, allowDerefStar bool) {
	nonSynDeref := derefValue.NonSynthetic()
	nonSynPtr := ptrValue.NonSynthetic()

	expr := tr.GetOrCreate(nonSynPtr)
	isPointer := nonSynPtr.Type().Class() == hostapi.TypeClassPointer
	if expr != Invalid {
		derefStar := ""
		if allowDerefStar && isPointer {
			derefStar = "*"
		}
		if derefStar != "" {
			merged := cppsyntax.TryMergeDerefAndAddressOf("(" + derefStar + expr + ")")
			tr.save(nonSynDeref, merged)
		} else {
			tr.save(nonSynDeref, expr)
		}
		return
	}

	if isPointer && !isCastAllowed(nonSynDeref.Type()) {
		typeExpr := typeExpression(nonSynPtr.Type(), "")
		tr.save(nonSynDeref, "(*("+typeExpr+")"+nonSynPtr.Raw()+")")
		return
	}

	tr.save(nonSynDeref, Invalid)
}

// Dereference dereferences ptr through the evaluator and attaches the
// resulting item expression.
func (tr *Tracker) Dereference(ptr hostapi.Value) (hostapi.Value, error) {
	deref, err := ptr.Dereference()
	if err != nil {
		return nil, err
	}
	tr.UpdateDereferenceMetadata(deref, ptr, true)
	return deref, nil
}

// CopyItemExpression copies from's known expression onto to, used when a
// value is reinterpreted without semantically moving (anonymous-union
// members, casts that preserve identity).
func (tr *Tracker) CopyItemExpression(from, to hostapi.Value) {
	tr.save(to.NonSynthetic(), tr.GetOrCreate(from))
}

// InvalidateItemExpression marks v as having no reconstructable path,
// e.g. because it was synthesised out of thin air by a formatter.
func (tr *Tracker) InvalidateItemExpression(v hostapi.Value) {
	tr.save(v.NonSynthetic(), Invalid)
}

func (tr *Tracker) explicitUpCastForBaseClass(inheritor, base hostapi.Value) {
	nonSynInheritor := inheritor.NonSynthetic()
	nonSynBase := base.NonSynthetic()

	if nonSynBase.Type().IsAnonymous() {
		tr.CopyItemExpression(nonSynInheritor, nonSynBase)
		return
	}

	thisRef := tr.thisReference(nonSynInheritor)
	if thisRef == Invalid {
		tr.save(nonSynBase, Invalid)
		return
	}

	typeExpr := typeExpression(nonSynBase.Type(), "")
	tr.save(nonSynBase, "(("+typeExpr+" &) "+thisRef+")")
}

// UpdateStructChildItemExpression is the entry point called once per
// struct child produced by a built-in or natvis struct view: it decides
// among dereference, anonymous-passthrough, base-class up-cast, and
// plain member-access reconstruction.
func (tr *Tracker) UpdateStructChildItemExpression(child, parent hostapi.Value) {
	if parent.Type().Class() == hostapi.TypeClassPointer {
		tr.UpdateDereferenceMetadata(child, parent, true)
		return
	}
	if child.Type().IsAnonymous() {
		tr.CopyItemExpression(parent, child)
		return
	}
	if parent.Path() == child.Path() {
		tr.explicitUpCastForBaseClass(parent, child)
		return
	}
	name := child.Name()
	if name == "" {
		tr.InvalidateItemExpression(child)
		return
	}
	tr.UpdateItemExpression(child, parent, name, nil)
}

// UpdateItemExpression reconstructs itemValue's expression as an access
// into contextValue via expression, optionally routed through a
// synthetic getter call instead of plain member syntax.
func (tr *Tracker) UpdateItemExpression(itemValue, contextValue hostapi.Value, expression string, getter *model.SyntheticMethod) {
	nonSynItem := itemValue.NonSynthetic()
	nonSynContext := contextValue.NonSynthetic()

	simplified := cppsyntax.SimplifyCppExpression(expression)

	thisRef := tr.thisReference(nonSynContext)
	if thisRef == Invalid {
		tr.save(nonSynItem, tr.asRawReference(nonSynItem))
		return
	}
	if simplified == "this" {
		tr.save(nonSynItem, "(&"+thisRef+")")
		return
	}
	if getter != nil {
		tr.save(nonSynItem, getter.MakeCallExpr(thisRef))
		return
	}
	if cppsyntax.IsArrayAccessExpr(simplified) {
		tr.save(nonSynItem, thisRef+simplified)
		return
	}
	if cppsyntax.IsTrivialExpression(simplified) {
		tr.save(nonSynItem, thisRef+"."+simplified)
		return
	}
	if specifier, subExpr := cppsyntax.CutDerefOrAddressOfFromTrivialExpression(simplified); specifier != "" {
		tr.save(nonSynItem, "("+specifier+"("+thisRef+"."+subExpr+"))")
		return
	}
	tr.save(nonSynItem, tr.asRawReference(nonSynItem))
}
