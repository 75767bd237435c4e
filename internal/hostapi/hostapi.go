// Package hostapi defines the narrow interfaces this engine needs from
// its host debugger and its visualiser-file loader. Both collaborators
// are explicit non-goals of this repository (the XML parser that builds
// a VisualiserSource, and the expression compiler/runner behind
// ExpressionEvaluator); this package exists so the rest of the engine
// can be written, tested, and exercised against fakes without ever
// depending on a concrete debugger backend.
package hostapi

import (
	"context"

	"github.com/standardbeagle/natvis-engine/internal/model"
)

// TypeClass mirrors the small set of type kinds the engine distinguishes
// when reconstructing item expressions and inserting/removing class
// specifiers (§4.B/§4.C).
type TypeClass int

const (
	TypeClassOther TypeClass = iota
	TypeClassClass
	TypeClassStruct
	TypeClassUnion
	TypeClassEnum
	TypeClassPointer
	TypeClassReference
	TypeClassArray
)

// Type is the host's live type-system handle for a Value.
type Type interface {
	Name() string
	Class() TypeClass
	IsAnonymous() bool
	PointeeType() Type
	ArrayElementType() Type
	ArrayLength() (int, bool)
	PointerType() Type

	// BaseClassCount reports how many direct base classes the type
	// declares, so the dispatch engine can walk them in declaration
	// order when no visualiser matches the dynamic type itself.
	BaseClassCount() int
}

// Value is the opaque debugger-side handle the engine operates on. It is
// deliberately small: everything the dispatch engine, the item-provider
// family, and the item-expression tracker need, and nothing else.
type Value interface {
	Type() Type
	DynamicType() Type
	IsDynamic() bool

	Name() string
	Path() string
	Raw() string // the literal text lldb would show for this value, e.g. an integer's decimal form

	// Metadata is a small per-value string store the engine uses to
	// stash the reconstructed item expression between calls, mirroring
	// SBValue's SetMetadata/GetMetadata pair.
	Metadata(key string) (string, bool)
	SetMetadata(key, value string)

	NonSynthetic() Value
	StaticValue() Value

	AddressOf() (Value, bool)
	Dereference() (Value, error)
	Cast(t Type) (Value, error)

	ChildAtIndex(i int) (Value, bool)
	ChildMemberWithName(name string) (Value, bool)

	// BaseClassAtIndex returns the subobject value for this value's i-th
	// direct base class (0 <= i < Type().BaseClassCount()).
	BaseClassAtIndex(i int) (Value, bool)
}

// ExpressionEvaluator compiles and runs a C++ expression fragment against
// a context value, returning the resulting Value or an evaluator-side
// failure (compile error, trap, timeout — all folded to a plain error by
// the host; the caller wraps it into an nverrors.EvaluateError).
type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, context Value, expr string) (Value, error)

	// ValidateCompiles reports whether expr compiles in the current
	// module/frame context without executing side effects beyond
	// whatever the debugger's own compile step performs; used by the
	// intrinsic prolog cache (§4.D) to probe candidate declarations.
	ValidateCompiles(ctx context.Context, expr string) bool
}

// VisualiserSource is what an XML loader collaborator hands the engine:
// a fully parsed, already-validated set of visualiser files. The engine
// never parses XML itself.
type VisualiserSource interface {
	// Parse returns the TypeViz rules declared in one visualiser file's
	// contents, or a LoaderError if the file is malformed.
	Parse(path string, contents []byte) ([]*model.TypeViz, error)
}
