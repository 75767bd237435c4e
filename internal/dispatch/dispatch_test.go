package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/natvis-engine/internal/formatcode"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/intrinsics"
	"github.com/standardbeagle/natvis-engine/internal/itemexpr"
	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/providers"
	"github.com/standardbeagle/natvis-engine/internal/storage"
)

type fakeType struct {
	name  string
	class hostapi.TypeClass
	bases []*fakeValue
}

func (t *fakeType) Name() string                  { return t.name }
func (t *fakeType) Class() hostapi.TypeClass       { return t.class }
func (t *fakeType) IsAnonymous() bool              { return false }
func (t *fakeType) PointeeType() hostapi.Type      { return nil }
func (t *fakeType) ArrayElementType() hostapi.Type { return nil }
func (t *fakeType) ArrayLength() (int, bool)       { return 0, false }
func (t *fakeType) PointerType() hostapi.Type      { return &fakeType{name: t.name + " *"} }
func (t *fakeType) BaseClassCount() int            { return len(t.bases) }

type fakeValue struct {
	typ  *fakeType
	name string
	path string
	raw  string
}

func newFakeValue(typeName, raw string) *fakeValue {
	return &fakeValue{typ: &fakeType{name: typeName, class: hostapi.TypeClassStruct}, raw: raw}
}

func (v *fakeValue) Type() hostapi.Type        { return v.typ }
func (v *fakeValue) DynamicType() hostapi.Type { return v.typ }
func (v *fakeValue) IsDynamic() bool           { return false }
func (v *fakeValue) Name() string              { return v.name }
func (v *fakeValue) Path() string              { return v.path }
func (v *fakeValue) Raw() string               { return v.raw }
func (v *fakeValue) Metadata(string) (string, bool) { return "", false }
func (v *fakeValue) SetMetadata(string, string)     {}
func (v *fakeValue) NonSynthetic() hostapi.Value    { return v }
func (v *fakeValue) StaticValue() hostapi.Value     { return v }
func (v *fakeValue) AddressOf() (hostapi.Value, bool) { return nil, false }
func (v *fakeValue) Dereference() (hostapi.Value, error) { return nil, nil }
func (v *fakeValue) Cast(hostapi.Type) (hostapi.Value, error) {
	return v, nil
}
func (v *fakeValue) ChildAtIndex(i int) (hostapi.Value, bool) { return nil, false }
func (v *fakeValue) ChildMemberWithName(name string) (hostapi.Value, bool) {
	return nil, false
}
func (v *fakeValue) BaseClassAtIndex(i int) (hostapi.Value, bool) {
	if i < 0 || i >= len(v.typ.bases) {
		return nil, false
	}
	return v.typ.bases[i], true
}

// scriptedEvaluator resolves one expression against one value's raw
// text to a fixed next value, keyed by (value raw, expression).
type scriptedEvaluator struct {
	script map[string]map[string]hostapi.Value
}

func newScriptedEvaluator() *scriptedEvaluator {
	return &scriptedEvaluator{script: map[string]map[string]hostapi.Value{}}
}

func (e *scriptedEvaluator) on(v *fakeValue, expr string, result hostapi.Value) {
	m, ok := e.script[v.raw]
	if !ok {
		m = map[string]hostapi.Value{}
		e.script[v.raw] = m
	}
	m[expr] = result
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, v hostapi.Value, expr string) (hostapi.Value, error) {
	fv, ok := v.(*fakeValue)
	if !ok {
		return nil, fmt.Errorf("unexpected value type")
	}
	m, ok := e.script[fv.raw]
	if !ok {
		return nil, fmt.Errorf("no script for %q", fv.raw)
	}
	result, ok := m[expr]
	if !ok {
		return nil, fmt.Errorf("no script for expr %q on %q", expr, fv.raw)
	}
	return result, nil
}

func (e *scriptedEvaluator) ValidateCompiles(ctx context.Context, expr string) bool { return true }

func newEngine(ev hostapi.ExpressionEvaluator) *Engine {
	return &Engine{
		Storage:   storage.New(nil),
		Tracker:   itemexpr.New(),
		Prologs:   intrinsics.NewPrologCache(intrinsics.NewCache()),
		Evaluator: ev,
		PID:       1,
	}
}

func mustAddType(t *testing.T, s *storage.Storage, name string, tv *model.TypeViz) {
	t.Helper()
	tvName, err := model.NewTypeVizName(name)
	require.NoError(t, err)
	tv.TypeVizNames = []*model.TypeVizName{tvName}
	s.AddType(tv)
}

func TestDispatch_SummaryMatchesExactType(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "hello"}},
	})

	v := newFakeValue("Foo", "")
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.HasSummary)
	assert.Equal(t, "hello", res.Summary)
	assert.Equal(t, "Foo", res.MatchedName)
	assert.False(t, res.UsedBuiltin)
}

func TestDispatch_ConditionGuardsSummary(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	ev.on(v, "m_big", newFakeValue("bool", "0"))

	e := newEngine(ev)
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{
			{Condition: "m_big", Value: "big"},
			{Value: "small"},
		},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "small", res.Summary)
}

func TestDispatch_InterpolationFailureDegradesToPlaceholder(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	ev.on(v, "m_ok", newFakeValue("int", "42"))
	// m_bad is deliberately left unscripted, so Evaluate errors for it.

	e := newEngine(ev)
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "ok={m_ok} bad={m_bad}"}},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "ok=42 bad=???", res.Summary)
}

func TestDispatch_RawViewFlagSkipsNatvis(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "hello"}},
	})

	v := newFakeValue("Foo", "42")
	code := formatcode.Code(formatcode.RawView | formatcode.NoAddress)
	res, err := e.Dispatch(context.Background(), v, code, ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.UsedBuiltin)
	assert.Equal(t, "42", res.Summary)
}

func TestDispatch_FallsBackToInheritableBaseClass(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Base", &model.TypeViz{
		IsInheritable: true,
		Summaries:     []*model.Summary{{Value: "from base"}},
	})

	base := newFakeValue("Base", "")
	derived := newFakeValue("Derived", "")
	derived.typ.bases = []*fakeValue{base}

	res, err := e.Dispatch(context.Background(), derived, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "from base", res.Summary)
	assert.Equal(t, "Base", res.MatchedName)
}

func TestDispatch_NoDerivedFlagSkipsBaseClassWalk(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Base", &model.TypeViz{
		IsInheritable: true,
		Summaries:     []*model.Summary{{Value: "from base"}},
	})

	base := newFakeValue("Base", "bv")
	derived := newFakeValue("Derived", "dv")
	derived.typ.bases = []*fakeValue{base}

	res, err := e.Dispatch(context.Background(), derived, formatcode.Code(formatcode.NoDerived), ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.UsedBuiltin)
	assert.Equal(t, "dv", res.Summary)
}

func TestDispatch_NonInheritableBaseIsIgnored(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Base", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "from base"}}, // IsInheritable left false
	})

	base := newFakeValue("Base", "bv")
	derived := newFakeValue("Derived", "dv")
	derived.typ.bases = []*fakeValue{base}

	res, err := e.Dispatch(context.Background(), derived, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.UsedBuiltin)
	assert.Equal(t, "dv", res.Summary)
}

func TestDispatch_RecursionCapFallsBackToBuiltin(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "hello"}},
	})
	e.level = DefaultRecursionCap

	v := newFakeValue("Foo", "raw-value")
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.UsedBuiltin)
	assert.Equal(t, "recursion cap exceeded", res.FellBack)
	assert.Equal(t, "raw-value", res.Summary)
}

func TestDispatch_ChildrenBuiltFromArrayItemsWithRawView(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	sizeVal := newFakeValue("int", "2")
	ptrVal := newFakeValue("int *", "")
	ev.on(v, "m_size", sizeVal)
	ev.on(v, "m_data", ptrVal)

	e := newEngine(ev)
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		ItemProviders: []model.ItemProvider{
			&model.ArrayItemsProvider{
				Sizes:         []*model.SizeNode{{Expression: "m_size"}},
				ValuePointers: []*model.ValuePointerNode{{Expression: "m_data"}},
			},
		},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	require.True(t, res.HasChildren)
	// 2 array elements + 1 trailing Raw View entry.
	assert.Equal(t, 3, res.Children.NumChildren())

	_, name, err := res.Children.ChildAtIndex(context.Background(), 2)
	assert.ErrorIs(t, err, providers.ErrRawView)
	assert.Equal(t, "[Raw View]", name)
}

func TestDispatch_HideRawViewSuppressesTrailingEntry(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	ev.on(v, "m_size", newFakeValue("int", "0"))
	ev.on(v, "m_data", newFakeValue("int *", ""))

	e := newEngine(ev)
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		HideRawView: true,
		ItemProviders: []model.ItemProvider{
			&model.ArrayItemsProvider{
				Sizes:         []*model.SizeNode{{Expression: "m_size"}},
				ValuePointers: []*model.ValuePointerNode{{Expression: "m_data"}},
			},
		},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	require.True(t, res.HasChildren)
	assert.Equal(t, 0, res.Children.NumChildren())
}

func TestDispatch_GlobalHexOverrideAppliesToUnformattedBuiltin(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	e.GlobalHexOverride = true

	v := newFakeValue("int", "42")
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.True(t, res.UsedBuiltin)
	assert.Equal(t, "0x2a", res.Summary)
}

func TestDispatch_GlobalHexOverrideIgnoresNonNumericBuiltin(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	e.GlobalHexOverride = true

	v := newFakeValue("Foo", "not-a-number")
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "not-a-number", res.Summary)
}

func TestDispatch_GlobalHexOverrideSkippedWhenFormatAlreadyExplicit(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	e.GlobalHexOverride = true

	v := newFakeValue("int", "42")
	code := formatcode.Code(formatcode.Decimal)
	res, err := e.Dispatch(context.Background(), v, code, ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Summary)
}

func TestDispatch_CharsetOverrideWidensNarrowString(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	e.CharsetOverride = "utf16"

	v := newFakeValue("char *", `"hi"`)
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, `L"hi"`, res.Summary)
}

func TestDispatch_CharsetOverrideNarrowsWideString(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	e.CharsetOverride = "utf8"

	v := newFakeValue("wchar_t *", `L"hi"`)
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, res.Summary)
}

func TestDispatch_MarkupEnabledWrapsSummaryRuns(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	ev.on(v, "m_ok", newFakeValue("int", "42"))

	e := newEngine(ev)
	e.MarkupEnabled = true
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{{Value: "n={m_ok}"}},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "n=\xFEV42\xFEE", res.Summary)
}

func TestDispatch_MaxChildrenOverridesDiscoveryCap(t *testing.T) {
	ev := newScriptedEvaluator()
	v := newFakeValue("Foo", "")
	ev.on(v, "m_head", newFakeValue("Node *", "head"))

	e := newEngine(ev)
	e.MaxChildren = 3

	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		HideRawView: true,
		ItemProviders: []model.ItemProvider{
			&model.LinkedListItemsProvider{
				HeadPointer:     "m_head",
				NextExpression:  "m_next",
				ValueExpression: "m_value",
			},
		},
	})

	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	require.True(t, res.HasChildren)
	assert.Equal(t, 3, res.Children.NumChildren())
}

func TestDispatch_ViewFilterExcludesNonMatchingSummary(t *testing.T) {
	e := newEngine(newScriptedEvaluator())
	mustAddType(t, e.Storage, "Foo", &model.TypeViz{
		Summaries: []*model.Summary{
			{Value: "detailed", IncludeView: "detailed"},
			{Value: "default"},
		},
	})

	v := newFakeValue("Foo", "")
	res, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{Name: "detailed"})
	require.NoError(t, err)
	assert.Equal(t, "detailed", res.Summary)

	res2, err := e.Dispatch(context.Background(), v, formatcode.Code(0), ViewContext{})
	require.NoError(t, err)
	assert.Equal(t, "default", res2.Summary)
}
