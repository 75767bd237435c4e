package providers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/itemexpr"
	"github.com/standardbeagle/natvis-engine/internal/model"
)

type fakeType struct{ name string }

func (t *fakeType) Name() string                  { return t.name }
func (t *fakeType) Class() hostapi.TypeClass       { return hostapi.TypeClassStruct }
func (t *fakeType) IsAnonymous() bool              { return false }
func (t *fakeType) PointeeType() hostapi.Type      { return nil }
func (t *fakeType) ArrayElementType() hostapi.Type { return nil }
func (t *fakeType) ArrayLength() (int, bool)       { return 0, false }
func (t *fakeType) PointerType() hostapi.Type      { return &fakeType{name: t.name + " *"} }
func (t *fakeType) BaseClassCount() int            { return 0 }

type fakeValue struct {
	typ      *fakeType
	name     string
	path     string
	raw      string
	children map[int]*fakeValue
	members  map[string]*fakeValue
	metadata map[string]string
}

func newFakeValue(path, raw string) *fakeValue {
	return &fakeValue{typ: &fakeType{name: "Node"}, path: path, raw: raw, metadata: map[string]string{}}
}

func (v *fakeValue) Type() hostapi.Type        { return v.typ }
func (v *fakeValue) DynamicType() hostapi.Type { return v.typ }
func (v *fakeValue) IsDynamic() bool           { return false }
func (v *fakeValue) Name() string              { return v.name }
func (v *fakeValue) Path() string              { return v.path }
func (v *fakeValue) Raw() string               { return v.raw }
func (v *fakeValue) Metadata(key string) (string, bool) {
	s, ok := v.metadata[key]
	return s, ok
}
func (v *fakeValue) SetMetadata(key, value string)       { v.metadata[key] = value }
func (v *fakeValue) NonSynthetic() hostapi.Value         { return v }
func (v *fakeValue) StaticValue() hostapi.Value          { return v }
func (v *fakeValue) AddressOf() (hostapi.Value, bool)    { return nil, false }
func (v *fakeValue) Dereference() (hostapi.Value, error) { return nil, nil }
func (v *fakeValue) Cast(hostapi.Type) (hostapi.Value, error) {
	return v, nil
}
func (v *fakeValue) ChildAtIndex(i int) (hostapi.Value, bool) {
	c, ok := v.children[i]
	if !ok {
		return nil, false
	}
	return c, true
}
func (v *fakeValue) ChildMemberWithName(name string) (hostapi.Value, bool) {
	c, ok := v.members[name]
	if !ok {
		return nil, false
	}
	return c, true
}
func (v *fakeValue) BaseClassAtIndex(i int) (hostapi.Value, bool) { return nil, false }

// scriptedEvaluator resolves one expression against one value to a
// fixed next value, keyed by (value path, expression).
type scriptedEvaluator struct {
	script map[string]map[string]hostapi.Value
}

func newScriptedEvaluator() *scriptedEvaluator {
	return &scriptedEvaluator{script: map[string]map[string]hostapi.Value{}}
}

func (e *scriptedEvaluator) on(v *fakeValue, expr string, result hostapi.Value) {
	m, ok := e.script[v.path]
	if !ok {
		m = map[string]hostapi.Value{}
		e.script[v.path] = m
	}
	m[expr] = result
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, v hostapi.Value, expr string) (hostapi.Value, error) {
	fv, ok := v.(*fakeValue)
	if !ok {
		return nil, fmt.Errorf("unexpected value type")
	}
	m, ok := e.script[fv.path]
	if !ok {
		return nil, fmt.Errorf("no script for path %q", fv.path)
	}
	result, ok := m[expr]
	if !ok {
		return nil, fmt.Errorf("no script for expr %q on %q", expr, fv.path)
	}
	return result, nil
}

func (e *scriptedEvaluator) ValidateCompiles(ctx context.Context, expr string) bool { return true }

func TestArrayProvider_ChildAtIndex(t *testing.T) {
	tracker := itemexpr.New()
	root := newFakeValue("arr", "")
	root.children = map[int]*fakeValue{
		0: newFakeValue("arr[0]", "10"),
		1: newFakeValue("arr[1]", "20"),
	}
	p := NewArrayProvider(tracker, 2, root, nil)
	assert.Equal(t, 2, p.NumChildren())

	child, name, err := p.ChildAtIndex(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "[1]", name)
	assert.Equal(t, "20", child.Raw())

	_, _, err = p.ChildAtIndex(context.Background(), 5)
	assert.Error(t, err)
}

func TestLinkedListProvider_WalksForwardAndResumes(t *testing.T) {
	tracker := itemexpr.New()
	ev := newScriptedEvaluator()
	n0 := newFakeValue("n0", "")
	n1 := newFakeValue("n1", "")
	n2 := newFakeValue("n2", "")
	ev.on(n0, "next", n1)
	ev.on(n1, "next", n2)
	ev.on(n0, "value", newFakeValue("n0v", "a"))
	ev.on(n1, "value", newFakeValue("n1v", "b"))
	ev.on(n2, "value", newFakeValue("n2v", "c"))

	p := NewLinkedListProvider(tracker, ev, n0, "next", "value", "", 3, nil)

	v0, _, err := p.ChildAtIndex(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "a", v0.Raw())

	v2, _, err := p.ChildAtIndex(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "c", v2.Raw())

	// Re-requesting an earlier index should reset the cursor, not error.
	v1, _, err := p.ChildAtIndex(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "b", v1.Raw())
}

func TestTreeProvider_InOrderTraversal(t *testing.T) {
	tracker := itemexpr.New()
	ev := newScriptedEvaluator()

	root := newFakeValue("root", "")
	left := newFakeValue("left", "")
	right := newFakeValue("right", "")

	ev.on(root, "left", left)
	ev.on(left, "left", nil)
	ev.on(left, "right", nil)
	ev.on(root, "right", right)
	ev.on(right, "left", nil)
	ev.on(right, "right", nil)

	ev.on(left, "value", newFakeValue("lv", "L"))
	ev.on(root, "value", newFakeValue("rv", "ROOT"))
	ev.on(right, "value", newFakeValue("riv", "R"))

	p := NewTreeProvider(tracker, ev, root, "left", "right", "value", "", "", 3, nil)

	v0, _, err := p.ChildAtIndex(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "L", v0.Raw())

	v1, _, err := p.ChildAtIndex(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ROOT", v1.Raw())

	v2, _, err := p.ChildAtIndex(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "R", v2.Raw())
}

func TestCustomListProvider_ItemsThenJumpPastEnd(t *testing.T) {
	tracker := itemexpr.New()
	ev := newScriptedEvaluator()
	ctxVal := newFakeValue("ctx", "")

	ev.on(ctxVal, "0", newFakeValue("v0", "zero"))
	ev.on(ctxVal, "1", newFakeValue("v1", "one"))

	program := &model.CustomListItemsProvider{
		Instructions: []model.Instruction{
			&model.ItemInstruction{Expression: "0"},     // pc 0
			&model.ItemInstruction{Expression: "1"},     // pc 1
			&model.JumpInstruction{Target: 3},           // pc 2 (jumps past the end, ending the program)
		},
	}

	p := NewCustomListProvider(tracker, ev, ctxVal, program, nil)
	child0, _, err := p.ChildAtIndex(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "zero", child0.Raw())

	child1, _, err := p.ChildAtIndex(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "one", child1.Raw())

	_, _, err = p.ChildAtIndex(context.Background(), 2)
	assert.Error(t, err, "program exhausts after two items")
}
