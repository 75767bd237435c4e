package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/natvis-engine/internal/dispatch"
	"github.com/standardbeagle/natvis-engine/internal/formatter"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/itemexpr"
	"github.com/standardbeagle/natvis-engine/internal/model"
)

type fakeSource struct{}

func (fakeSource) Parse(path string, contents []byte) ([]*model.TypeViz, error) { return nil, nil }

type fakeValueSource struct {
	value hostapi.Value
	err   error
}

func (f fakeValueSource) Resolve(ctx context.Context, expr string) (hostapi.Value, error) {
	return f.value, f.err
}

type fakeType struct{ name string }

func (t *fakeType) Name() string                      { return t.name }
func (t *fakeType) Class() hostapi.TypeClass           { return hostapi.TypeClassStruct }
func (t *fakeType) IsAnonymous() bool                  { return false }
func (t *fakeType) PointeeType() hostapi.Type          { return nil }
func (t *fakeType) ArrayElementType() hostapi.Type     { return nil }
func (t *fakeType) ArrayLength() (int, bool)           { return 0, false }
func (t *fakeType) PointerType() hostapi.Type          { return nil }
func (t *fakeType) BaseClassCount() int                { return 0 }

type fakeValue struct {
	typ *fakeType
	raw string
}

func (v *fakeValue) Type() hostapi.Type                                    { return v.typ }
func (v *fakeValue) DynamicType() hostapi.Type                             { return v.typ }
func (v *fakeValue) IsDynamic() bool                                       { return false }
func (v *fakeValue) Name() string                                          { return "value" }
func (v *fakeValue) Path() string                                          { return "value" }
func (v *fakeValue) Raw() string                                           { return v.raw }
func (v *fakeValue) Metadata(key string) (string, bool)                    { return "", false }
func (v *fakeValue) SetMetadata(key, value string)                        {}
func (v *fakeValue) NonSynthetic() hostapi.Value                           { return v }
func (v *fakeValue) StaticValue() hostapi.Value                            { return v }
func (v *fakeValue) AddressOf() (hostapi.Value, bool)                      { return nil, false }
func (v *fakeValue) Dereference() (hostapi.Value, error)                   { return nil, errors.New("no pointee") }
func (v *fakeValue) Cast(t hostapi.Type) (hostapi.Value, error)            { return v, nil }
func (v *fakeValue) ChildAtIndex(i int) (hostapi.Value, bool)              { return nil, false }
func (v *fakeValue) ChildMemberWithName(name string) (hostapi.Value, bool) { return nil, false }
func (v *fakeValue) BaseClassAtIndex(i int) (hostapi.Value, bool)          { return nil, false }

func newTestServer(t *testing.T, values ValueSource) (*Server, *formatter.Manager) {
	t.Helper()
	mgr := formatter.New(fakeSource{}, nil, nil)
	engine := &dispatch.Engine{
		Storage: mgr.Storage(),
		Tracker: itemexpr.New(),
	}
	return New(mgr, engine, values), mgr
}

func callToolResultText(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &out))
	return out
}

func TestHandleLoad_TracksNewFile(t *testing.T) {
	s, mgr := newTestServer(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.natvis")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	args, _ := json.Marshal(loadParams{Path: path})
	res, err := s.handleLoad(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: args}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	assert.Equal(t, true, out["loaded"])
	assert.Len(t, mgr.ListAll(), 1)
}

func TestHandleLoad_MissingPathIsAnError(t *testing.T) {
	s, _ := newTestServer(t, nil)
	args, _ := json.Marshal(loadParams{})
	res, err := s.handleLoad(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: args}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	assert.NotEmpty(t, out["error"])
}

func TestHandleList_ReflectsTrackedFiles(t *testing.T) {
	s, mgr := newTestServer(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.natvis")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	require.NoError(t, mgr.Add(path))

	res, err := s.handleList(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	files, ok := out["files"].([]interface{})
	require.True(t, ok)
	assert.Len(t, files, 1)
}

func TestHandleEval_NoValueSourceConfiguredIsAnError(t *testing.T) {
	s, _ := newTestServer(t, nil)
	args, _ := json.Marshal(evalParams{Expression: "x"})
	res, err := s.handleEval(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: args}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	assert.Contains(t, out["error"], "no value source")
}

func TestHandleEval_DispatchesResolvedValue(t *testing.T) {
	val := &fakeValue{typ: &fakeType{name: "Foo"}, raw: "42"}
	s, _ := newTestServer(t, fakeValueSource{value: val})

	args, _ := json.Marshal(evalParams{Expression: "myVar"})
	res, err := s.handleEval(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: args}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	assert.Equal(t, "42", out["summary"])
	assert.Equal(t, true, out["used_builtin"])
}

func TestHandleEval_ResolveErrorPropagates(t *testing.T) {
	s, _ := newTestServer(t, fakeValueSource{err: errors.New("not found")})

	args, _ := json.Marshal(evalParams{Expression: "myVar"})
	res, err := s.handleEval(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: args}})
	require.NoError(t, err)

	out := callToolResultText(t, res)
	assert.Contains(t, out["error"], "not found")
}

func TestContainsGlobMeta(t *testing.T) {
	assert.True(t, containsGlobMeta("vendor/**/*.natvis"))
	assert.False(t, containsGlobMeta("vendor/a.natvis"))
}
