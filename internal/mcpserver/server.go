// Package mcpserver exposes the Formatter Manager and Dispatch Engine
// as MCP tools, the same role the teacher's internal/mcp plays for its
// indexing core — grounded on internal/mcp/server.go's
// mcp.NewServer/AddTool wiring and internal/mcp/response.go's
// createJSONResponse helper.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/natvis-engine/internal/dispatch"
	"github.com/standardbeagle/natvis-engine/internal/formatcode"
	"github.com/standardbeagle/natvis-engine/internal/formatter"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/version"
)

// ValueSource resolves an expression typed by an MCP client into a live
// hostapi.Value — the seam standing in for whatever live debugger
// session the IDE has open, the same way hostapi.ExpressionEvaluator
// stands in for the evaluator itself (both explicit non-goals).
type ValueSource interface {
	Resolve(ctx context.Context, expression string) (hostapi.Value, error)
}

// Server wires a formatter.Manager and a dispatch.Engine onto an MCP
// tool surface: natvis_load, natvis_reload, natvis_list, natvis_eval.
type Server struct {
	mgr    *formatter.Manager
	engine *dispatch.Engine
	values ValueSource

	server *mcp.Server
}

// New builds a Server bound to mgr (the tracked visualiser-file set),
// engine (dispatch, sharing mgr.Storage()), and values (expression
// resolution for natvis_eval).
func New(mgr *formatter.Manager, engine *dispatch.Engine, values ValueSource) *Server {
	s := &Server{mgr: mgr, engine: engine, values: values}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "natvis-engine-mcp",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Run starts serving over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "natvis_load",
		Description: "Load a .natvis file (or glob of files) into the engine, registering its visualisers.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path or glob pattern (e.g. \"visualizers/**/*.natvis\")",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleLoad)

	s.server.AddTool(&mcp.Tool{
		Name:        "natvis_reload",
		Description: "Re-parse a previously loaded .natvis file (or every tracked file if path is omitted) and rebuild the visualiser set.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path to reload; omit to reload every tracked file",
				},
			},
		},
	}, s.handleReload)

	s.server.AddTool(&mcp.Tool{
		Name:        "natvis_list",
		Description: "List every .natvis file currently tracked by the engine.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}, s.handleList)

	s.server.AddTool(&mcp.Tool{
		Name:        "natvis_eval",
		Description: "Resolve an expression to a value and dispatch it through the visualiser engine, returning its summary and child count.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"expression": {
					Type:        "string",
					Description: "Expression identifying the value to visualise",
				},
			},
			Required: []string{"expression"},
		},
	}, s.handleEval)
}

type loadParams struct {
	Path string `json:"path"`
}

func (s *Server) handleLoad(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p loadParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResponse("natvis_load", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Path == "" {
		return errorResponse("natvis_load", fmt.Errorf("path is required"))
	}

	var err error
	if containsGlobMeta(p.Path) {
		err = s.mgr.AddGlob(p.Path)
	} else {
		err = s.mgr.Add(p.Path)
	}
	if err != nil {
		return errorResponse("natvis_load", err)
	}

	return jsonResponse(map[string]interface{}{
		"loaded": true,
		"files":  s.mgr.ListAll(),
	})
}

type reloadParams struct {
	Path string `json:"path,omitempty"`
}

func (s *Server) handleReload(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p reloadParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return errorResponse("natvis_reload", fmt.Errorf("invalid parameters: %w", err))
		}
	}

	var err error
	if p.Path == "" {
		err = s.mgr.ReloadAll()
	} else {
		err = s.mgr.Reload(p.Path)
	}
	if err != nil {
		return errorResponse("natvis_reload", err)
	}

	return jsonResponse(map[string]interface{}{
		"reloaded": true,
		"files":    s.mgr.ListAll(),
	})
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResponse(map[string]interface{}{
		"files": s.mgr.ListAll(),
	})
}

type evalParams struct {
	Expression string `json:"expression"`
}

func (s *Server) handleEval(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p evalParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResponse("natvis_eval", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Expression == "" {
		return errorResponse("natvis_eval", fmt.Errorf("expression is required"))
	}
	if s.values == nil {
		return errorResponse("natvis_eval", fmt.Errorf("no value source configured"))
	}

	val, err := s.values.Resolve(ctx, p.Expression)
	if err != nil {
		return errorResponse("natvis_eval", fmt.Errorf("resolving %q: %w", p.Expression, err))
	}

	s.engine.Storage = s.mgr.Storage()
	res, err := s.engine.Dispatch(ctx, val, formatcode.Code(0), dispatch.ViewContext{})
	if err != nil {
		return errorResponse("natvis_eval", err)
	}

	numChildren := 0
	if res.HasChildren {
		numChildren = res.Children.NumChildren()
	}

	return jsonResponse(map[string]interface{}{
		"summary":      res.Summary,
		"has_summary":  res.HasSummary,
		"num_children": numChildren,
		"matched_name": res.MatchedName,
		"used_builtin": res.UsedBuiltin,
		"fell_back":    res.FellBack,
	})
}

func containsGlobMeta(path string) bool {
	for _, r := range path {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

func jsonResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

func errorResponse(tool string, err error) (*mcp.CallToolResult, error) {
	return jsonResponse(map[string]interface{}{
		"tool":  tool,
		"error": err.Error(),
	})
}
