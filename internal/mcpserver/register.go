// Package mcpserver exposes a project's live state as MCP tools for
// inspection and manual recovery, adapted from the teacher's
// kit.RegisterMCPTool generic endpoint-to-tool adapter and the
// per-package mcp.go registration style (see veille/mcp.go).
//
// The teacher's own Endpoint type lives in its external pkg/kit module and
// is not available here, so it is redefined locally against its observed
// usage shape: a context plus a decoded request in, a JSON-able response
// or error out.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Endpoint handles one decoded MCP tool call.
type Endpoint func(ctx context.Context, request any) (response any, err error)

// decodeResult holds a tool call's decoded request.
type decodeResult struct {
	Request any
}

// registerTool wires tool to srv: decode extracts the typed request from
// the raw MCP arguments, endpoint does the work, and the result (or error)
// is marshaled back as the tool's text content.
func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode func(*mcp.CallToolRequest) (*decodeResult, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func projectIDSchema() map[string]any {
	return inputSchema(map[string]any{
		"project_id": map[string]any{"type": "string", "description": "Project ID"},
	}, []string{"project_id"})
}

type projectIDRequest struct {
	ProjectID string `json:"project_id"`
}

func decodeProjectID(r *mcp.CallToolRequest) (*decodeResult, error) {
	var p projectIDRequest
	if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
		return nil, err
	}
	if p.ProjectID == "" {
		return nil, errors.New("project_id is required")
	}
	return &decodeResult{Request: &p}, nil
}
