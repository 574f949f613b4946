package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// ConvertRequest represents the arguments for ale_convert.
type ConvertRequest struct {
	Inputs        []string `json:"inputs"`
	Output        string   `json:"output"`
	NamingPattern string   `json:"naming_pattern,omitempty"`
	ReportFile    string   `json:"report_file,omitempty"`
	Force         bool     `json:"force,omitempty"`
}

// InspectRequest represents the arguments for ale_inspect.
type InspectRequest struct {
	Path          string `json:"path"`
	NamingPattern string `json:"naming_pattern,omitempty"`
}

// HistoryListRequest represents the arguments for history_list.
type HistoryListRequest struct {
	Output string `json:"output,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// HistoryShowRequest represents the arguments for history_show.
type HistoryShowRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleConvert handles the ale_convert tool call.
// A run that fails after reading started still reports its partial result
// under "run" next to the error.
func (h *Handlers) HandleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConvertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Convert(ctx, h.deps, ops.ConvertInput{
		Inputs:        input.Inputs,
		Output:        input.Output,
		NamingPattern: input.NamingPattern,
		ReportFile:    input.ReportFile,
		Force:         input.Force,
	})
	if err != nil {
		if result != nil {
			return errorResultWith(err, map[string]any{"run": result}), nil
		}
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the ale_inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(ctx, h.deps, ops.InspectInput{
		Path:          input.Path,
		NamingPattern: input.NamingPattern,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryList handles the history_list tool call.
func (h *Handlers) HandleHistoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryList(h.deps.DB, ops.HistoryListInput{
		Output: input.Output,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistoryShow handles the history_show tool call.
func (h *Handlers) HandleHistoryShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryShowRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.HistoryShow(h.deps.DB, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	return errorResultWith(err, nil)
}

// errorResultWith is errorResult with extra top-level payload fields.
func errorResultWith(err error, extra map[string]any) *mcp.CallToolResult {
	payload := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		payload[k] = v
	}

	var cErr *errors.CDLError
	if stderrors.As(err, &cErr) {
		message := cErr.Message
		if err != error(cErr) {
			// Keep wrapper context
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload["error"] = errorObj
	} else {
		payload["error"] = map[string]any{
			"code":    "INTERNAL",
			"message": "an internal error occurred",
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
