// Package mcp exposes a labguide session as MCP tools so an agent can walk a
// guide, toggle exam mode and read summaries.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with every labguide tool registered on h.
func NewServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"labguide",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("labguide/validate",
			mcp.WithDescription("Validate a guide document (YAML or TOML)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .guide.yaml or .guide.toml file")),
		),
		HandleValidate,
	)
	s.AddTool(
		mcp.NewTool("labguide/schema",
			mcp.WithDescription("Export the JSON Schema of guide or plan documents"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'guide' or 'plan'")),
		),
		HandleSchema,
	)
	s.AddTool(
		mcp.NewTool("labguide/list",
			mcp.WithDescription("List the guides available to the session"),
		),
		h.HandleList,
	)
	s.AddTool(
		mcp.NewTool("labguide/load",
			mcp.WithDescription("Start a guide from its first step, discarding current progress"),
			mcp.WithString("guide", mcp.Required(), mcp.Description("Guide id")),
		),
		h.HandleLoad,
	)
	s.AddTool(
		mcp.NewTool("labguide/complete",
			mcp.WithDescription("Report a step as done. Only the current step can be completed"),
			mcp.WithString("step", mcp.Description("Step id; defaults to the current step")),
		),
		h.HandleComplete,
	)
	s.AddTool(
		mcp.NewTool("labguide/activate",
			mcp.WithDescription("Jump to a step. Earlier unfinished steps are activated first"),
			mcp.WithString("step", mcp.Description("Step id")),
			mcp.WithNumber("index", mcp.Description("Zero-based step index, used when step is empty")),
		),
		h.HandleActivate,
	)
	s.AddTool(
		mcp.NewTool("labguide/rollback",
			mcp.WithDescription("Reopen the previous step"),
		),
		h.HandleRollback,
	)
	s.AddTool(
		mcp.NewTool("labguide/restart",
			mcp.WithDescription("Restart the loaded guide"),
		),
		h.HandleRestart,
	)
	s.AddTool(
		mcp.NewTool("labguide/status",
			mcp.WithDescription("Show the loaded guide, its steps and the current step"),
		),
		h.HandleStatus,
	)
	s.AddTool(
		mcp.NewTool("labguide/exam",
			mcp.WithDescription("Turn exam instrumentation on or off, or reset its counters"),
			mcp.WithString("mode", mcp.Required(), mcp.Description("'on', 'off' or 'reset'")),
		),
		h.HandleExam,
	)
	s.AddTool(
		mcp.NewTool("labguide/summary",
			mcp.WithDescription("Return the graded exam summary for the loaded guide"),
		),
		h.HandleSummary,
	)

	return s
}
