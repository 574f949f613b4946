package mcp

import "github.com/mark3labs/mcp-go/mcp"

var convertToolDef = mcp.NewTool("ale_convert",
	mcp.WithDescription("Convert one or more ALE logs into a single ASC CDL Color Correction Collection (.ccc). "+
		"Rows whose shot name does not match the naming convention, or whose ASC_SOP cannot be parsed, are skipped and reported. "+
		"Colliding ids are written as <id>_v1, <id>_v2, ..."),
	mcp.WithArray("inputs",
		mcp.Required(),
		mcp.Description("ALE file paths, processed in order"),
		mcp.WithStringItems(),
	),
	mcp.WithString("output",
		mcp.Required(),
		mcp.Description("Destination .ccc path"),
	),
	mcp.WithString("naming_pattern",
		mcp.Description("Regular expression deriving the id from the shot name; the first capture group is used"),
	),
	mcp.WithString("report_file",
		mcp.Description("Write a Markdown (.md) or HTML (.html) run report to this path. Symlinks and \"..\" components are refused; an existing file that is not an earlier report needs force"),
	),
	mcp.WithBoolean("force",
		mcp.Description("Overwrite an existing output that is not a CCC document"),
	),
)

var inspectToolDef = mcp.NewTool("ale_inspect",
	mcp.WithDescription("Parse an ALE log or CCC document without writing anything. "+
		"For ALE logs, every data row is listed with the id it would be written under or the reason it would be skipped."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("ALE or CCC file path"),
	),
	mcp.WithString("naming_pattern",
		mcp.Description("Regular expression deriving the id from the shot name (ALE only)"),
	),
)

var historyListToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List recorded conversion runs, newest first."),
	mcp.WithString("output",
		mcp.Description("Only runs that wrote this output path"),
	),
	mcp.WithString("status",
		mcp.Description("Only runs with this status"),
		mcp.Enum("ok", "failed", "write_failed"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum runs to return (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Runs to skip"),
	),
)

var historyShowToolDef = mcp.NewTool("history_show",
	mcp.WithDescription("Show one recorded run with the color corrections it wrote and where each came from."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Run id (ULID)"),
	),
)
