package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session", mcp.Required(),
		mcp.Description("Session id returned by start-flow"),
	)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list-flows",
			mcp.WithDescription("List the available flows with their steps and fields"),
		),
		s.handleListFlows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("start-flow",
			mcp.WithDescription("Start a new session of a flow at step 1 with an empty draft"),
			mcp.WithString("flow", mcp.Required(),
				mcp.Description("Flow name, e.g. claim or roi"),
			),
		),
		s.handleStartFlow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set-field",
			mcp.WithDescription("Set a draft field. Select fields take an option; multi-select fields take comma-separated options which are added to the selection"),
			sessionArg(),
			mcp.WithString("key", mcp.Required(), mcp.Description("Field key")),
			mcp.WithString("value", mcp.Required(), mcp.Description("Field value")),
		),
		s.handleSetField,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("toggle-option",
			mcp.WithDescription("Toggle one option of a multi-select field"),
			sessionArg(),
			mcp.WithString("key", mcp.Required(), mcp.Description("Field key")),
			mcp.WithString("option", mcp.Required(), mcp.Description("Option to add or remove")),
		),
		s.handleToggleOption,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("next-step",
			mcp.WithDescription("Advance to the next step if the current step is valid"),
			sessionArg(),
		),
		s.handleNextStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("previous-step",
			mcp.WithDescription("Go back one step; the draft is kept"),
			sessionArg(),
		),
		s.handlePreviousStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("progress",
			mcp.WithDescription("Show the current step, draft and validation state"),
			sessionArg(),
		),
		s.handleProgress,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("submit-flow",
			mcp.WithDescription("Submit the flow from its last step and return the receipt"),
			sessionArg(),
		),
		s.handleSubmitFlow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("cancel-flow",
			mcp.WithDescription("Abandon a session and discard its draft"),
			sessionArg(),
		),
		s.handleCancelFlow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list-submissions",
			mcp.WithDescription("List acknowledged submissions, optionally for one flow"),
			mcp.WithString("flow", mcp.Description("Flow name; omit for all flows")),
		),
		s.handleListSubmissions,
	)
}
