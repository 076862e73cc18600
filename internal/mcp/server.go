// Package mcp exposes the strutils commands as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/core/value"
	"github.com/FocuswithJustin/strutils/internal/commands/strutils"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// Tool and resource names.
const (
	ToolDeunicode  = "str_deunicode"
	ToolRunCommand = "run_command"
	TableURI       = "strutils://table"
)

// TableInfo describes the transliteration table behind the tools.
type TableInfo struct {
	Digest      string `json:"digest"`
	Ranges      int    `json:"ranges"`
	Codepoints  int    `json:"codepoints"`
	Placeholder string `json:"placeholder"`
}

// Server wraps the plugin host as an MCP server.
type Server struct {
	loader    *plugins.Loader
	engine    *translit.Engine
	mcpServer *server.MCPServer
}

// NewServer returns a server running commands through loader. engine backs
// the table resource; nil means the built-in tables.
func NewServer(loader *plugins.Loader, engine *translit.Engine, version string) *Server {
	if engine == nil {
		engine = translit.DefaultEngine()
	}
	s := &Server{
		loader: loader,
		engine: engine,
		mcpServer: server.NewMCPServer("strutils-mcp", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	logging.ServerStartup("mcp", "stdio", "-")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolDeunicode,
		mcp.WithDescription("Convert a Unicode string to pure ASCII, e.g. 'A…C' becomes 'A...C'."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to transliterate")),
	), s.handleDeunicode)

	s.mcpServer.AddTool(mcp.NewTool(ToolRunCommand,
		mcp.WithDescription("Run a strutils command on a JSON input value and return the JSON result."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Command name, e.g. 'str deunicode'")),
		mcp.WithString("input", mcp.Required(), mcp.Description("Input as plain JSON, e.g. \"café\"")),
	), s.handleRunCommand)
}

func (s *Server) handleDeunicode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arg, ok := request.GetArguments()["text"]
	if !ok {
		return mcp.NewToolResultError("missing required argument: text"), nil
	}
	text, ok := arg.(string)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Input type not supported: only string input data is supported, got %s", argTypeName(arg))), nil
	}

	out, err := s.loader.Run(ctx, strutils.DeunicodeName, value.String(text, value.Unknown), value.Unknown)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("deunicode failed", err), nil
	}
	if out.IsError() {
		return mcp.NewToolResultError(out.Display()), nil
	}
	result, _ := out.AsString()
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input, err := value.FromJSON([]byte(raw), value.Unknown)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("invalid input JSON", err), nil
	}

	out, err := s.loader.Run(ctx, name, input, value.Unknown)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("command failed", err), nil
	}
	if out.IsError() {
		return mcp.NewToolResultError(out.Display()), nil
	}
	data, err := json.Marshal(out.Interface())
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// argTypeName names a decoded JSON argument in host value terms.
func argTypeName(arg any) string {
	v, err := value.FromGo(arg, value.Unknown)
	if err != nil {
		return fmt.Sprintf("%T", arg)
	}
	return v.TypeName()
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TableURI, "Transliteration table",
		mcp.WithResourceDescription("Digest and coverage of the table in use"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		m := s.engine.Mapping()
		data, err := json.Marshal(TableInfo{
			Digest:      m.Digest(),
			Ranges:      m.Len(),
			Codepoints:  m.Codepoints(),
			Placeholder: s.engine.Placeholder(),
		})
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: TableURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
