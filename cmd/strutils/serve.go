package main

import (
	"context"

	"github.com/FocuswithJustin/strutils/internal/api"
	mcpadapter "github.com/FocuswithJustin/strutils/internal/mcp"
)

// ServeGroup contains the long-running adapters.
type ServeGroup struct {
	HTTP ServeHTTPCmd `cmd:"" name:"http" help:"Start the HTTP API server"`
	MCP  ServeMCPCmd  `cmd:"" name:"mcp" help:"Serve MCP tools on stdin/stdout"`
}

// ServeHTTPCmd starts the HTTP adapter.
type ServeHTTPCmd struct {
	Addr      string `help:"Listen address (overrides http.addr)"`
	NoMetrics bool   `help:"Disable the /metrics endpoint"`
}

func (c *ServeHTTPCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	cfg := api.ConfigFrom(a.cfg)
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.NoMetrics {
		cfg.Metrics = false
	}
	return api.NewServer(cfg, a.loader, a.engine).Start(ctx)
}

// ServeMCPCmd serves the MCP adapter over stdio. Logs go to stderr.
type ServeMCPCmd struct{}

func (c *ServeMCPCmd) Run(g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	return mcpadapter.NewServer(a.loader, a.engine, version).ServeStdio()
}
