package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/docgen"
)

// DocsCmd prints the command reference, rendered with glamour on a
// terminal, or writes the reference files into a directory.
type DocsCmd struct {
	Out      string `short:"o" help:"Write COMMANDS.md, PLUGINS.md and TABLE.md into this directory" type:"path"`
	Markdown bool   `help:"Print raw Markdown even on a terminal"`
	Style    string `help:"Glamour style (dark, light, notty, ...); detected from the terminal when empty"`
	Width    int    `help:"Wrap width for rendered output; defaults to the terminal width"`
}

func (c *DocsCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	gen := docgen.NewGenerator(a.loader, c.Out)

	if c.Out != "" {
		if err := gen.GenerateAll(ctx, a.engine.Mapping()); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Generated: %s/{COMMANDS,PLUGINS,TABLE}.md\n", c.Out)
		return nil
	}

	var sigs []command.Signature
	for _, pc := range gen.LoadSignatures(ctx) {
		sigs = append(sigs, pc.Signatures...)
	}
	md := docgen.CommandsMarkdown(sigs)

	fd, tty := terminalFd(s.out)
	if c.Markdown || (!tty && c.Style == "") {
		_, err := io.WriteString(s.out, md)
		return err
	}
	width := c.Width
	if width <= 0 {
		width = 80
		if tty {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				width = w
			}
		}
	}
	rendered, err := docgen.Render(md, width, c.Style)
	if err != nil {
		return err
	}
	_, err = io.WriteString(s.out, rendered)
	return err
}

func terminalFd(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}
