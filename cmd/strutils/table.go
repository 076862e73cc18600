package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/strutils/core/sqlite"
	"github.com/FocuswithJustin/strutils/core/tabledb"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
	"github.com/FocuswithJustin/strutils/internal/validation"
)

// TableGroup contains transliteration table operations.
type TableGroup struct {
	Info   TableInfoCmd   `cmd:"" help:"Show the table digest and coverage"`
	Lookup TableLookupCmd `cmd:"" help:"Show the replacement for characters"`
	Dump   TableDumpCmd   `cmd:"" help:"Print the table in .tbl syntax"`
	Export TableExportCmd `cmd:"" help:"Export the table to a SQLite database"`
	Verify TableVerifyCmd `cmd:"" help:"Check an exported database against its recorded digest"`
}

// TableInfoCmd prints table statistics.
type TableInfoCmd struct{}

func (c *TableInfoCmd) Run(g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	m := a.engine.Mapping()
	fmt.Fprintf(s.out, "digest:      %s\n", m.Digest())
	fmt.Fprintf(s.out, "ranges:      %d\n", m.Len())
	fmt.Fprintf(s.out, "codepoints:  %d\n", m.Codepoints())
	fmt.Fprintf(s.out, "placeholder: %q\n", a.engine.Placeholder())
	if len(a.cfg.Table.Overlays) > 0 {
		fmt.Fprintf(s.out, "overlays:    %s\n", strings.Join(a.cfg.Table.Overlays, ", "))
	}
	return nil
}

// TableLookupCmd looks up characters given literally or as U+XXXX.
type TableLookupCmd struct {
	Chars []string `arg:"" help:"Characters or U+XXXX codepoints"`
}

func (c *TableLookupCmd) Run(g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	m := a.engine.Mapping()
	for _, arg := range c.Chars {
		r, err := tbl.ParseRune(arg)
		if err != nil {
			return err
		}
		repl, ok := m.Lookup(r)
		switch {
		case ok:
			fmt.Fprintf(s.out, "%s %c %q\n", tbl.FormatCodepoint(r), r, repl)
		case r < 0x80:
			fmt.Fprintf(s.out, "%s %c ascii\n", tbl.FormatCodepoint(r), r)
		default:
			fmt.Fprintf(s.out, "%s %c unmapped\n", tbl.FormatCodepoint(r), r)
		}
	}
	return nil
}

// TableDumpCmd writes every range back out in table syntax.
type TableDumpCmd struct{}

func (c *TableDumpCmd) Run(g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	var entries []tbl.Entry
	for r := range a.engine.Mapping().Ranges() {
		entries = append(entries, tbl.Entry{Lo: r.Lo, Hi: r.Hi, Repl: r.Repl})
	}
	return tbl.Format(s.out, entries)
}

// TableExportCmd writes the table to SQLite.
type TableExportCmd struct {
	Out   string `short:"o" required:"" help:"Output database path" type:"path"`
	Force bool   `help:"Replace an existing file"`
}

func (c *TableExportCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	if err := validation.ValidateOutputFile(c.Out); err != nil {
		return err
	}
	a, err := g.load(s)
	if err != nil {
		return err
	}
	m := a.engine.Mapping()
	extra := map[string]string{"tool_version": version}
	if len(a.cfg.Table.Overlays) > 0 {
		extra["overlays"] = strings.Join(a.cfg.Table.Overlays, ",")
	}
	if err := tabledb.ExportFile(ctx, c.Out, m, extra, c.Force); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Exported %d ranges (%d codepoints) to %s\n", m.Len(), m.Codepoints(), c.Out)
	fmt.Fprintf(s.out, "digest: %s\n", m.Digest())
	return nil
}

// TableVerifyCmd re-imports an exported database and compares digests.
type TableVerifyCmd struct {
	DB string `arg:"" help:"Exported database" type:"existingfile"`
}

func (c *TableVerifyCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	db, err := sqlite.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	meta, err := tabledb.ReadMeta(ctx, db)
	if err != nil {
		return err
	}
	m, err := tabledb.Import(ctx, db)
	if err != nil {
		return err
	}

	recorded := meta[tabledb.MetaDigest]
	fmt.Fprintf(s.out, "recorded digest: %s\n", recorded)
	fmt.Fprintf(s.out, "imported digest: %s\n", m.Digest())
	current := "no"
	if m.Digest() == a.engine.Mapping().Digest() {
		current = "yes"
	}
	fmt.Fprintf(s.out, "matches current table: %s\n", current)
	if recorded != m.Digest() {
		return fmt.Errorf("%s: recorded digest does not match its contents", c.DB)
	}
	return nil
}
