// Package docgen generates Markdown reference documentation from the
// command signatures plugins report and from the compiled transliteration
// table.
package docgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/core/translit/tbl"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// Output file names written by GenerateAll.
const (
	CommandsFile = "COMMANDS.md"
	PluginsFile  = "PLUGINS.md"
	TableFile    = "TABLE.md"
)

// Generator writes documentation for the plugins a loader knows about.
type Generator struct {
	Loader    *plugins.Loader
	OutputDir string
}

// NewGenerator returns a generator over loader writing into outputDir.
func NewGenerator(loader *plugins.Loader, outputDir string) *Generator {
	return &Generator{Loader: loader, OutputDir: outputDir}
}

// PluginCommands is one plugin and the signatures it reported.
type PluginCommands struct {
	Plugin     *plugins.Plugin
	Signatures []command.Signature
}

// LoadSignatures asks every plugin for its signatures. Plugins that fail
// are logged and left out.
func (g *Generator) LoadSignatures(ctx context.Context) []PluginCommands {
	var out []PluginCommands
	for _, p := range g.Loader.List() {
		resp, err := plugins.ExecutePlugin(ctx, p, plugins.NewSignatureRequest())
		if err != nil {
			logging.PluginError(p.ID(), "signature", err)
			continue
		}
		sigs, err := plugins.ParseSignatureResult(resp)
		if err != nil {
			logging.PluginError(p.ID(), "signature", err)
			continue
		}
		out = append(out, PluginCommands{Plugin: p, Signatures: sigs})
	}
	return out
}

// GenerateAll writes the command, plugin and table references.
func (g *Generator) GenerateAll(ctx context.Context, m *translit.Mapping) error {
	if err := os.MkdirAll(g.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	loaded := g.LoadSignatures(ctx)
	var sigs []command.Signature
	for _, pc := range loaded {
		sigs = append(sigs, pc.Signatures...)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{CommandsFile, func(w io.Writer) error { return WriteCommandsDoc(w, sigs) }},
		{PluginsFile, func(w io.Writer) error { return WritePluginsDoc(w, loaded) }},
		{TableFile, func(w io.Writer) error { return WriteTableDoc(w, m) }},
	}
	for _, f := range files {
		if err := g.writeFile(f.name, f.write); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) writeFile(name string, write func(io.Writer) error) error {
	path := filepath.Join(g.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}

// WriteCommandsDoc writes the command reference.
func WriteCommandsDoc(w io.Writer, sigs []command.Signature) error {
	var b strings.Builder
	b.WriteString("# Command Reference\n\n")
	if len(sigs) == 0 {
		b.WriteString("No commands available.\n")
	}

	for _, sig := range sigs {
		fmt.Fprintf(&b, "## %s\n\n", sig.Name)
		if sig.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", sig.Description)
		}
		fmt.Fprintf(&b, "**Category:** %s\n\n", sig.Category)
		if len(sig.SearchTerms) > 0 {
			fmt.Fprintf(&b, "**Search terms:** %s\n\n", strings.Join(sig.SearchTerms, ", "))
		}

		b.WriteString("### Input/output types\n\n")
		b.WriteString("| input | output |\n|-------|--------|\n")
		for _, p := range sig.InputOutput {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Input, p.Output)
		}
		b.WriteString("\n")

		if len(sig.Examples) > 0 {
			b.WriteString("### Examples\n\n")
		}
		for _, ex := range sig.Examples {
			if ex.Description != "" {
				fmt.Fprintf(&b, "%s:\n\n", upperFirst(ex.Description))
			}
			fmt.Fprintf(&b, "```\n> %s\n", ex.Example)
			if ex.Result != nil {
				fmt.Fprintf(&b, "%s\n", ex.Result.Display())
			}
			b.WriteString("```\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WritePluginsDoc writes the plugin catalog.
func WritePluginsDoc(w io.Writer, loaded []PluginCommands) error {
	var b strings.Builder
	b.WriteString("# Plugin Catalog\n\n")
	b.WriteString("| Plugin | Version | Kind | Source | Commands |\n")
	b.WriteString("|--------|---------|------|--------|----------|\n")
	for _, pc := range loaded {
		m := pc.Plugin.Manifest
		source := "external"
		if pc.Plugin.Embedded() {
			source = "embedded"
		}
		names := make([]string, len(pc.Signatures))
		for i, s := range pc.Signatures {
			names[i] = "`" + s.Name + "`"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			m.PluginID, m.Version, m.Kind, source, strings.Join(names, ", "))
	}

	for _, pc := range loaded {
		m := pc.Plugin.Manifest
		if m.Description == "" && m.MinHostVersion == "" && m.HostConstraint == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", m.PluginID)
		if m.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", m.Description)
		}
		if m.MinHostVersion != "" {
			fmt.Fprintf(&b, "- Minimum host version: %s\n", m.MinHostVersion)
		}
		if m.HostConstraint != "" {
			fmt.Fprintf(&b, "- Host constraint: `%s`\n", m.HostConstraint)
		}
		if m.License != "" {
			fmt.Fprintf(&b, "- License: %s\n", m.License)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// blockStat counts table coverage in one Unicode block.
type blockStat struct {
	name       string
	lo, hi     rune
	codepoints int
}

// WriteTableDoc writes a summary of m: digest, size and per-block coverage.
func WriteTableDoc(w io.Writer, m *translit.Mapping) error {
	var b strings.Builder
	b.WriteString("# Transliteration Table\n\n")
	fmt.Fprintf(&b, "- Digest: `%s`\n", m.Digest())
	fmt.Fprintf(&b, "- Ranges: %d\n", m.Len())
	fmt.Fprintf(&b, "- Codepoints: %d\n\n", m.Codepoints())

	stats := make([]blockStat, len(docBlocks))
	copy(stats, docBlocks)
	other := 0
	for r := range m.Ranges() {
		for c := r.Lo; c <= r.Hi; c++ {
			i := blockIndex(stats, c)
			if i < 0 {
				other++
				continue
			}
			stats[i].codepoints++
		}
	}

	b.WriteString("## Coverage\n\n| Block | Range | Codepoints |\n|-------|-------|------------|\n")
	for _, s := range stats {
		if s.codepoints == 0 {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s..%s | %d |\n", s.name,
			tbl.FormatCodepoint(s.lo), tbl.FormatCodepoint(s.hi), s.codepoints)
	}
	if other > 0 {
		fmt.Fprintf(&b, "| Other | | %d |\n", other)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func blockIndex(stats []blockStat, c rune) int {
	for i, s := range stats {
		if c >= s.lo && c <= s.hi {
			return i
		}
	}
	return -1
}

// docBlocks are the blocks broken out in the coverage table.
var docBlocks = []blockStat{
	{name: "Latin-1 Supplement", lo: 0x0080, hi: 0x00FF},
	{name: "Latin Extended", lo: 0x0100, hi: 0x024F},
	{name: "Combining Marks", lo: 0x0300, hi: 0x036F},
	{name: "Greek", lo: 0x0370, hi: 0x03FF},
	{name: "Cyrillic", lo: 0x0400, hi: 0x052F},
	{name: "Hebrew and Arabic", lo: 0x0590, hi: 0x06FF},
	{name: "Indic", lo: 0x0900, hi: 0x0DFF},
	{name: "Latin Extended Additional", lo: 0x1E00, hi: 0x1EFF},
	{name: "Greek Extended", lo: 0x1F00, hi: 0x1FFF},
	{name: "Punctuation and Symbols", lo: 0x2000, hi: 0x2BFF},
	{name: "CJK Symbols and Kana", lo: 0x3000, hi: 0x30FF},
	{name: "CJK Ideographs", lo: 0x4E00, hi: 0x9FFF},
	{name: "Hangul", lo: 0xAC00, hi: 0xD7AF},
	{name: "Halfwidth and Fullwidth Forms", lo: 0xFF00, hi: 0xFFEF},
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Render formats Markdown for a terminal of the given width. Zero width
// disables wrapping. style is a glamour style name; empty picks one from
// the terminal background.
func Render(markdown string, width int, style string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render(markdown)
}

// CommandsMarkdown returns the command reference as a string.
func CommandsMarkdown(sigs []command.Signature) string {
	var buf bytes.Buffer
	_ = WriteCommandsDoc(&buf, sigs)
	return buf.String()
}
