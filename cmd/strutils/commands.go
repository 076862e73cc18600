package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/transform"

	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/selfcheck"
	"github.com/FocuswithJustin/strutils/core/sqlite"
	"github.com/FocuswithJustin/strutils/core/value"
	"github.com/FocuswithJustin/strutils/internal/commands/strutils"
)

// DeunicodeCmd transliterates its arguments, or stdin when there are none.
type DeunicodeCmd struct {
	Text []string `arg:"" optional:"" help:"Text to transliterate; stdin is streamed when omitted"`
}

func (c *DeunicodeCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	if len(c.Text) == 0 {
		_, err := io.Copy(s.out, transform.NewReader(s.in, a.engine.Transformer()))
		return err
	}

	text := strings.Join(c.Text, " ")
	out, err := a.loader.Run(ctx, strutils.DeunicodeName, value.String(text, value.Span{End: len(text)}), value.Unknown)
	if err != nil {
		return err
	}
	return printValue(s.out, out, false)
}

// RunCmd runs any command the loaded plugins provide.
type RunCmd struct {
	Name  string `arg:"" help:"Command name, e.g. 'str deunicode'"`
	Input string `short:"i" help:"Input as plain JSON; without --input or --value stdin is read as a string"`
	Value string `help:"Input in the tagged value encoding"`
	JSON  bool   `help:"Print the result in the tagged value encoding"`
}

func (c *RunCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	input, err := c.input(s.in)
	if err != nil {
		return err
	}
	a, err := g.load(s)
	if err != nil {
		return err
	}
	out, err := a.loader.Run(ctx, c.Name, input, value.Span{End: len(c.Name)})
	if err != nil {
		return err
	}
	return printValue(s.out, out, c.JSON)
}

func (c *RunCmd) input(stdin io.Reader) (value.Value, error) {
	switch {
	case c.Input != "" && c.Value != "":
		return value.Value{}, errors.New("use either --input or --value")
	case c.Input != "":
		return value.FromJSON([]byte(c.Input), value.Span{End: len(c.Input)})
	case c.Value != "":
		var v value.Value
		if err := json.Unmarshal([]byte(c.Value), &v); err != nil {
			return value.Value{}, fmt.Errorf("invalid --value: %w", err)
		}
		return v, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return value.Value{}, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	return value.String(text, value.Span{End: len(text)}), nil
}

// valueError reports a command's error value as a Go error.
type valueError struct {
	le *value.LabeledError
}

func (e *valueError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.le.Msg)
	for _, l := range e.le.Labels {
		fmt.Fprintf(&sb, "\n  %s [%d..%d]", l.Text, l.Span.Start, l.Span.End)
	}
	if e.le.Help != "" {
		sb.WriteString("\n  help: " + e.le.Help)
	}
	return sb.String()
}

func (e *valueError) Unwrap() error {
	return e.le
}

// printValue writes v to w: strings as plain lines, anything else as JSON.
// With tagged set the full value encoding is printed, error values
// included. Otherwise an error value becomes the returned error.
func printValue(w io.Writer, v value.Value, tagged bool) error {
	if tagged {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if v.IsError() {
		if v.Error == nil {
			return errors.New("command returned an error value")
		}
		return &valueError{le: v.Error}
	}
	if str, ok := v.AsString(); ok {
		_, err := fmt.Fprintln(w, str)
		return err
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PluginsGroup contains plugin management operations.
type PluginsGroup struct {
	List PluginsListCmd `cmd:"" help:"List available plugins"`
}

// PluginsListCmd lists the embedded and discovered plugins.
type PluginsListCmd struct {
	JSON bool `help:"Print as JSON"`
}

type pluginRow struct {
	ID       string   `json:"id"`
	Version  string   `json:"version"`
	Kind     string   `json:"kind"`
	Source   string   `json:"source"`
	Commands []string `json:"commands"`
}

func (c *PluginsListCmd) Run(g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}
	var rows []pluginRow
	for _, p := range a.loader.List() {
		source := "embedded"
		if !p.Embedded() {
			source = p.Path
		}
		rows = append(rows, pluginRow{
			ID:       p.ID(),
			Version:  p.Manifest.Version,
			Kind:     p.Manifest.Kind,
			Source:   source,
			Commands: p.Manifest.Capabilities.Commands,
		})
	}

	if c.JSON {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(s.out, "No plugins found in %s\n", a.cfg.Plugins.Dir)
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tKIND\tSOURCE\tCOMMANDS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Version, r.Kind, r.Source, strings.Join(r.Commands, ", "))
	}
	return tw.Flush()
}

// SelfcheckCmd asks every command plugin to run its examples.
type SelfcheckCmd struct {
	JSON bool `help:"Print the reports as JSON"`
}

func (c *SelfcheckCmd) Run(ctx context.Context, g *Globals, s *streams) error {
	a, err := g.load(s)
	if err != nil {
		return err
	}

	var reports []*selfcheck.Report
	total, failed := 0, 0
	for _, p := range a.loader.ByKind("command") {
		resp, err := plugins.ExecutePluginWithTimeout(ctx, p, plugins.NewSelfcheckRequest(), a.loader.Timeout())
		if err != nil {
			return fmt.Errorf("selfcheck %s: %w", p.ID(), err)
		}
		report, err := plugins.ParseSelfcheckResult(resp)
		if err != nil {
			return fmt.Errorf("selfcheck %s: %w", p.ID(), err)
		}
		reports = append(reports, report)
		total += len(report.Results)
		failed += len(report.Failed())
	}

	if c.JSON {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprintf(s.out, "%s (%s)\n", r.Subject, r.Status)
			for _, res := range r.Results {
				status := "PASS"
				if !res.Pass {
					status = "FAIL"
				}
				fmt.Fprintf(s.out, "  %s %s: %s\n", status, res.Command, res.Label)
				if res.Details != "" {
					fmt.Fprintf(s.out, "       %s\n", res.Details)
				}
			}
		}
		fmt.Fprintf(s.out, "%d checks, %d failed\n", total, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, total)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(s *streams) error {
	fmt.Fprintf(s.out, "strutils version %s\n", version)
	fmt.Fprintf(s.out, "plugin host %s, %s %s\n", plugins.HostVersion, strutils.PluginID, strutils.PluginVersion)
	db := sqlite.GetInfo()
	fmt.Fprintf(s.out, "sqlite driver %s (%s, %s)\n", db.DriverName, db.DriverType, db.Package)
	return nil
}
