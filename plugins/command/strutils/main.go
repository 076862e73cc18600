// Plugin strutils-plugin serves the strutils commands as an external
// plugin: newline-delimited JSON requests on stdin, one response line per
// request on stdout. Logs go to stderr.
//
// Table overlays and the placeholder come from the STRUTILS_TABLE_*
// environment, the same variables the host reads.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FocuswithJustin/strutils/internal/commands/strutils"
	"github.com/FocuswithJustin/strutils/internal/config"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "strutils-plugin: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.InitLoggerTo(os.Stderr, cfg.LogLevel(), cfg.LogFormat())

	engine, err := strutils.NewEngine(cfg.Table.Overlays, cfg.Table.Placeholder)
	if err != nil {
		return err
	}
	m := engine.Mapping()
	logging.TableLoaded(m.Digest(), m.Len(), m.Codepoints(), cfg.Table.Overlays)

	return strutils.NewPlugin(engine).Serve(ctx, os.Stdin, os.Stdout)
}
