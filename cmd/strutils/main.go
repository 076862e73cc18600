// Command strutils transliterates Unicode text to ASCII and hosts the
// strutils command plugins.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/internal/commands/strutils"
	"github.com/FocuswithJustin/strutils/internal/config"
	"github.com/FocuswithJustin/strutils/internal/logging"

	// Import embedded plugins registry to register all embedded plugins
	_ "github.com/FocuswithJustin/strutils/internal/embedded"
)

const version = "1.0.0"

// CLI defines the command-line interface for strutils.
type CLI struct {
	Globals

	Deunicode DeunicodeCmd `cmd:"" help:"Transliterate text to ASCII (arguments or stdin)"`
	Run       RunCmd       `cmd:"" help:"Run a command through the plugin host"`
	Plugins   PluginsGroup `cmd:"" help:"Plugin management"`
	Table     TableGroup   `cmd:"" help:"Transliteration table inspection and export"`
	Docs      DocsCmd      `cmd:"" help:"Show or generate the command reference"`
	Selfcheck SelfcheckCmd `cmd:"" help:"Run every command example and report failures"`
	Serve     ServeGroup   `cmd:"" help:"Serve commands over HTTP or MCP"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// Globals are flags shared by every command. Set flags override the
// configuration file and environment.
type Globals struct {
	Config      string   `short:"c" help:"YAML configuration file" type:"path" env:"STRUTILS_CONFIG"`
	LogLevel    string   `help:"Log level (debug, info, warn, error)"`
	LogFormat   string   `help:"Log format (text, json)"`
	PluginDir   string   `short:"p" help:"Plugin directory path" type:"path"`
	External    bool     `help:"Enable external plugin executables"`
	Overlay     []string `help:"Table overlay file (.tbl or CLDR .xml, optionally .xz), repeatable"`
	Placeholder string   `help:"ASCII text emitted for unmapped characters"`
}

// streams carries the process I/O.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// app is what commands work with once configuration is resolved.
type app struct {
	cfg    *config.Config
	engine *translit.Engine
	loader *plugins.Loader
}

// apply copies set flags over cfg.
func (g *Globals) apply(cfg *config.Config) {
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if g.PluginDir != "" {
		cfg.Plugins.Dir = g.PluginDir
	}
	if g.External {
		cfg.Plugins.External = true
	}
	if len(g.Overlay) > 0 {
		cfg.Table.Overlays = append(cfg.Table.Overlays, g.Overlay...)
	}
	if g.Placeholder != "" {
		cfg.Table.Placeholder = g.Placeholder
	}
}

// load resolves configuration, builds the engine and loads plugins.
func (g *Globals) load(s *streams) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	g.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.InitLoggerTo(s.err, cfg.LogLevel(), cfg.LogFormat())

	engine, err := buildEngine(cfg.Table)
	if err != nil {
		return nil, err
	}

	env, err := tableEnv(cfg.Table)
	if err != nil {
		return nil, err
	}
	plugins.SetPluginEnv(env...)
	configurePlugins(cfg.Plugins)
	loader := plugins.NewLoader()
	loader.SetTimeout(cfg.Plugins.Timeout)
	if err := loader.LoadFromDir(cfg.Plugins.Dir); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, engine: engine, loader: loader}, nil
}

// buildEngine returns the shared default engine unless overlays or a
// placeholder are configured, in which case the embedded plugin is
// re-registered over the custom engine.
func buildEngine(tc config.TableConfig) (*translit.Engine, error) {
	engine, err := strutils.NewEngine(tc.Overlays, tc.Placeholder)
	if err != nil || engine == translit.DefaultEngine() {
		return engine, err
	}
	m := engine.Mapping()
	logging.TableLoaded(m.Digest(), m.Len(), m.Codepoints(), tc.Overlays)
	strutils.RegisterEngine(engine)
	return engine, nil
}

// tableEnv passes the resolved table settings to external plugins, which
// read STRUTILS_TABLE_* and run in their own directory.
func tableEnv(tc config.TableConfig) ([]string, error) {
	overlays := make([]string, 0, len(tc.Overlays))
	for _, o := range tc.Overlays {
		abs, err := filepath.Abs(o)
		if err != nil {
			return nil, apperrors.Wrapf(err, "resolve overlay %s", o)
		}
		overlays = append(overlays, abs)
	}
	var env []string
	if len(overlays) > 0 {
		env = append(env, "STRUTILS_TABLE_OVERLAYS="+strings.Join(overlays, ","))
	}
	if tc.Placeholder != "" {
		env = append(env, "STRUTILS_TABLE_PLACEHOLDER="+tc.Placeholder)
	}
	return env, nil
}

// configurePlugins applies the plugin security policy. External plugins
// are confined to the allowed directories, which default to the plugin
// directory.
func configurePlugins(pc config.PluginConfig) {
	allowed := pc.AllowedDirs
	if len(allowed) == 0 && pc.Dir != "" {
		allowed = []string{pc.Dir}
	}
	plugins.SetSecurityConfig(plugins.SecurityConfig{AllowedDirs: allowed, KnownKindsOnly: true})

	if pc.External {
		plugins.EnableExternalPlugins()
		logging.SecurityEvent("plugin_security_configured", "cli",
			"mode", "external", "allowed_dirs", allowed)
	} else {
		plugins.DisableExternalPlugins()
	}
}

func newParser(ctx context.Context, cli *CLI, s *streams, options ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("strutils"),
		kong.Description("Unicode to ASCII transliteration and string command host"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(s.out, s.err),
		kong.Bind(s),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
	return kong.New(cli, append(opts, options...)...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(ctx, &cli, &streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
