package strutils

import (
	"sync"

	"github.com/FocuswithJustin/strutils/core/command"
	"github.com/FocuswithJustin/strutils/core/plugins"
	"github.com/FocuswithJustin/strutils/core/translit"
	"github.com/FocuswithJustin/strutils/plugins/ipc"
)

// Plugin identity, shared by the embedded registration and the external
// executable's plugin.json.
const (
	PluginID      = "command.strutils"
	PluginName    = "strutils"
	PluginVersion = "1.0.0"
	Entrypoint    = "strutils-plugin"
)

// Commands returns the command set over engine. A nil engine uses the
// built-in tables.
func Commands(engine *translit.Engine) *command.Set {
	return command.MustNewSet(NewDeunicode(engine))
}

// NewPlugin returns the protocol handler over engine. The metadata carries
// the table digest so hosts can tell which tables a plugin was built with.
func NewPlugin(engine *translit.Engine) *ipc.Plugin {
	if engine == nil {
		engine = translit.DefaultEngine()
	}
	m := engine.Mapping()
	return ipc.NewPlugin(ipc.Metadata{
		Name:        PluginName,
		Version:     PluginVersion,
		TableDigest: m.Digest(),
		Codepoints:  m.Codepoints(),
	}, Commands(engine))
}

// NewEngine compiles the built-in tables with overlays and sets the
// placeholder. With neither it returns the shared default engine.
func NewEngine(overlays []string, placeholder string) (*translit.Engine, error) {
	if len(overlays) == 0 && placeholder == "" {
		return translit.DefaultEngine(), nil
	}
	m := translit.Default()
	if len(overlays) > 0 {
		var err error
		if m, err = translit.Compile(overlays...); err != nil {
			return nil, err
		}
	}
	var opts []translit.Option
	if placeholder != "" {
		opts = append(opts, translit.WithPlaceholder(placeholder))
	}
	return translit.New(m, opts...)
}

// Manifest returns the plugin manifest for registration.
func Manifest() *plugins.Manifest {
	return &plugins.Manifest{
		PluginID:       PluginID,
		Version:        PluginVersion,
		Kind:           "command",
		Entrypoint:     Entrypoint,
		Description:    "String utilities: Unicode to ASCII transliteration.",
		License:        "MIT",
		MinHostVersion: "1.0.0",
		Capabilities:   plugins.Capabilities{Commands: []string{DeunicodeName}},
	}
}

// lazyHandler defers compiling the default tables until the first call.
type lazyHandler struct {
	plugin func() *ipc.Plugin
}

func (h lazyHandler) Execute(cmd string, args map[string]interface{}) (interface{}, error) {
	return h.plugin().Execute(cmd, args)
}

// Register registers the plugin over the built-in tables with the embedded
// registry.
func Register() {
	plugins.RegisterEmbeddedPlugin(&plugins.EmbeddedPlugin{
		Manifest: Manifest(),
		Handler:  lazyHandler{plugin: sync.OnceValue(func() *ipc.Plugin { return NewPlugin(nil) })},
	})
}

// RegisterEngine replaces the embedded registration with one over engine,
// e.g. after overlays were compiled from configuration.
func RegisterEngine(engine *translit.Engine) {
	plugins.RegisterEmbeddedPlugin(&plugins.EmbeddedPlugin{
		Manifest: Manifest(),
		Handler:  NewPlugin(engine),
	})
}

func init() {
	Register()
}
