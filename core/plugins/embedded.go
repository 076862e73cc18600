package plugins

import (
	"cmp"
	"slices"
	"sync"

	"github.com/FocuswithJustin/strutils/plugins/ipc"
)

// EmbeddedHandler answers protocol commands in process. *ipc.Plugin
// implements it.
type EmbeddedHandler interface {
	Execute(command string, args map[string]interface{}) (interface{}, error)
}

// EmbeddedPlugin pairs a handler with its manifest.
type EmbeddedPlugin struct {
	Manifest *Manifest
	Handler  EmbeddedHandler
}

var (
	embeddedMu       sync.RWMutex
	embeddedRegistry = make(map[string]*EmbeddedPlugin)
)

// RegisterEmbeddedPlugin registers ep under its plugin ID, replacing any
// earlier registration. Plugins without a manifest ID or handler are
// ignored.
func RegisterEmbeddedPlugin(ep *EmbeddedPlugin) {
	if ep == nil || ep.Manifest == nil || ep.Manifest.PluginID == "" || ep.Handler == nil {
		return
	}
	embeddedMu.Lock()
	defer embeddedMu.Unlock()
	embeddedRegistry[ep.Manifest.PluginID] = ep
}

// GetEmbeddedPlugin returns the embedded plugin with the given ID, or nil.
func GetEmbeddedPlugin(id string) *EmbeddedPlugin {
	embeddedMu.RLock()
	defer embeddedMu.RUnlock()
	return embeddedRegistry[id]
}

// ListEmbeddedPlugins returns the registered plugins sorted by ID.
func ListEmbeddedPlugins() []*EmbeddedPlugin {
	embeddedMu.RLock()
	out := make([]*EmbeddedPlugin, 0, len(embeddedRegistry))
	for _, ep := range embeddedRegistry {
		out = append(out, ep)
	}
	embeddedMu.RUnlock()

	slices.SortFunc(out, func(a, b *EmbeddedPlugin) int {
		return cmp.Compare(a.Manifest.PluginID, b.Manifest.PluginID)
	})
	return out
}

// HasEmbeddedPlugin reports whether id is registered.
func HasEmbeddedPlugin(id string) bool {
	return GetEmbeddedPlugin(id) != nil
}

// ClearEmbeddedRegistry removes every registration (for testing).
func ClearEmbeddedRegistry() {
	embeddedMu.Lock()
	defer embeddedMu.Unlock()
	embeddedRegistry = make(map[string]*EmbeddedPlugin)
}

// ExecuteEmbeddedPlugin runs req against the embedded plugin id. It returns
// nil, nil when no such plugin is registered. Handler errors become error
// responses, as they would from a subprocess.
func ExecuteEmbeddedPlugin(id string, req *IPCRequest) (*IPCResponse, error) {
	ep := GetEmbeddedPlugin(id)
	if ep == nil {
		return nil, nil
	}
	result, err := ep.Handler.Execute(req.Command, req.Args)
	if err != nil {
		return ipc.FailErr(req, err), nil
	}
	return ipc.OK(req, result), nil
}
