// Package plugins discovers command plugins and runs them. A plugin is
// either embedded (compiled into the host and called in process) or an
// external executable speaking the ipc protocol over stdin and stdout.
package plugins

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// ErrIncompatibleVersion is returned when a plugin's host requirements are
// not met.
var ErrIncompatibleVersion = errors.New("incompatible plugin version")

// HostVersion is the protocol version this host implements.
const HostVersion = "1.0.0"

// ManifestFile is the manifest name looked up in each plugin directory.
const ManifestFile = "plugin.json"

// EmbeddedPath is the Path of plugins compiled into the host.
const EmbeddedPath = "(embedded)"

// PluginKinds are the recognised manifest kinds. Kind directories under a
// plugin root group plugins by kind:
//
//	plugins/
//	├── command/
//	│   └── strutils/
//	│       ├── plugin.json
//	│       └── strutils-plugin
//	└── example/
var PluginKinds = []string{"command", "example"}

// Manifest is the contents of plugin.json.
type Manifest struct {
	PluginID    string `json:"plugin_id"`
	Version     string `json:"version"`
	Kind        string `json:"kind"`
	Entrypoint  string `json:"entrypoint"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
	// MinHostVersion is the oldest compatible host, same major version.
	MinHostVersion string `json:"min_host_version,omitempty"`
	// HostConstraint optionally narrows the hosts further, e.g. ">=1.0,<1.4".
	HostConstraint string       `json:"host_constraint,omitempty"`
	Capabilities   Capabilities `json:"capabilities"`
}

// Capabilities lists what a plugin provides.
type Capabilities struct {
	Commands []string `json:"commands"`
}

// Validate checks required fields.
func (m *Manifest) Validate() error {
	switch {
	case m.PluginID == "":
		return apperrors.NewValidation("plugin_id", "is required")
	case m.Version == "":
		return apperrors.NewValidation("version", "is required")
	case m.Kind == "":
		return apperrors.NewValidation("kind", "is required")
	case m.Entrypoint == "":
		return apperrors.NewValidation("entrypoint", "is required")
	}
	return nil
}

// Provides reports whether the plugin declares command name.
func (m *Manifest) Provides(name string) bool {
	return slices.Contains(m.Capabilities.Commands, name)
}

// Plugin is a loaded plugin. Path is the plugin directory, or EmbeddedPath.
type Plugin struct {
	Manifest *Manifest
	Path     string
}

// ID returns the plugin ID.
func (p *Plugin) ID() string {
	return p.Manifest.PluginID
}

// Embedded reports whether p runs in process.
func (p *Plugin) Embedded() bool {
	return p.Path == EmbeddedPath
}

// EntrypointPath returns the unvalidated path of the executable. Use
// SecureEntrypointPath before running it.
func (p *Plugin) EntrypointPath() string {
	return filepath.Join(p.Path, p.Manifest.Entrypoint)
}

// CheckCompatibility checks p against HostVersion.
func (p *Plugin) CheckCompatibility() error {
	return CheckCompatibility(p.Manifest, HostVersion)
}

// CheckCompatibility reports whether a host at hostVersion can run m.
func CheckCompatibility(m *Manifest, hostVersion string) error {
	host, err := ParseVersion(hostVersion)
	if err != nil {
		return apperrors.Wrap(err, "host version")
	}

	if m.MinHostVersion != "" {
		need, err := ParseVersion(m.MinHostVersion)
		if err != nil {
			return apperrors.Wrapf(err, "plugin %s: min_host_version", m.PluginID)
		}
		if !host.Satisfies(need) {
			return fmt.Errorf("%w: plugin %s requires host %s, have %s",
				ErrIncompatibleVersion, m.PluginID, need, host)
		}
	}

	if m.HostConstraint != "" {
		cs, err := ParseConstraints(m.HostConstraint)
		if err != nil {
			return apperrors.Wrapf(err, "plugin %s: host_constraint", m.PluginID)
		}
		if !cs.Allows(host) {
			return fmt.Errorf("%w: plugin %s requires host %s, have %s",
				ErrIncompatibleVersion, m.PluginID, cs, host)
		}
	}
	return nil
}

// Loader holds the known plugins keyed by ID. External plugins loaded
// later replace embedded ones with the same ID.
type Loader struct {
	plugins map[string]*Plugin
	timeout time.Duration
}

// NewLoader returns a loader seeded with every registered embedded plugin.
func NewLoader() *Loader {
	l := &Loader{plugins: make(map[string]*Plugin), timeout: DefaultTimeout}
	for _, ep := range ListEmbeddedPlugins() {
		l.plugins[ep.Manifest.PluginID] = &Plugin{Manifest: ep.Manifest, Path: EmbeddedPath}
		logging.PluginLoading(ep.Manifest.PluginID, ep.Manifest.Version, ep.Manifest.Kind,
			"source", "embedded")
	}
	return l
}

// LoadFromDir adds the plugins found under dir. It does nothing unless
// external plugins are enabled.
func (l *Loader) LoadFromDir(dir string) error {
	if !ExternalPluginsEnabled() {
		return nil
	}
	return l.LoadFromDirAlways(dir)
}

// LoadFromDirAlways is LoadFromDir without the external plugins check.
// Incompatible plugins are logged and skipped.
func (l *Loader) LoadFromDirAlways(dir string) error {
	found, err := DiscoverPlugins(dir)
	if err != nil {
		return err
	}
	for _, p := range found {
		if err := p.CheckCompatibility(); err != nil {
			logging.PluginError(p.ID(), "load", err, "path", p.Path)
			continue
		}
		l.plugins[p.ID()] = p
		logging.PluginLoading(p.ID(), p.Manifest.Version, p.Manifest.Kind,
			"source", "external", "path", p.Path)
	}
	return nil
}

// SetTimeout bounds every external call made through l. Non-positive
// values restore DefaultTimeout.
func (l *Loader) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	l.timeout = d
}

// Timeout returns the per-call bound for external plugins.
func (l *Loader) Timeout() time.Duration {
	if l.timeout <= 0 {
		return DefaultTimeout
	}
	return l.timeout
}

// Add registers p directly.
func (l *Loader) Add(p *Plugin) {
	l.plugins[p.ID()] = p
}

// Get returns the plugin with the given ID.
func (l *Loader) Get(id string) (*Plugin, error) {
	p, ok := l.plugins[id]
	if !ok {
		return nil, apperrors.NewNotFound("plugin", id)
	}
	return p, nil
}

// List returns every plugin sorted by ID.
func (l *Loader) List() []*Plugin {
	out := make([]*Plugin, 0, len(l.plugins))
	for _, p := range l.plugins {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Plugin) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// ByKind returns the plugins of one kind sorted by ID.
func (l *Loader) ByKind(kind string) []*Plugin {
	var out []*Plugin
	for _, p := range l.List() {
		if p.Manifest.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// FindCommand returns the plugin providing command name. When several do,
// the lowest plugin ID wins.
func (l *Loader) FindCommand(name string) (*Plugin, error) {
	for _, p := range l.List() {
		if p.Manifest.Provides(name) {
			return p, nil
		}
	}
	return nil, apperrors.NewNotFound("command", name)
}

// DiscoverPlugins finds plugins under dir. A plugin is a directory holding
// a manifest, either directly under dir or one level down inside a kind
// directory. A missing dir yields no plugins.
func DiscoverPlugins(dir string) ([]*Plugin, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperrors.NewIO("resolve", dir, err)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, apperrors.NewIO("read", abs, err)
	}

	var found []*Plugin
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(abs, e.Name())

		if _, err := os.Stat(filepath.Join(path, ManifestFile)); err == nil {
			p, err := LoadPlugin(path)
			if err != nil {
				logging.Warn("skipping plugin", "path", path, "error", err)
				continue
			}
			found = append(found, p)
			continue
		}

		if isKnownKind(e.Name()) {
			found = append(found, discoverKindDir(path)...)
		}
	}
	return found, nil
}

func isKnownKind(name string) bool {
	return slices.Contains(PluginKinds, name)
}

func discoverKindDir(dir string) []*Plugin {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("skipping kind directory", "path", dir, "error", err)
		return nil
	}
	var found []*Plugin
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		p, err := LoadPlugin(path)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				logging.Warn("skipping plugin", "path", path, "error", err)
			}
			continue
		}
		found = append(found, p)
	}
	return found
}

// LoadPlugin reads the manifest in dir.
func LoadPlugin(dir string) (*Plugin, error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NewNotFound(ManifestFile, dir)
	}
	m, err := ParseManifest(path)
	if err != nil {
		return nil, err
	}
	return &Plugin{Manifest: m, Path: dir}, nil
}

// ParseManifest reads and validates a manifest file.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIO("read", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewParse("JSON", path, err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, apperrors.Wrap(err, path)
	}
	return &m, nil
}
