package plugins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/FocuswithJustin/strutils/internal/logging"
)

// ErrInvalidPluginPath is returned when a plugin path fails security
// validation.
var ErrInvalidPluginPath = errors.New("invalid plugin path")

// SecurityConfig restricts which plugins the host will execute.
type SecurityConfig struct {
	// AllowedDirs lists the directories entrypoints must live under. Empty
	// allows any directory.
	AllowedDirs []string

	// KnownKindsOnly rejects manifests whose kind is not in PluginKinds.
	KnownKindsOnly bool
}

var (
	securityMu     sync.RWMutex
	securityConfig = SecurityConfig{KnownKindsOnly: true}
)

// SetSecurityConfig replaces the active configuration. Call it before
// loading plugins.
func SetSecurityConfig(cfg SecurityConfig) {
	securityMu.Lock()
	defer securityMu.Unlock()
	securityConfig = cfg
}

// GetSecurityConfig returns the active configuration.
func GetSecurityConfig() SecurityConfig {
	securityMu.RLock()
	defer securityMu.RUnlock()
	return securityConfig
}

func invalidPath(reason string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPluginPath, fmt.Sprintf(reason, args...))
}

// ValidatePluginPath checks that path names a regular file inside the
// allowed directories. Symlinks are resolved and their target checked.
func ValidatePluginPath(path string) error {
	if path == "" {
		return invalidPath("empty path")
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		logging.SecurityEvent("path_traversal", "plugins", "path", path)
		return invalidPath("path traversal in %q", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return invalidPath("resolve %q: %v", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return invalidPath("%s does not exist", abs)
		}
		return invalidPath("resolve %q: %v", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return invalidPath("stat %q: %v", resolved, err)
	}
	if !info.Mode().IsRegular() {
		return invalidPath("%s is not a regular file", resolved)
	}
	return checkAllowedDir(resolved)
}

func checkAllowedDir(path string) error {
	dirs := GetSecurityConfig().AllowedDirs
	if len(dirs) == 0 {
		return nil
	}
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		rel, err := filepath.Rel(abs, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	logging.SecurityEvent("plugin_outside_allowed_dirs", "plugins", "path", path)
	return invalidPath("%s is outside the allowed plugin directories", path)
}

// ValidateManifestSecurity rejects manifests with an unknown kind or an
// entrypoint that escapes the plugin directory.
func ValidateManifestSecurity(m *Manifest) error {
	if m == nil {
		return invalidPath("no manifest")
	}
	if GetSecurityConfig().KnownKindsOnly && !isKnownKind(m.Kind) {
		return fmt.Errorf("%w: unknown plugin kind %q (allowed: %s)",
			ErrInvalidPluginPath, m.Kind, strings.Join(PluginKinds, ", "))
	}
	if filepath.IsAbs(m.Entrypoint) || slices.Contains(strings.Split(filepath.ToSlash(m.Entrypoint), "/"), "..") {
		logging.SecurityEvent("entrypoint_escape", "plugins", "plugin_id", m.PluginID, "entrypoint", m.Entrypoint)
		return invalidPath("entrypoint %q escapes the plugin directory", m.Entrypoint)
	}
	return nil
}

// SecureEntrypointPath returns the validated path of p's executable.
func (p *Plugin) SecureEntrypointPath() (string, error) {
	if err := ValidateManifestSecurity(p.Manifest); err != nil {
		return "", err
	}
	path := p.EntrypointPath()
	if err := ValidatePluginPath(path); err != nil {
		return "", err
	}
	return path, nil
}
