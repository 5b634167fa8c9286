package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pkt.systems/sessiond/schema"
	"pkt.systems/pslog"
)

// Location records where a plugin was discovered.
type Location string

const (
	// LocationUser is a user-installed plugin directory.
	LocationUser Location = "user"
	// LocationBuiltIn ships with the application.
	LocationBuiltIn Location = "built-in"
)

// Discovered pairs a parsed manifest with its on-disk root.
type Discovered struct {
	Manifest Manifest
	RootDir  string
	Location Location
}

// Directories configures the scan roots. User directories win over built-in
// ones when the same plugin id appears in both.
type Directories struct {
	User    []string
	BuiltIn []string
}

// Registry scans plugin directories and answers lookups. Safe for
// concurrent use.
type Registry struct {
	dirs   Directories
	logger pslog.Logger

	mu      sync.RWMutex
	plugins map[schema.PluginID]Discovered
}

// NewRegistry constructs an empty registry; call Refresh to populate it.
func NewRegistry(dirs Directories, logger pslog.Logger) *Registry {
	return &Registry{
		dirs:    dirs,
		logger:  logger,
		plugins: make(map[schema.PluginID]Discovered),
	}
}

// Refresh rescans all directories and replaces the registry contents.
// A directory that fails to scan fails the refresh; a single unparsable
// manifest is logged and skipped.
func (r *Registry) Refresh() error {
	seen := make(map[schema.PluginID]Discovered)
	for _, scan := range []struct {
		location Location
		dirs     []string
	}{
		{LocationUser, r.dirs.User},
		{LocationBuiltIn, r.dirs.BuiltIn},
	} {
		for _, dir := range scan.dirs {
			if err := r.scanDirectory(scan.location, dir, seen); err != nil {
				return err
			}
		}
	}

	r.mu.Lock()
	r.plugins = seen
	r.mu.Unlock()
	return nil
}

func (r *Registry) scanDirectory(location Location, dir string, seen map[schema.PluginID]Discovered) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read plugin directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(root, ManifestFilename)
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read manifest %s: %w", manifestPath, err)
		}
		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			if r.logger != nil {
				r.logger.Warn("plugin manifest skipped", "path", manifestPath, "err", err)
			}
			continue
		}
		if manifest.ID == "" || manifest.Kind.Type != KindLangServer {
			if r.logger != nil {
				r.logger.Warn("plugin manifest skipped", "path", manifestPath, "reason", "missing id or unsupported kind")
			}
			continue
		}
		if existing, ok := seen[manifest.ID]; ok && existing.Location == LocationUser {
			continue
		}
		seen[manifest.ID] = Discovered{Manifest: manifest, RootDir: root, Location: location}
	}
	return nil
}

// All returns the discovered plugins sorted by id.
func (r *Registry) All() []Discovered {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Discovered, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		out = append(out, plugin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.ID < out[j].Manifest.ID })
	return out
}

// Infos returns transport-friendly plugin descriptions sorted by id.
func (r *Registry) Infos() []schema.PluginInfo {
	discovered := r.All()
	out := make([]schema.PluginInfo, 0, len(discovered))
	for _, plugin := range discovered {
		out = append(out, schema.PluginInfo{
			ID:          plugin.Manifest.ID,
			Name:        plugin.Manifest.Name,
			Version:     plugin.Manifest.Version,
			Enabled:     plugin.Manifest.IsEnabled(),
			LanguageIDs: plugin.Manifest.Kind.LanguageIDs,
		})
	}
	return out
}

// ForLanguage returns the first plugin declaring the language id.
func (r *Registry) ForLanguage(language schema.LanguageID) (Discovered, bool) {
	for _, plugin := range r.All() {
		for _, id := range plugin.Manifest.Kind.LanguageIDs {
			if id == language {
				return plugin, true
			}
		}
	}
	return Discovered{}, false
}

// ResolveForLanguage resolves a launch spec for the first plugin declaring
// the language id.
func (r *Registry) ResolveForLanguage(language schema.LanguageID) (schema.LaunchSpec, error) {
	plugin, ok := r.ForLanguage(language)
	if !ok {
		return schema.LaunchSpec{}, fmt.Errorf("%w: no plugin for language %s", schema.ErrPluginNotFound, language)
	}
	return r.Resolve(plugin.Manifest.ID)
}

// Resolve converts a plugin id into a launch spec for the runtime.
func (r *Registry) Resolve(id schema.PluginID) (schema.LaunchSpec, error) {
	r.mu.RLock()
	plugin, ok := r.plugins[id]
	r.mu.RUnlock()
	if !ok {
		return schema.LaunchSpec{}, fmt.Errorf("%w: %s", schema.ErrPluginNotFound, id)
	}
	kind := plugin.Manifest.Kind
	return schema.LaunchSpec{
		PluginID:              plugin.Manifest.ID,
		RootDir:               plugin.RootDir,
		Command:               kind.Command,
		Args:                  kind.Args,
		Env:                   kind.Env,
		WorkingDir:            kind.Cwd,
		LanguageIDs:           kind.LanguageIDs,
		InitializationOptions: kind.InitializationOptions,
		Enabled:               plugin.Manifest.IsEnabled(),
		ForceSandbox:          kind.ForceSandbox,
		PluginMountPath:       kind.PluginMountPath,
		WorkspaceMountPath:    kind.WorkspaceMountPath,
	}, nil
}
