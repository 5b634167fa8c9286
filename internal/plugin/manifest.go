// Package plugin discovers installed language-server plugins from manifest
// files on disk and converts them into launch specs for the session runtime.
package plugin

import (
	"encoding/json"

	"pkt.systems/sessiond/schema"
)

// ManifestFilename marks a directory as a plugin root.
const ManifestFilename = "sessiond-plugin.json"

// Manifest is the on-disk plugin description.
type Manifest struct {
	ID          schema.PluginID `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Author      string          `json:"author,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Kind        Kind            `json:"kind"`
}

// IsEnabled treats an absent enabled flag as enabled.
func (m Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Kind is the plugin kind descriptor. Language servers are the only kind
// today; the type tag keeps the format open.
type Kind struct {
	Type string `json:"type"`

	// Language-server fields.

	// LanguageIDs lists the language identifiers the server supports.
	LanguageIDs []schema.LanguageID `json:"languageIds"`
	// Command is the executable to spawn. Relative paths resolve against
	// the plugin root.
	Command string `json:"command"`
	// Args are appended to the command line.
	Args []string `json:"args,omitempty"`
	// Env is injected into the child's environment.
	Env map[string]string `json:"env,omitempty"`
	// Cwd is the working directory; relative paths resolve against the
	// plugin root. Empty means the plugin root.
	Cwd string `json:"cwd,omitempty"`
	// InitializationOptions are forwarded to the language server when the
	// start request carries none.
	InitializationOptions json.RawMessage `json:"initializationOptions,omitempty"`
	// ForceSandbox wraps the launch in the sandbox supervisor even on hosts
	// that allow direct execution.
	ForceSandbox bool `json:"forceSandbox,omitempty"`
	// PluginMountPath overrides the conventional guest mount point for the
	// plugin directory. Must be absolute to take effect.
	PluginMountPath string `json:"pluginMountPath,omitempty"`
	// WorkspaceMountPath overrides the conventional guest mount point for
	// the workspace. Must be absolute to take effect.
	WorkspaceMountPath string `json:"workspaceMountPath,omitempty"`
}

// KindLangServer is the manifest kind tag for language-server plugins.
const KindLangServer = "lsp"
