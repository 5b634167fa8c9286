package schema

import "errors"

var (
	// ErrSessionNotFound indicates the session id is unknown to the table.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosing indicates the session is shutting down and no longer
	// accepts input.
	ErrSessionClosing = errors.New("session is closing")
	// ErrWorkingDirNotFound indicates the requested working directory does
	// not exist or is not a directory.
	ErrWorkingDirNotFound = errors.New("working directory does not exist or is not a directory")
	// ErrWorkspaceNotFound indicates the workspace path for a language-server
	// session does not exist.
	ErrWorkspaceNotFound = errors.New("workspace path does not exist")
	// ErrPluginNotFound indicates no plugin with the requested id is installed.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrPluginDisabled indicates the plugin is installed but disabled.
	ErrPluginDisabled = errors.New("plugin is disabled")
	// ErrNoLanguage indicates the plugin declares no language identifiers and
	// none was supplied.
	ErrNoLanguage = errors.New("plugin declares no language identifiers")
	// ErrSandboxUnavailable indicates the sandbox root has not been
	// provisioned. The runtime never triggers provisioning itself.
	ErrSandboxUnavailable = errors.New("sandbox environment is not provisioned")
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
)
