package langproc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// resolveHostCommand resolves a manifest command for a direct launch.
// Absolute commands run verbatim. Commands containing a path separator are
// anchored at the plugin root. A bare name prefers a file shipped in the
// plugin root and otherwise falls through to PATH lookup at exec time.
// Presence in the plugin root is an existence check, not an executability
// check; a non-executable file fails at spawn with the real error.
func resolveHostCommand(command, rootDir string) (string, error) {
	if command == "" {
		return "", errors.New("manifest declares no command")
	}
	if filepath.IsAbs(command) {
		return command, nil
	}
	if strings.ContainsRune(command, os.PathSeparator) {
		return filepath.Join(rootDir, command), nil
	}
	candidate := filepath.Join(rootDir, command)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return command, nil
}

// resolveGuestCommand resolves a manifest command for a sandboxed launch
// against the guest plugin root. The existence probe runs on the host side
// of the bind since the guest is not navigable from here.
func resolveGuestCommand(command, hostRoot, guestRoot string) (string, error) {
	if command == "" {
		return "", errors.New("manifest declares no command")
	}
	if filepath.IsAbs(command) {
		return command, nil
	}
	if strings.ContainsRune(command, os.PathSeparator) {
		return guestRoot + "/" + filepath.ToSlash(command), nil
	}
	if _, err := os.Stat(filepath.Join(hostRoot, command)); err == nil {
		return guestRoot + "/" + command, nil
	}
	return command, nil
}

// resolveWorkingDir anchors a manifest working directory at the given root.
// Empty means the root itself.
func resolveWorkingDir(cwd, root string) string {
	if cwd == "" {
		return root
	}
	if filepath.IsAbs(cwd) {
		return cwd
	}
	return filepath.Join(root, cwd)
}

// resolveGuestWorkingDir is the guest-side variant; joins stay slash-form.
func resolveGuestWorkingDir(cwd, guestRoot, guestWorkspace string) string {
	if cwd == "" {
		return guestWorkspace
	}
	if filepath.IsAbs(cwd) {
		return cwd
	}
	return guestRoot + "/" + filepath.ToSlash(cwd)
}
