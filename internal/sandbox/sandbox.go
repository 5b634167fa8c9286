// Package sandbox models the user-space supervisor (a proot-style chroot)
// used when the host platform restricts direct process execution. The
// runtime only consumes a prepared sandbox; provisioning (download,
// verification, extraction of the root filesystem) happens elsewhere.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pkt.systems/sessiond/schema"
)

// Conventional guest mount points. Manifests may override them with an
// absolute guest path.
const (
	// DefaultGuestWorkspace is where the host workspace is bound inside the
	// guest root.
	DefaultGuestWorkspace = "/mnt/workspace"
	// guestPluginBase is the parent of per-plugin guest mounts.
	guestPluginBase = "/opt/sessiond/plugins"
)

// FallbackPath is appended to the guest PATH so declared commands stay
// resolvable even when a manifest's own PATH omits system directories.
const FallbackPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// GuestPluginRoot returns the conventional guest mount point for a plugin.
func GuestPluginRoot(id schema.PluginID) string {
	return guestPluginBase + "/" + string(id)
}

// Env is a prepared sandbox environment: the supervisor binary, the guest
// root filesystem, and a scratch directory the supervisor may use.
type Env struct {
	Supervisor string
	RootFS     string
	ScratchDir string
}

// Resolver yields a prepared sandbox environment or fails when none has
// been provisioned. Implementations never provision.
type Resolver interface {
	Resolve(ctx context.Context) (Env, error)
}

// DirResolver resolves a sandbox environment from a conventional on-disk
// layout: <base>/supervisor/bin/proot and <base>/rootfs, with <base>/tmp as
// scratch space.
type DirResolver struct {
	BaseDir string
}

// Resolve checks the expected layout and fails fast with a descriptive
// error when any piece is missing.
func (r DirResolver) Resolve(_ context.Context) (Env, error) {
	if r.BaseDir == "" {
		return Env{}, schema.ErrSandboxUnavailable
	}
	supervisor := filepath.Join(r.BaseDir, "supervisor", "bin", "proot")
	if _, err := os.Stat(supervisor); err != nil {
		return Env{}, fmt.Errorf("%w: supervisor binary missing at %s", schema.ErrSandboxUnavailable, supervisor)
	}
	rootfs := filepath.Join(r.BaseDir, "rootfs")
	if info, err := os.Stat(rootfs); err != nil || !info.IsDir() {
		return Env{}, fmt.Errorf("%w: root filesystem missing at %s", schema.ErrSandboxUnavailable, rootfs)
	}
	scratch := filepath.Join(r.BaseDir, "tmp")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return Env{}, fmt.Errorf("sandbox scratch dir: %w", err)
	}
	return Env{Supervisor: supervisor, RootFS: rootfs, ScratchDir: scratch}, nil
}
