package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// Bind maps a host path onto a guest path. An empty Guest binds the host
// path onto itself.
type Bind struct {
	Host  string
	Guest string
}

// Options describe one supervised launch.
type Options struct {
	Env Env
	// Binds are applied after the essential virtual filesystems.
	Binds []Bind
	// GuestCwd is the working directory inside the guest root.
	GuestCwd string
	// BindDevFDs additionally binds the process fd devices (/dev/fd,
	// /dev/stdin, ...). Required for PTY children; must stay off for piped
	// children, where those binds fail.
	BindDevFDs bool
	// ExtraEnv is merged over the base environment; PATH is handled
	// separately so a manifest cannot clobber it.
	ExtraEnv map[string]string
	// Path is the guest PATH before the fallback is appended.
	Path string
	// Command is the guest command and its arguments.
	Command []string
}

// Invocation is a ready-to-spawn supervisor command line.
type Invocation struct {
	Program string
	Args    []string
	Env     []string
}

// essentialBinds are the virtual filesystems every guest needs.
var essentialBinds = []string{
	"--bind=/dev",
	"--bind=/proc",
	"--bind=/sys",
	"--bind=/dev/urandom:/dev/random",
}

// fdBinds expose the calling process's fds as guest devices. Only valid
// when the child runs on a PTY.
var fdBinds = []string{
	"--bind=/proc/self/fd:/dev/fd",
	"--bind=/proc/self/fd/0:/dev/stdin",
	"--bind=/proc/self/fd/1:/dev/stdout",
	"--bind=/proc/self/fd/2:/dev/stderr",
}

// Build assembles the supervisor invocation for opts.
func Build(opts Options) (Invocation, error) {
	if opts.Env.Supervisor == "" || opts.Env.RootFS == "" {
		return Invocation{}, fmt.Errorf("sandbox environment is incomplete")
	}
	if len(opts.Command) == 0 {
		return Invocation{}, fmt.Errorf("command is required")
	}

	args := []string{
		fmt.Sprintf("--rootfs=%s", opts.Env.RootFS),
		"--root-id",
		"--kill-on-exit",
		"--link2symlink",
	}
	args = append(args, essentialBinds...)
	if opts.BindDevFDs {
		args = append(args, fdBinds...)
	}
	for _, bind := range opts.Binds {
		if bind.Host == "" {
			return Invocation{}, fmt.Errorf("bind with empty host path")
		}
		if bind.Guest == "" {
			args = append(args, fmt.Sprintf("--bind=%s", bind.Host))
			continue
		}
		args = append(args, fmt.Sprintf("--bind=%s:%s", bind.Host, bind.Guest))
	}
	if opts.GuestCwd != "" {
		args = append(args, fmt.Sprintf("--cwd=%s", opts.GuestCwd))
	}
	args = append(args, opts.Command...)

	env := map[string]string{
		"PROOT_TMP_DIR": opts.Env.ScratchDir,
		"TERM":          "xterm-256color",
		"COLORTERM":     "truecolor",
	}
	for key, value := range opts.ExtraEnv {
		if key == "PATH" {
			continue
		}
		env[key] = value
	}
	env["PATH"] = guestPath(opts.Path)

	return Invocation{
		Program: opts.Env.Supervisor,
		Args:    args,
		Env:     flattenEnv(env),
	}, nil
}

// guestPath appends the fallback search path so system directories remain
// reachable regardless of what the manifest declared.
func guestPath(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return FallbackPath
	}
	return declared + ":" + FallbackPath
}

func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
