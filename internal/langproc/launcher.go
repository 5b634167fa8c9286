// Package langproc launches language-server processes with piped standard
// streams, directly on the host or wrapped in the sandbox supervisor.
package langproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"

	"pkt.systems/sessiond/core"
	"pkt.systems/sessiond/internal/sandbox"
	"pkt.systems/sessiond/schema"
)

// Config controls how language servers are spawned.
type Config struct {
	// Policy selects direct or sandboxed launches. A manifest with
	// forceSandbox uses the sandbox regardless.
	Policy schema.SandboxPolicy
	// Resolver locates the sandbox when one is needed.
	Resolver sandbox.Resolver
}

// Launcher implements core.LangLauncher.
type Launcher struct {
	cfg Config
}

// NewLauncher constructs a language-server launcher.
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

// Launch spawns the server described by req.Spec.
func (l *Launcher) Launch(ctx context.Context, req core.LangLaunchRequest) (core.LangLaunchResult, error) {
	if l.cfg.Policy == schema.SandboxAlways || req.Spec.ForceSandbox {
		return l.launchSandboxed(ctx, req)
	}
	return l.launchDirect(req)
}

func (l *Launcher) launchDirect(req core.LangLaunchRequest) (core.LangLaunchResult, error) {
	spec := req.Spec
	program, err := resolveHostCommand(spec.Command, spec.RootDir)
	if err != nil {
		return core.LangLaunchResult{}, err
	}

	cmd := exec.Command(program, spec.Args...)
	cmd.Dir = resolveWorkingDir(spec.WorkingDir, spec.RootDir)
	cmd.Env = append(os.Environ(), childEnv(req, map[string]string{
		"SESSIOND_PLUGIN_ROOT": spec.RootDir,
		"SESSIOND_WORKSPACE":   req.WorkspacePath,
	})...)
	for _, kv := range flatten(spec.Env) {
		cmd.Env = append(cmd.Env, kv)
	}

	handle, err := startPiped(cmd)
	if err != nil {
		return core.LangLaunchResult{}, err
	}
	return core.LangLaunchResult{Handle: handle}, nil
}

func (l *Launcher) launchSandboxed(ctx context.Context, req core.LangLaunchRequest) (core.LangLaunchResult, error) {
	if l.cfg.Resolver == nil {
		return core.LangLaunchResult{}, schema.ErrSandboxUnavailable
	}
	env, err := l.cfg.Resolver.Resolve(ctx)
	if err != nil {
		return core.LangLaunchResult{}, err
	}

	spec := req.Spec
	guestPlugin := sandbox.GuestPluginRoot(spec.PluginID)
	if spec.PluginMountPath != "" {
		guestPlugin = spec.PluginMountPath
	}
	guestWorkspace := sandbox.DefaultGuestWorkspace
	if spec.WorkspaceMountPath != "" {
		guestWorkspace = spec.WorkspaceMountPath
	}

	program, err := resolveGuestCommand(spec.Command, spec.RootDir, guestPlugin)
	if err != nil {
		return core.LangLaunchResult{}, err
	}

	extraEnv := map[string]string{
		"SESSIOND_PLUGIN_ROOT":      guestPlugin,
		"SESSIOND_WORKSPACE":        guestWorkspace,
		"SESSIOND_HOST_PLUGIN_ROOT": spec.RootDir,
		"SESSIOND_HOST_WORKSPACE":   req.WorkspacePath,
	}
	var declaredPath string
	for key, value := range spec.Env {
		if key == "PATH" {
			declaredPath = value
			continue
		}
		extraEnv[key] = value
	}

	inv, err := sandbox.Build(sandbox.Options{
		Env: env,
		Binds: []sandbox.Bind{
			{Host: req.WorkspacePath, Guest: guestWorkspace},
			{Host: spec.RootDir, Guest: guestPlugin},
		},
		GuestCwd: resolveGuestWorkingDir(spec.WorkingDir, guestPlugin, guestWorkspace),
		// Piped children must not get the fd device binds; they fail
		// without a controlling terminal.
		BindDevFDs: false,
		ExtraEnv:   childEnvMap(req, extraEnv),
		Path:       declaredPath,
		Command:    append([]string{program}, spec.Args...),
	})
	if err != nil {
		return core.LangLaunchResult{}, err
	}

	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Env = inv.Env

	handle, err := startPiped(cmd)
	if err != nil {
		return core.LangLaunchResult{}, err
	}
	return core.LangLaunchResult{
		Handle: handle,
		Mapping: &schema.PathMapping{
			HostWorkspace:  req.WorkspacePath,
			GuestWorkspace: guestWorkspace,
			HostPlugin:     spec.RootDir,
			GuestPlugin:    guestPlugin,
		},
	}, nil
}

// childEnv returns the session identity variables plus extras, flattened.
func childEnv(req core.LangLaunchRequest, extra map[string]string) []string {
	return flatten(childEnvMap(req, extra))
}

func childEnvMap(req core.LangLaunchRequest, extra map[string]string) map[string]string {
	env := map[string]string{
		"SESSIOND_SESSION_ID": string(req.SessionID),
		"SESSIOND_PLUGIN_ID":  string(req.Spec.PluginID),
	}
	for key, value := range extra {
		env[key] = value
	}
	return env
}

func flatten(env map[string]string) []string {
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

// startPiped starts cmd with piped standard streams.
func startPiped(cmd *exec.Cmd) (core.LangHandle, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return &handle{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// handle wraps a piped child process.
type handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	waitOnce sync.Once
	status   core.ExitStatus
	waitErr  error

	closeOnce sync.Once
}

func (h *handle) Stdin() io.Writer  { return h.stdin }
func (h *handle) Stdout() io.Reader { return h.stdout }
func (h *handle) Stderr() io.Reader { return h.stderr }

func (h *handle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Wait reaps the child. Safe to call more than once.
func (h *handle) Wait() (core.ExitStatus, error) {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		state := h.cmd.ProcessState
		if state == nil {
			h.status, h.waitErr = core.ExitStatus{Code: -1}, err
			return
		}
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			h.status = core.ExitStatus{Signal: int(ws.Signal()), Signaled: true}
			return
		}
		h.status = core.ExitStatus{Code: state.ExitCode()}
	})
	return h.status, h.waitErr
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() { _ = h.stdin.Close() })
	return nil
}
