// Package shellpty launches interactive shells behind a pseudo-terminal,
// either directly on the host or wrapped in the sandbox supervisor.
package shellpty

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"pkt.systems/sessiond/core"
	"pkt.systems/sessiond/internal/sandbox"
	"pkt.systems/sessiond/schema"
)

// sandboxShell is the shell spawned inside the guest root, which carries
// its own userland.
var sandboxShell = []string{"/bin/bash", "--login"}

// Config controls how shells are spawned.
type Config struct {
	// Shell overrides the host shell. Empty means $SHELL, then /bin/sh.
	Shell string
	// Policy selects direct or sandboxed launches.
	Policy schema.SandboxPolicy
	// Resolver locates the sandbox; required when Policy is SandboxAlways.
	Resolver sandbox.Resolver
}

// Launcher implements core.ShellLauncher.
type Launcher struct {
	cfg Config
}

// NewLauncher constructs a shell launcher.
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

// Launch spawns a shell for req and returns its handle.
func (l *Launcher) Launch(ctx context.Context, req core.ShellLaunchRequest) (core.ShellHandle, error) {
	if l.cfg.Policy == schema.SandboxAlways {
		return l.launchSandboxed(ctx, req)
	}
	return l.launchDirect(req)
}

func (l *Launcher) launchDirect(req core.ShellLaunchRequest) (core.ShellHandle, error) {
	shell := l.cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = req.Cwd
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		fmt.Sprintf("SESSIOND_SESSION_ID=%s", req.SessionID),
	)
	return startOnPTY(cmd, req.Cols, req.Rows)
}

func (l *Launcher) launchSandboxed(ctx context.Context, req core.ShellLaunchRequest) (core.ShellHandle, error) {
	if l.cfg.Resolver == nil {
		return nil, schema.ErrSandboxUnavailable
	}
	env, err := l.cfg.Resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := sandbox.Build(sandbox.Options{
		Env: env,
		Binds: []sandbox.Bind{
			{Host: req.Cwd, Guest: sandbox.DefaultGuestWorkspace},
		},
		GuestCwd: sandbox.DefaultGuestWorkspace,
		// A PTY child needs the fd devices bound into the guest.
		BindDevFDs: true,
		ExtraEnv: map[string]string{
			"HOME":                "/root",
			"SESSIOND_SESSION_ID": string(req.SessionID),
			"SESSIOND_WORKSPACE":  req.Cwd,
		},
		Command: sandboxShell,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Env = inv.Env
	return startOnPTY(cmd, req.Cols, req.Rows)
}

func startOnPTY(cmd *exec.Cmd, cols, rows uint16) (core.ShellHandle, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	return &handle{cmd: cmd, f: f}, nil
}

// handle wraps the PTY master and the child process.
type handle struct {
	cmd *exec.Cmd
	f   *os.File

	closeOnce sync.Once
	closeErr  error

	waitOnce sync.Once
	status   core.ExitStatus
	waitErr  error
}

func (h *handle) Output() io.Reader { return h.f }
func (h *handle) Input() io.Writer  { return h.f }

func (h *handle) Resize(cols, rows uint16) error {
	return pty.Setsize(h.f, &pty.Winsize{Cols: cols, Rows: rows})
}

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
		h.status, h.waitErr = exitStatus(h.cmd, err)
	})
	return h.status, h.waitErr
}

func (h *handle) Close() error {
	h.closeOnce.Do(func() { h.closeErr = h.f.Close() })
	return h.closeErr
}

// exitStatus derives the exit description from a finished command.
func exitStatus(cmd *exec.Cmd, waitErr error) (core.ExitStatus, error) {
	state := cmd.ProcessState
	if state == nil {
		return core.ExitStatus{Code: -1}, waitErr
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return core.ExitStatus{Signal: int(ws.Signal()), Signaled: true}, nil
	}
	return core.ExitStatus{Code: state.ExitCode()}, nil
}
