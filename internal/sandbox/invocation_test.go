package sandbox

import (
	"slices"
	"strings"
	"testing"
)

func testEnv() Env {
	return Env{
		Supervisor: "/box/supervisor/bin/proot",
		RootFS:     "/box/rootfs",
		ScratchDir: "/box/tmp",
	}
}

func TestBuildInvocation(t *testing.T) {
	inv, err := Build(Options{
		Env:      testEnv(),
		Binds:    []Bind{{Host: "/home/user/project", Guest: "/mnt/workspace"}},
		GuestCwd: "/mnt/workspace",
		Command:  []string{"/bin/bash", "--login"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if inv.Program != "/box/supervisor/bin/proot" {
		t.Fatalf("unexpected program %q", inv.Program)
	}
	for _, want := range []string{
		"--rootfs=/box/rootfs",
		"--kill-on-exit",
		"--root-id",
		"--link2symlink",
		"--bind=/dev",
		"--bind=/proc",
		"--bind=/sys",
		"--bind=/dev/urandom:/dev/random",
		"--bind=/home/user/project:/mnt/workspace",
		"--cwd=/mnt/workspace",
	} {
		if !slices.Contains(inv.Args, want) {
			t.Fatalf("missing argument %q in %v", want, inv.Args)
		}
	}
	if inv.Args[len(inv.Args)-2] != "/bin/bash" || inv.Args[len(inv.Args)-1] != "--login" {
		t.Fatalf("command must come last, got %v", inv.Args)
	}
	if slices.Contains(inv.Args, "--bind=/proc/self/fd:/dev/fd") {
		t.Fatalf("fd binds must be off by default (piped children)")
	}
}

func TestBuildInvocationFDBinds(t *testing.T) {
	inv, err := Build(Options{
		Env:        testEnv(),
		BindDevFDs: true,
		Command:    []string{"/bin/sh"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"--bind=/proc/self/fd:/dev/fd",
		"--bind=/proc/self/fd/0:/dev/stdin",
		"--bind=/proc/self/fd/1:/dev/stdout",
		"--bind=/proc/self/fd/2:/dev/stderr",
	} {
		if !slices.Contains(inv.Args, want) {
			t.Fatalf("missing fd bind %q", want)
		}
	}
}

func TestBuildInvocationPath(t *testing.T) {
	inv, err := Build(Options{
		Env:      testEnv(),
		Command:  []string{"node", "server.js"},
		Path:     "/opt/sessiond/plugins/ts/bin",
		ExtraEnv: map[string]string{"PATH": "/should/be/ignored", "LSP_FLAVOR": "ts"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var path string
	for _, entry := range inv.Env {
		if value, ok := strings.CutPrefix(entry, "PATH="); ok {
			path = value
		}
	}
	want := "/opt/sessiond/plugins/ts/bin:" + FallbackPath
	if path != want {
		t.Fatalf("expected PATH %q, got %q", want, path)
	}
	if !slices.Contains(inv.Env, "LSP_FLAVOR=ts") {
		t.Fatalf("extra env missing: %v", inv.Env)
	}
	if !slices.Contains(inv.Env, "PROOT_TMP_DIR=/box/tmp") {
		t.Fatalf("scratch dir env missing: %v", inv.Env)
	}
}

func TestBuildInvocationEmptyPathUsesFallback(t *testing.T) {
	inv, err := Build(Options{Env: testEnv(), Command: []string{"sh"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !slices.Contains(inv.Env, "PATH="+FallbackPath) {
		t.Fatalf("expected fallback PATH, got %v", inv.Env)
	}
}

func TestBuildInvocationValidation(t *testing.T) {
	if _, err := Build(Options{Env: testEnv()}); err == nil {
		t.Fatalf("expected error for missing command")
	}
	if _, err := Build(Options{Command: []string{"sh"}}); err == nil {
		t.Fatalf("expected error for missing environment")
	}
	if _, err := Build(Options{Env: testEnv(), Command: []string{"sh"}, Binds: []Bind{{}}}); err == nil {
		t.Fatalf("expected error for empty bind host")
	}
}
