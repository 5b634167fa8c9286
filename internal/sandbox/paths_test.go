package sandbox

import (
	"path/filepath"
	"testing"

	"pkt.systems/sessiond/schema"
)

func TestHostToGuest(t *testing.T) {
	root := filepath.Join("/data", "sandbox", "rootfs")

	guest, err := HostToGuest(root, filepath.Join(root, "opt", "sessiond", "plugins", "rust"))
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if guest != "/opt/sessiond/plugins/rust" {
		t.Fatalf("unexpected guest path %q", guest)
	}

	guest, err = HostToGuest(root, root)
	if err != nil || guest != "/" {
		t.Fatalf("expected guest root, got %q (%v)", guest, err)
	}

	if _, err := HostToGuest(root, "/etc/passwd"); err == nil {
		t.Fatalf("expected error for path outside the sandbox root")
	}
}

func TestHostToGuestInverse(t *testing.T) {
	root := "/srv/box/rootfs"
	for _, rel := range []string{"/mnt/workspace", "/mnt/workspace/src/main.rs", "/usr/bin/node"} {
		host := filepath.Join(root, rel)
		guest, err := HostToGuest(root, host)
		if err != nil {
			t.Fatalf("translate %s: %v", host, err)
		}
		if guest != rel {
			t.Fatalf("expected %q, got %q", rel, guest)
		}
	}
}

func TestTranslateTree(t *testing.T) {
	root := "/srv/box/rootfs"
	nodes := []schema.FileNode{
		{
			Name: "workspace",
			Path: filepath.Join(root, "mnt", "workspace"),
			Kind: schema.NodeFolder,
			Children: []schema.FileNode{
				{Name: "main.go", Path: filepath.Join(root, "mnt", "workspace", "main.go"), Kind: schema.NodeFile},
			},
		},
		{Name: "outside", Path: "/elsewhere/file", Kind: schema.NodeFile},
	}

	TranslateTree(root, nodes)

	if nodes[0].Path != "/mnt/workspace" {
		t.Fatalf("unexpected folder path %q", nodes[0].Path)
	}
	if nodes[0].Children[0].Path != "/mnt/workspace/main.go" {
		t.Fatalf("unexpected child path %q", nodes[0].Children[0].Path)
	}
	if nodes[1].Path != "/elsewhere/file" {
		t.Fatalf("path outside the root should be untouched, got %q", nodes[1].Path)
	}
}
