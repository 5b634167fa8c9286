package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"

	"pkt.systems/sessiond/schema"
)

// HostToGuest translates a host path under the sandbox root to its
// guest-visible form: the root prefix is stripped and the remainder is
// rooted at guest "/". Paths outside the root are an error; the runtime
// never rewrites paths that were not produced inside the sandbox.
func HostToGuest(rootFS, hostPath string) (string, error) {
	rel, err := filepath.Rel(rootFS, hostPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "/", nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %s is outside the sandbox root", hostPath)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// TranslateTree rewrites every node path of a tree-shaped listing from host
// to guest form before the listing crosses the sandbox boundary outward.
// Nodes outside the root are left untouched.
func TranslateTree(rootFS string, nodes []schema.FileNode) {
	for i := range nodes {
		if guest, err := HostToGuest(rootFS, nodes[i].Path); err == nil {
			nodes[i].Path = guest
		}
		if len(nodes[i].Children) > 0 {
			TranslateTree(rootFS, nodes[i].Children)
		}
	}
}
