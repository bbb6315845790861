//go:build linux

package egl

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// renderNode is a DRM render node the surfaceless platform may open.
type renderNode struct {
	path       string
	accessible bool
}

// renderNodes lists /dev/dri render nodes and whether the current user can
// open them read-write. Mesa's surfaceless platform silently falls back to
// software rendering or fails when none is accessible, so the result is only
// used for diagnostics.
func renderNodes() []renderNode {
	matches, err := filepath.Glob("/dev/dri/renderD*")
	if err != nil {
		return nil
	}
	nodes := make([]renderNode, 0, len(matches))
	for _, m := range matches {
		nodes = append(nodes, renderNode{
			path:       m,
			accessible: unix.Access(m, unix.R_OK|unix.W_OK) == nil,
		})
	}
	return nodes
}
