//go:build linux

package egl

import (
	"errors"
	"runtime"
	"testing"

	"github.com/tinyrange/offscreen/internal/gpu"
)

func openOrSkip(t *testing.T) gpu.Driver {
	t.Helper()
	d, err := Open(Options{})
	if errors.Is(err, gpu.ErrDriverUnavailable) {
		t.Skipf("EGL not available: %v", err)
	}
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(Options{EGLLibrary: "libdoes-not-exist.so.0"})
	if !errors.Is(err, gpu.ErrDriverUnavailable) {
		t.Fatalf("Open() error = %v, want ErrDriverUnavailable", err)
	}
}

func TestSurfacelessDisplay(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d := openOrSkip(t)
	dpy := d.OpenDisplay()
	if dpy == gpu.NoDisplay {
		t.Skipf("surfaceless platform unavailable: %s", d.PlatformError())
	}
	defer d.Terminate(dpy)

	major, minor, ok := d.Initialize(dpy)
	if !ok {
		t.Skipf("eglInitialize failed: %s", d.PlatformError())
	}
	if major < 1 {
		t.Errorf("EGL version %d.%d", major, minor)
	}
}

func TestRenderNodes(t *testing.T) {
	for _, n := range renderNodes() {
		if n.path == "" {
			t.Fatal("render node without path")
		}
	}
}
