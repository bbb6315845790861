//go:build !linux

package egl

import "github.com/tinyrange/offscreen/internal/gpu"

// Open reports that the surfaceless EGL platform is linux-only.
func Open(opts Options) (gpu.Driver, error) {
	return nil, gpu.ErrDriverUnsupported
}
