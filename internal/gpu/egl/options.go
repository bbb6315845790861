// Package egl implements gpu.Driver on top of the system EGL and OpenGL ES 2
// libraries. The libraries are loaded at runtime with purego, so the binary
// builds without cgo and fails with gpu.ErrDriverUnavailable on hosts that
// lack them.
package egl

import "log/slog"

// Name is the driver name used for selection.
const Name = "egl"

const (
	DefaultEGLLibrary  = "libEGL.so.1"
	DefaultGLESLibrary = "libGLESv2.so.2"
)

// Options configures the driver.
type Options struct {
	// EGLLibrary and GLESLibrary override the shared objects to load.
	EGLLibrary  string
	GLESLibrary string

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.EGLLibrary == "" {
		o.EGLLibrary = DefaultEGLLibrary
	}
	if o.GLESLibrary == "" {
		o.GLESLibrary = DefaultGLESLibrary
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
