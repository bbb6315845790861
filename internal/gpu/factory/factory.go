// Package factory selects a gpu.Driver by name.
package factory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyrange/offscreen/internal/gpu"
	"github.com/tinyrange/offscreen/internal/gpu/egl"
	"github.com/tinyrange/offscreen/internal/gpu/soft"
)

// Default is the driver used when no name is given.
const Default = egl.Name

// Options carries the settings of every driver; each driver reads the
// fields that apply to it.
type Options struct {
	EGLLibrary  string
	GLESLibrary string

	// SoftFault injects a failure into the software driver.
	SoftFault soft.Fault

	Logger *slog.Logger
}

// Names lists the selectable drivers.
func Names() []string {
	return []string{egl.Name, soft.Name}
}

// Valid reports whether name selects a driver.
func Valid(name string) bool {
	name = strings.ToLower(name)
	return name == "" || name == egl.Name || name == soft.Name
}

// Open loads the driver called name. The caller owns the driver and must
// Close it.
func Open(name string, opts Options) (gpu.Driver, error) {
	switch strings.ToLower(name) {
	case "", egl.Name:
		return egl.Open(egl.Options{
			EGLLibrary:  opts.EGLLibrary,
			GLESLibrary: opts.GLESLibrary,
			Logger:      opts.Logger,
		})
	case soft.Name:
		return soft.New(soft.Options{
			Fault:  opts.SoftFault,
			Logger: opts.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
}
