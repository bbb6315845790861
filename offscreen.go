// Package offscreen renders a single triangle without a window system and
// returns the framebuffer. The default driver talks to the system EGL and
// OpenGL ES libraries through the surfaceless platform, so it works on
// headless servers that have a GPU but no display.
//
// Every resource a render acquires is released before Render returns, in
// reverse order of acquisition, whether or not the render succeeded.
package offscreen

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/offscreen/internal/gpu"
	"github.com/tinyrange/offscreen/internal/gpu/factory"
	"github.com/tinyrange/offscreen/internal/output"
	"github.com/tinyrange/offscreen/internal/render"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from internal packages
// -----------------------------------------------------------------------------

// Driver is the graphics driver a render runs against.
type Driver = gpu.Driver

// Stage is a point in the render pipeline.
type Stage = render.Stage

// StepError reports which pipeline step failed and why. Use errors.Is with
// the Err* values below to test the reason.
type StepError = render.StepError

// ShaderKind identifies a shader stage in a StepError.
type ShaderKind = gpu.ShaderKind

// Format is an output file encoding.
type Format = output.Format

const (
	StageNone           = render.StageNone
	StageDisplayOpened  = render.StageDisplayOpened
	StageContextCreated = render.StageContextCreated
	StageSurfaceCreated = render.StageSurfaceCreated
	StageCurrent        = render.StageCurrent
	StageProgramCreated = render.StageProgramCreated
	StageRendered       = render.StageRendered
)

const (
	VertexShader   = gpu.VertexShader
	FragmentShader = gpu.FragmentShader
)

const (
	FormatRaw  = output.Raw
	FormatPNG  = output.PNG
	FormatTIFF = output.TIFF
	FormatBMP  = output.BMP
)

// Failure reasons.
var (
	ErrDisplayUnavailable  = gpu.ErrDisplayUnavailable
	ErrDisplayInitFailed   = gpu.ErrDisplayInitFailed
	ErrNoCompatibleConfig  = gpu.ErrNoCompatibleConfig
	ErrAPIBindFailed       = gpu.ErrAPIBindFailed
	ErrContextCreateFailed = gpu.ErrContextCreateFailed
	ErrSurfaceCreateFailed = gpu.ErrSurfaceCreateFailed
	ErrMakeCurrentFailed   = gpu.ErrMakeCurrentFailed
	ErrProgramCreateFailed = gpu.ErrProgramCreateFailed
	ErrShaderCreateFailed  = gpu.ErrShaderCreateFailed
	ErrShaderCompileFailed = gpu.ErrShaderCompileFailed
	ErrShaderAttachFailed  = gpu.ErrShaderAttachFailed
	ErrProgramLinkFailed   = gpu.ErrProgramLinkFailed
	ErrRenderCommandFailed = gpu.ErrRenderCommandFailed
	ErrPresentFailed       = gpu.ErrPresentFailed

	// ErrDriverUnavailable indicates the EGL or OpenGL ES library could not
	// be loaded. Use errors.Is(err, offscreen.ErrDriverUnavailable) to skip
	// tests on machines without a GPU stack.
	ErrDriverUnavailable = gpu.ErrDriverUnavailable
	ErrDriverUnsupported = gpu.ErrDriverUnsupported

	ErrInvalidDimensions = render.ErrInvalidDimensions
)

// MaxDimension bounds the width and height of a render.
const MaxDimension = render.MaxDimension

// FrameSize returns the size in bytes of a width x height RGBA8 frame.
func FrameSize(width, height int) int { return render.FrameSize(width, height) }

// Drivers lists the driver names accepted by WithDriver.
func Drivers() []string { return factory.Names() }

// -----------------------------------------------------------------------------
// Render Options
// -----------------------------------------------------------------------------

// Option configures Render.
type Option interface {
	IsOption()
}

// WithDriver selects a driver by name ("egl" or "soft"). The default is egl.
func WithDriver(name string) Option {
	return &driverNameOption{name: name}
}

type driverNameOption struct{ name string }

func (*driverNameOption) IsOption() {}

// WithGPU renders with an already opened driver. Render does not close it.
func WithGPU(drv Driver) Option {
	return &gpuOption{drv: drv}
}

type gpuOption struct{ drv Driver }

func (*gpuOption) IsOption() {}

// WithLibraries overrides the EGL and OpenGL ES library names or paths
// loaded by the egl driver. An empty string keeps the default.
func WithLibraries(egl, gles string) Option {
	return &librariesOption{egl: egl, gles: gles}
}

type librariesOption struct{ egl, gles string }

func (*librariesOption) IsOption() {}

// WithLogger sets the logger for the driver and the render pipeline.
func WithLogger(log *slog.Logger) Option {
	return &loggerOption{log: log}
}

type loggerOption struct{ log *slog.Logger }

func (*loggerOption) IsOption() {}

// WithClearColor sets the background colour, components in [0,1].
func WithClearColor(r, g, b, a float32) Option {
	return &clearColorOption{rgba: [4]float32{r, g, b, a}}
}

type clearColorOption struct{ rgba [4]float32 }

func (*clearColorOption) IsOption() {}

// WithShaders replaces the GLSL ES sources. An empty string keeps the
// built-in shader for that stage. The vertex shader must read its position
// from the attribute vPosition.
func WithShaders(vertex, fragment string) Option {
	return &shadersOption{vertex: vertex, fragment: fragment}
}

type shadersOption struct{ vertex, fragment string }

func (*shadersOption) IsOption() {}

// WithStageHook calls fn each time the pipeline reaches a stage.
func WithStageHook(fn func(Stage)) Option {
	return &stageHookOption{fn: fn}
}

type stageHookOption struct{ fn func(Stage) }

func (*stageHookOption) IsOption() {}

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

// Render draws the triangle into a width x height surface and returns the
// RGBA8 pixels, bottom row first.
func Render(width, height int, opts ...Option) ([]byte, error) {
	var (
		driverName string
		drv        Driver
		fopts      factory.Options
		ropts      = render.Options{Width: width, Height: height}
	)
	for _, opt := range opts {
		switch o := opt.(type) {
		case *driverNameOption:
			driverName = o.name
		case *gpuOption:
			drv = o.drv
		case *librariesOption:
			fopts.EGLLibrary, fopts.GLESLibrary = o.egl, o.gles
		case *loggerOption:
			fopts.Logger = o.log
			ropts.Logger = o.log
		case *clearColorOption:
			ropts.ClearColor = o.rgba
		case *shadersOption:
			ropts.VertexShader, ropts.FragmentShader = o.vertex, o.fragment
		case *stageHookOption:
			ropts.OnStage = o.fn
		case nil:
		default:
			return nil, fmt.Errorf("offscreen: unsupported option %T", opt)
		}
	}

	// Bad dimensions should not cost a library load.
	if err := render.CheckDimensions(width, height); err != nil {
		return nil, err
	}

	if drv == nil {
		var err error
		drv, err = factory.Open(driverName, fopts)
		if err != nil {
			return nil, fmt.Errorf("open %s driver: %w", driverLabel(driverName), err)
		}
		defer drv.Close()
	}
	return render.Run(drv, ropts)
}

func driverLabel(name string) string {
	if name == "" {
		return factory.Default
	}
	return name
}

// WriteFile writes a frame returned by Render to path in format f. The file
// is created with mode 0600, replacing any existing file.
func WriteFile(path string, width, height int, pix []byte, f Format) error {
	_, err := output.Write(path, width, height, pix, output.Options{Format: f})
	return err
}

// FormatFromPath picks an output format from the file extension of path.
func FormatFromPath(path string) Format { return output.FormatFromPath(path) }
