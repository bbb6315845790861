// Package gpu defines the capability interface a rendering driver exposes to
// the off-screen renderer. The interface is split in two halves that mirror
// the native APIs it is modelled on: Platform covers display, configuration,
// context and surface management (EGL), Functions covers shaders, programs,
// draw calls and readback (OpenGL ES 2.0).
//
// Handles are opaque. The zero value of every handle type means "none" and
// is what a creation call returns on failure.
package gpu

import "io"

// Display is a connection to the graphics driver.
type Display uintptr

// Config is a framebuffer configuration offered by a Display.
type Config uintptr

// Context is a GPU execution context.
type Context uintptr

// Surface is a drawing target.
type Surface uintptr

// Program is a linked shader program.
type Program uint32

// Shader is a single shader stage object.
type Shader uint32

const (
	NoDisplay Display = 0
	NoConfig  Config  = 0
	NoContext Context = 0
	NoSurface Surface = 0
	NoProgram Program = 0
	NoShader  Shader  = 0
)

// API is a client rendering API a thread can be bound to.
type API uint32

const (
	APIOpenGLES API = 0x30A0
	APIOpenGL   API = 0x30A2
)

func (a API) String() string {
	switch a {
	case APIOpenGLES:
		return "OpenGL ES"
	case APIOpenGL:
		return "OpenGL"
	default:
		return "unknown"
	}
}

// ShaderKind selects the pipeline stage of a shader object.
type ShaderKind uint32

const (
	FragmentShader ShaderKind = 0x8B30
	VertexShader   ShaderKind = 0x8B31
)

func (k ShaderKind) String() string {
	switch k {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	default:
		return "unknown"
	}
}

// DataType is the component type of a vertex attribute.
type DataType uint32

const Float DataType = 0x1406

// Primitive is a draw topology.
type Primitive uint32

const Triangles Primitive = 0x0004

// ConfigFilter lists the attributes a configuration must satisfy.
type ConfigFilter struct {
	RedBits   int
	GreenBits int
	BlueBits  int
	AlphaBits int

	// Pbuffer requires support for off-screen buffer-backed surfaces.
	Pbuffer bool

	// ClientVersion is the OpenGL ES major version the configuration must
	// be renderable with.
	ClientVersion int
}

// Platform is the display and context half of a driver.
//
// Creation calls return the zero handle on failure; boolean calls return
// false. In both cases PlatformError reports the reason.
type Platform interface {
	// OpenDisplay opens the surfaceless platform display. No native window
	// or display server is involved.
	OpenDisplay() Display
	// Initialize negotiates the platform version with the driver.
	Initialize(d Display) (major, minor int, ok bool)
	// ChooseConfig returns the first configuration matching f.
	ChooseConfig(d Display, f ConfigFilter) (Config, bool)
	BindAPI(api API) bool
	CreateContext(d Display, c Config, clientVersion int) Context
	CreatePbufferSurface(d Display, c Config, width, height int) Surface
	MakeCurrent(d Display, draw, read Surface, ctx Context) bool
	SwapBuffers(d Display, s Surface) bool
	DestroySurface(d Display, s Surface) bool
	DestroyContext(d Display, ctx Context) bool
	Terminate(d Display) bool
	PlatformError() ErrorCode
}

// Functions is the rendering half of a driver. All calls operate on the
// context current on the calling thread. Errors are reported through
// GetError.
type Functions interface {
	CreateProgram() Program
	DeleteProgram(p Program)
	CreateShader(kind ShaderKind) Shader
	ShaderSource(s Shader, src string)
	CompileShader(s Shader)
	ShaderCompileStatus(s Shader) bool
	ShaderInfoLog(s Shader) string
	AttachShader(p Program, s Shader)
	DeleteShader(s Shader)
	BindAttribLocation(p Program, index uint32, name string)
	LinkProgram(p Program)
	ProgramLinkStatus(p Program) bool
	ProgramInfoLog(p Program) string

	Viewport(x, y, width, height int)
	ClearColor(r, g, b, a float32)
	ClearColorBuffer()
	UseProgram(p Program)
	// VertexAttribPointer points attribute index at client memory. The
	// driver may keep referencing data until the context is destroyed.
	VertexAttribPointer(index uint32, size int, typ DataType, normalized bool, stride int, data []float32)
	EnableVertexAttribArray(index uint32)
	DrawArrays(mode Primitive, first, count int)
	// ReadPixels copies an RGBA8 rectangle of the current read surface
	// into dst, bottom row first.
	ReadPixels(x, y, width, height int, dst []byte)
	GetError() ErrorCode
}

// Driver is a loaded graphics driver.
type Driver interface {
	io.Closer
	Platform
	Functions

	// Name returns the name the driver was selected by.
	Name() string
}
