//go:build linux

package egl

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/tinyrange/offscreen/internal/gpu"
)

// EGL enums.
const (
	eglPlatformSurfacelessMESA = 0x31DD
	eglDefaultDisplay          = 0
	eglNone                    = 0x3038
	eglAlphaSize               = 0x3021
	eglBlueSize                = 0x3022
	eglGreenSize               = 0x3023
	eglRedSize                 = 0x3024
	eglSurfaceType             = 0x3033
	eglRenderableType          = 0x3040
	eglPbufferBit              = 0x0001
	eglOpenGLES2Bit            = 0x0004
	eglOpenGLES3Bit            = 0x0040
	eglHeight                  = 0x3056
	eglWidth                   = 0x3057
	eglContextClientVersion    = 0x3098
	eglVendor                  = 0x3053
	eglExtensions              = 0x3055
)

// GL enums.
const (
	glCompileStatus  = 0x8B81
	glLinkStatus     = 0x8B82
	glInfoLogLength  = 0x8B84
	glColorBufferBit = 0x4000
	glRGBA           = 0x1908
	glUnsignedByte   = 0x1401
)

// Driver is a gpu.Driver backed by the native EGL and GLES libraries. Like
// the libraries themselves, it must be used from a single locked OS thread.
type Driver struct {
	log     *slog.Logger
	libEGL  uintptr
	libGLES uintptr

	// Client-side vertex data handed to glVertexAttribPointer stays pinned
	// until the context that references it is destroyed.
	pinner   runtime.Pinner
	vertices []float32

	// Argument errors caught before reaching GL, reported by GetError.
	argErr gpu.ErrorCode

	eglGetError             func() int32
	eglGetProcAddress       func(name string) uintptr
	eglQueryString          func(dpy uintptr, name int32) string
	eglGetPlatformDisplay   func(platform uint32, native uintptr, attribs unsafe.Pointer) uintptr
	eglInitialize           func(dpy uintptr, major, minor *int32) uint32
	eglChooseConfig         func(dpy uintptr, attribs *int32, configs *uintptr, size int32, num *int32) uint32
	eglBindAPI              func(api uint32) uint32
	eglCreateContext        func(dpy, cfg, share uintptr, attribs *int32) uintptr
	eglCreatePbufferSurface func(dpy, cfg uintptr, attribs *int32) uintptr
	eglMakeCurrent          func(dpy, draw, read, ctx uintptr) uint32
	eglSwapBuffers          func(dpy, surf uintptr) uint32
	eglDestroySurface       func(dpy, surf uintptr) uint32
	eglDestroyContext       func(dpy, ctx uintptr) uint32
	eglTerminate            func(dpy uintptr) uint32

	glGetError                func() uint32
	glCreateProgram           func() uint32
	glDeleteProgram           func(program uint32)
	glCreateShader            func(kind uint32) uint32
	glShaderSource            func(shader uint32, count int32, src **byte, length *int32)
	glCompileShader           func(shader uint32)
	glGetShaderiv             func(shader uint32, pname uint32, params *int32)
	glGetShaderInfoLog        func(shader uint32, size int32, length *int32, log *byte)
	glAttachShader            func(program, shader uint32)
	glDeleteShader            func(shader uint32)
	glBindAttribLocation      func(program, index uint32, name string)
	glLinkProgram             func(program uint32)
	glGetProgramiv            func(program uint32, pname uint32, params *int32)
	glGetProgramInfoLog       func(program uint32, size int32, length *int32, log *byte)
	glViewport                func(x, y, width, height int32)
	glClearColor              func(r, g, b, a float32)
	glClear                   func(mask uint32)
	glUseProgram              func(program uint32)
	glVertexAttribPointer     func(index uint32, size int32, typ uint32, normalized uint8, stride int32, ptr unsafe.Pointer)
	glEnableVertexAttribArray func(index uint32)
	glDrawArrays              func(mode uint32, first, count int32)
	glReadPixels              func(x, y, width, height int32, format, typ uint32, pixels unsafe.Pointer)
}

var _ gpu.Driver = (*Driver)(nil)

type symbol struct {
	fptr any
	name string
}

func bind(lib uintptr, syms []symbol) error {
	for _, s := range syms {
		addr, err := purego.Dlsym(lib, s.name)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %v", gpu.ErrDriverUnavailable, s.name, err)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return nil
}

// Open loads the EGL and GLES libraries and resolves every entry point the
// renderer uses.
func Open(opts Options) (gpu.Driver, error) {
	opts = opts.withDefaults()
	d := &Driver{log: opts.Logger}

	var err error
	d.libEGL, err = purego.Dlopen(opts.EGLLibrary, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", gpu.ErrDriverUnavailable, opts.EGLLibrary, err)
	}
	d.libGLES, err = purego.Dlopen(opts.GLESLibrary, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		purego.Dlclose(d.libEGL)
		return nil, fmt.Errorf("%w: load %s: %v", gpu.ErrDriverUnavailable, opts.GLESLibrary, err)
	}

	if err := d.bindEGL(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.bindGLES(); err != nil {
		d.Close()
		return nil, err
	}

	d.log.Debug("loaded EGL driver",
		slog.String("egl", opts.EGLLibrary),
		slog.String("gles", opts.GLESLibrary),
		slog.String("client_extensions", d.eglQueryString(0, eglExtensions)))
	for _, n := range renderNodes() {
		d.log.Debug("DRM render node", slog.String("path", n.path), slog.Bool("accessible", n.accessible))
	}
	return d, nil
}

func (d *Driver) bindEGL() error {
	if err := bind(d.libEGL, []symbol{
		{&d.eglGetError, "eglGetError"},
		{&d.eglGetProcAddress, "eglGetProcAddress"},
		{&d.eglQueryString, "eglQueryString"},
		{&d.eglInitialize, "eglInitialize"},
		{&d.eglChooseConfig, "eglChooseConfig"},
		{&d.eglBindAPI, "eglBindAPI"},
		{&d.eglCreateContext, "eglCreateContext"},
		{&d.eglCreatePbufferSurface, "eglCreatePbufferSurface"},
		{&d.eglMakeCurrent, "eglMakeCurrent"},
		{&d.eglSwapBuffers, "eglSwapBuffers"},
		{&d.eglDestroySurface, "eglDestroySurface"},
		{&d.eglDestroyContext, "eglDestroyContext"},
		{&d.eglTerminate, "eglTerminate"},
	}); err != nil {
		return err
	}

	// eglGetPlatformDisplay is core in EGL 1.5. Older implementations only
	// expose the EXT entry point through eglGetProcAddress.
	if addr, err := purego.Dlsym(d.libEGL, "eglGetPlatformDisplay"); err == nil {
		purego.RegisterFunc(&d.eglGetPlatformDisplay, addr)
		return nil
	}
	addr := d.eglGetProcAddress("eglGetPlatformDisplayEXT")
	if addr == 0 {
		return fmt.Errorf("%w: neither eglGetPlatformDisplay nor eglGetPlatformDisplayEXT is available", gpu.ErrDriverUnavailable)
	}
	purego.RegisterFunc(&d.eglGetPlatformDisplay, addr)
	d.log.Debug("using eglGetPlatformDisplayEXT")
	return nil
}

func (d *Driver) bindGLES() error {
	return bind(d.libGLES, []symbol{
		{&d.glGetError, "glGetError"},
		{&d.glCreateProgram, "glCreateProgram"},
		{&d.glDeleteProgram, "glDeleteProgram"},
		{&d.glCreateShader, "glCreateShader"},
		{&d.glShaderSource, "glShaderSource"},
		{&d.glCompileShader, "glCompileShader"},
		{&d.glGetShaderiv, "glGetShaderiv"},
		{&d.glGetShaderInfoLog, "glGetShaderInfoLog"},
		{&d.glAttachShader, "glAttachShader"},
		{&d.glDeleteShader, "glDeleteShader"},
		{&d.glBindAttribLocation, "glBindAttribLocation"},
		{&d.glLinkProgram, "glLinkProgram"},
		{&d.glGetProgramiv, "glGetProgramiv"},
		{&d.glGetProgramInfoLog, "glGetProgramInfoLog"},
		{&d.glViewport, "glViewport"},
		{&d.glClearColor, "glClearColor"},
		{&d.glClear, "glClear"},
		{&d.glUseProgram, "glUseProgram"},
		{&d.glVertexAttribPointer, "glVertexAttribPointer"},
		{&d.glEnableVertexAttribArray, "glEnableVertexAttribArray"},
		{&d.glDrawArrays, "glDrawArrays"},
		{&d.glReadPixels, "glReadPixels"},
	})
}

// Name implements gpu.Driver.
func (d *Driver) Name() string { return Name }

// Close releases pinned memory and unloads the libraries.
func (d *Driver) Close() error {
	d.unpinVertices()
	var errs []error
	if d.libGLES != 0 {
		errs = append(errs, purego.Dlclose(d.libGLES))
		d.libGLES = 0
	}
	if d.libEGL != 0 {
		errs = append(errs, purego.Dlclose(d.libEGL))
		d.libEGL = 0
	}
	return errors.Join(errs...)
}

func (d *Driver) unpinVertices() {
	d.pinner.Unpin()
	d.vertices = nil
}

func eglBool(v uint32) bool { return v != 0 }

// OpenDisplay implements gpu.Platform.
func (d *Driver) OpenDisplay() gpu.Display {
	dpy := d.eglGetPlatformDisplay(eglPlatformSurfacelessMESA, eglDefaultDisplay, nil)
	if dpy == 0 {
		for _, n := range renderNodes() {
			if !n.accessible {
				d.log.Warn("DRM render node is not accessible to this user", slog.String("path", n.path))
			}
		}
	}
	return gpu.Display(dpy)
}

// Initialize implements gpu.Platform.
func (d *Driver) Initialize(dpy gpu.Display) (int, int, bool) {
	var major, minor int32
	if !eglBool(d.eglInitialize(uintptr(dpy), &major, &minor)) {
		return 0, 0, false
	}
	d.log.Debug("EGL initialized", slog.String("vendor", d.eglQueryString(uintptr(dpy), eglVendor)))
	return int(major), int(minor), true
}

// ChooseConfig implements gpu.Platform.
func (d *Driver) ChooseConfig(dpy gpu.Display, f gpu.ConfigFilter) (gpu.Config, bool) {
	renderable := int32(eglOpenGLES2Bit)
	if f.ClientVersion >= 3 {
		renderable = eglOpenGLES3Bit
	}
	attribs := []int32{
		eglRedSize, int32(f.RedBits),
		eglGreenSize, int32(f.GreenBits),
		eglBlueSize, int32(f.BlueBits),
		eglAlphaSize, int32(f.AlphaBits),
		eglRenderableType, renderable,
	}
	if f.Pbuffer {
		attribs = append(attribs, eglSurfaceType, eglPbufferBit)
	}
	attribs = append(attribs, eglNone)

	var cfg uintptr
	var count int32
	if !eglBool(d.eglChooseConfig(uintptr(dpy), &attribs[0], &cfg, 1, &count)) || count == 0 {
		return gpu.NoConfig, false
	}
	return gpu.Config(cfg), true
}

// BindAPI implements gpu.Platform.
func (d *Driver) BindAPI(api gpu.API) bool {
	return eglBool(d.eglBindAPI(uint32(api)))
}

// CreateContext implements gpu.Platform.
func (d *Driver) CreateContext(dpy gpu.Display, cfg gpu.Config, clientVersion int) gpu.Context {
	attribs := []int32{eglContextClientVersion, int32(clientVersion), eglNone}
	return gpu.Context(d.eglCreateContext(uintptr(dpy), uintptr(cfg), 0, &attribs[0]))
}

// CreatePbufferSurface implements gpu.Platform.
func (d *Driver) CreatePbufferSurface(dpy gpu.Display, cfg gpu.Config, width, height int) gpu.Surface {
	attribs := []int32{eglWidth, int32(width), eglHeight, int32(height), eglNone}
	return gpu.Surface(d.eglCreatePbufferSurface(uintptr(dpy), uintptr(cfg), &attribs[0]))
}

// MakeCurrent implements gpu.Platform.
func (d *Driver) MakeCurrent(dpy gpu.Display, draw, read gpu.Surface, ctx gpu.Context) bool {
	return eglBool(d.eglMakeCurrent(uintptr(dpy), uintptr(draw), uintptr(read), uintptr(ctx)))
}

// SwapBuffers implements gpu.Platform.
func (d *Driver) SwapBuffers(dpy gpu.Display, s gpu.Surface) bool {
	return eglBool(d.eglSwapBuffers(uintptr(dpy), uintptr(s)))
}

// DestroySurface implements gpu.Platform.
func (d *Driver) DestroySurface(dpy gpu.Display, s gpu.Surface) bool {
	return eglBool(d.eglDestroySurface(uintptr(dpy), uintptr(s)))
}

// DestroyContext implements gpu.Platform.
func (d *Driver) DestroyContext(dpy gpu.Display, ctx gpu.Context) bool {
	ok := eglBool(d.eglDestroyContext(uintptr(dpy), uintptr(ctx)))
	if ok {
		d.unpinVertices()
	}
	return ok
}

// Terminate implements gpu.Platform.
func (d *Driver) Terminate(dpy gpu.Display) bool {
	return eglBool(d.eglTerminate(uintptr(dpy)))
}

// PlatformError implements gpu.Platform.
func (d *Driver) PlatformError() gpu.ErrorCode {
	return gpu.ErrorCode(d.eglGetError())
}

// GetError implements gpu.Functions.
func (d *Driver) GetError() gpu.ErrorCode {
	if code := d.argErr; code != gpu.NoError {
		d.argErr = gpu.NoError
		return code
	}
	return gpu.ErrorCode(d.glGetError())
}

// CreateProgram implements gpu.Functions.
func (d *Driver) CreateProgram() gpu.Program {
	return gpu.Program(d.glCreateProgram())
}

// DeleteProgram implements gpu.Functions.
func (d *Driver) DeleteProgram(p gpu.Program) {
	d.glDeleteProgram(uint32(p))
}

// CreateShader implements gpu.Functions.
func (d *Driver) CreateShader(kind gpu.ShaderKind) gpu.Shader {
	return gpu.Shader(d.glCreateShader(uint32(kind)))
}

// ShaderSource implements gpu.Functions.
func (d *Driver) ShaderSource(s gpu.Shader, src string) {
	buf := append([]byte(src), 0)
	var pin runtime.Pinner
	pin.Pin(&buf[0])
	defer pin.Unpin()

	ptr := &buf[0]
	length := int32(len(src))
	d.glShaderSource(uint32(s), 1, &ptr, &length)
}

// CompileShader implements gpu.Functions.
func (d *Driver) CompileShader(s gpu.Shader) {
	d.glCompileShader(uint32(s))
}

// ShaderCompileStatus implements gpu.Functions.
func (d *Driver) ShaderCompileStatus(s gpu.Shader) bool {
	var status int32
	d.glGetShaderiv(uint32(s), glCompileStatus, &status)
	return status != 0
}

// ShaderInfoLog implements gpu.Functions.
func (d *Driver) ShaderInfoLog(s gpu.Shader) string {
	var n int32
	d.glGetShaderiv(uint32(s), glInfoLogLength, &n)
	if n <= 1 {
		return ""
	}
	buf := make([]byte, n)
	var written int32
	d.glGetShaderInfoLog(uint32(s), n, &written, &buf[0])
	return string(buf[:written])
}

// AttachShader implements gpu.Functions.
func (d *Driver) AttachShader(p gpu.Program, s gpu.Shader) {
	d.glAttachShader(uint32(p), uint32(s))
}

// DeleteShader implements gpu.Functions.
func (d *Driver) DeleteShader(s gpu.Shader) {
	d.glDeleteShader(uint32(s))
}

// BindAttribLocation implements gpu.Functions.
func (d *Driver) BindAttribLocation(p gpu.Program, index uint32, name string) {
	d.glBindAttribLocation(uint32(p), index, name)
}

// LinkProgram implements gpu.Functions.
func (d *Driver) LinkProgram(p gpu.Program) {
	d.glLinkProgram(uint32(p))
}

// ProgramLinkStatus implements gpu.Functions.
func (d *Driver) ProgramLinkStatus(p gpu.Program) bool {
	var status int32
	d.glGetProgramiv(uint32(p), glLinkStatus, &status)
	return status != 0
}

// ProgramInfoLog implements gpu.Functions.
func (d *Driver) ProgramInfoLog(p gpu.Program) string {
	var n int32
	d.glGetProgramiv(uint32(p), glInfoLogLength, &n)
	if n <= 1 {
		return ""
	}
	buf := make([]byte, n)
	var written int32
	d.glGetProgramInfoLog(uint32(p), n, &written, &buf[0])
	return string(buf[:written])
}

// Viewport implements gpu.Functions.
func (d *Driver) Viewport(x, y, width, height int) {
	d.glViewport(int32(x), int32(y), int32(width), int32(height))
}

// ClearColor implements gpu.Functions.
func (d *Driver) ClearColor(r, g, b, a float32) {
	d.glClearColor(r, g, b, a)
}

// ClearColorBuffer implements gpu.Functions.
func (d *Driver) ClearColorBuffer() {
	d.glClear(glColorBufferBit)
}

// UseProgram implements gpu.Functions.
func (d *Driver) UseProgram(p gpu.Program) {
	d.glUseProgram(uint32(p))
}

// VertexAttribPointer implements gpu.Functions.
func (d *Driver) VertexAttribPointer(index uint32, size int, typ gpu.DataType, normalized bool, stride int, data []float32) {
	var ptr unsafe.Pointer
	if len(data) > 0 {
		d.vertices = append([]float32(nil), data...)
		d.pinner.Pin(&d.vertices[0])
		ptr = unsafe.Pointer(&d.vertices[0])
	}
	var norm uint8
	if normalized {
		norm = 1
	}
	d.glVertexAttribPointer(index, int32(size), uint32(typ), norm, int32(stride), ptr)
}

// EnableVertexAttribArray implements gpu.Functions.
func (d *Driver) EnableVertexAttribArray(index uint32) {
	d.glEnableVertexAttribArray(index)
}

// DrawArrays implements gpu.Functions.
func (d *Driver) DrawArrays(mode gpu.Primitive, first, count int) {
	d.glDrawArrays(uint32(mode), int32(first), int32(count))
}

// ReadPixels implements gpu.Functions.
func (d *Driver) ReadPixels(x, y, width, height int, dst []byte) {
	// GL would write past the end of a short buffer.
	if len(dst) == 0 || len(dst) < width*height*4 {
		d.argErr = gpu.GLInvalidValue
		return
	}
	d.glReadPixels(int32(x), int32(y), int32(width), int32(height), glRGBA, glUnsignedByte, unsafe.Pointer(&dst[0]))
}
