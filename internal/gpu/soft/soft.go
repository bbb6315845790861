// Package soft implements gpu.Driver entirely in host memory. It follows the
// EGL and OpenGL ES error model closely enough to stand in for a real driver
// on machines without a GPU, and it keeps a ledger of every call and every
// resource acquisition/release so callers can check ownership rules.
package soft

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// Name is the driver name used for selection.
const Name = "soft"

const maxVertexAttribs = 16

// Counter tracks acquisitions and releases of one resource kind.
type Counter struct {
	Acquired int
	Released int
}

// Stats is a snapshot of the resource ledger.
type Stats struct {
	Displays Counter
	Contexts Counter
	Surfaces Counter
	Programs Counter
	Shaders  Counter
}

// Options configures a software driver.
type Options struct {
	// Fault makes a single entry point fail.
	Fault Fault

	Logger *slog.Logger
}

type display struct {
	handle      gpu.Display
	initialized bool
}

type context struct {
	handle gpu.Context
}

type surface struct {
	handle gpu.Surface
	width  int
	height int
	pix    []byte
}

type shader struct {
	kind          gpu.ShaderKind
	src           string
	compiled      compileResult
	attached      []gpu.Program
	deletePending bool
}

type program struct {
	shaders  []gpu.Shader
	attribs  map[string]uint32
	linked   bool
	log      string
	color    [4]float32
	position uint32
}

type attrib struct {
	enabled bool
	size    int
	stride  int
	data    []float32
}

// Driver is an in-memory gpu.Driver.
type Driver struct {
	fault Fault
	log   *slog.Logger

	calls  []string
	stats  Stats
	misuse []string

	// Platform state.
	display    *display
	api        gpu.API
	nextHandle uintptr
	contexts   map[gpu.Context]*context
	surfaces   map[gpu.Surface]*surface
	current    *context
	draw       *surface
	read       *surface
	platErr    gpu.ErrorCode

	// Rendering state.
	nextName   uint32
	programs   map[gpu.Program]*program
	shaders    map[gpu.Shader]*shader
	glErr      gpu.ErrorCode
	viewport   [4]int
	clearColor [4]float32
	inUse      gpu.Program
	attribs    [maxVertexAttribs]attrib
}

var _ gpu.Driver = (*Driver)(nil)

// New returns a software driver.
func New(opts Options) *Driver {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		fault:    opts.Fault,
		log:      log,
		contexts: make(map[gpu.Context]*context),
		surfaces: make(map[gpu.Surface]*surface),
		programs: make(map[gpu.Program]*program),
		shaders:  make(map[gpu.Shader]*shader),
		platErr:  gpu.EGLSuccess,
	}
}

// Name implements gpu.Driver.
func (d *Driver) Name() string { return Name }

// Close implements gpu.Driver.
func (d *Driver) Close() error { return nil }

// Calls returns the names of every driver entry point invoked, in order.
func (d *Driver) Calls() []string { return slices.Clone(d.calls) }

// CallCount returns how often the entry point name was invoked.
func (d *Driver) CallCount(name string) int {
	n := 0
	for _, c := range d.calls {
		if c == name {
			n++
		}
	}
	return n
}

// Stats returns the resource ledger.
func (d *Driver) Stats() Stats { return d.stats }

// Misuse lists calls that released a resource that was never acquired or
// was already released.
func (d *Driver) Misuse() []string { return slices.Clone(d.misuse) }

// LiveObjects returns the number of shader and program objects whose
// storage has not been reclaimed.
func (d *Driver) LiveObjects() int { return len(d.shaders) + len(d.programs) }

func (d *Driver) record(name string) { d.calls = append(d.calls, name) }

func (d *Driver) misused(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.log.Debug("soft: driver misuse", slog.String("detail", msg))
	d.misuse = append(d.misuse, msg)
}

func (d *Driver) fails(f Fault) bool { return f != NoFault && d.fault == f }

func (d *Driver) handle() uintptr {
	d.nextHandle++
	return d.nextHandle
}

func (d *Driver) platformFail(code gpu.ErrorCode) { d.platErr = code }

func (d *Driver) platformOK() { d.platErr = gpu.EGLSuccess }

func (d *Driver) validDisplay(h gpu.Display) bool {
	if d.display == nil || d.display.handle != h || h == gpu.NoDisplay {
		d.platformFail(gpu.EGLBadDisplay)
		return false
	}
	return true
}

func (d *Driver) initializedDisplay(h gpu.Display) bool {
	if !d.validDisplay(h) {
		return false
	}
	if !d.display.initialized {
		d.platformFail(gpu.EGLNotInitialized)
		return false
	}
	return true
}

// OpenDisplay implements gpu.Platform.
func (d *Driver) OpenDisplay() gpu.Display {
	d.record("OpenDisplay")
	if d.fails(FailOpenDisplay) {
		d.platformFail(gpu.EGLBadParameter)
		return gpu.NoDisplay
	}
	if d.display == nil {
		d.display = &display{handle: gpu.Display(d.handle())}
		d.stats.Displays.Acquired++
	}
	d.platformOK()
	return d.display.handle
}

// Initialize implements gpu.Platform.
func (d *Driver) Initialize(h gpu.Display) (int, int, bool) {
	d.record("Initialize")
	if !d.validDisplay(h) {
		return 0, 0, false
	}
	if d.fails(FailInitialize) {
		d.platformFail(gpu.EGLNotInitialized)
		return 0, 0, false
	}
	d.display.initialized = true
	d.platformOK()
	return 1, 5, true
}

// ChooseConfig implements gpu.Platform. The driver offers a single RGBA8
// pbuffer configuration renderable with OpenGL ES 2 and 3.
func (d *Driver) ChooseConfig(h gpu.Display, f gpu.ConfigFilter) (gpu.Config, bool) {
	d.record("ChooseConfig")
	if !d.initializedDisplay(h) {
		return gpu.NoConfig, false
	}
	d.platformOK()
	if d.fails(FailChooseConfig) {
		return gpu.NoConfig, false
	}
	if f.RedBits > 8 || f.GreenBits > 8 || f.BlueBits > 8 || f.AlphaBits > 8 || f.ClientVersion > 3 {
		return gpu.NoConfig, false
	}
	return gpu.Config(1), true
}

// BindAPI implements gpu.Platform.
func (d *Driver) BindAPI(api gpu.API) bool {
	d.record("BindAPI")
	if d.fails(FailBindAPI) || api != gpu.APIOpenGLES {
		d.platformFail(gpu.EGLBadParameter)
		return false
	}
	d.api = api
	d.platformOK()
	return true
}

// CreateContext implements gpu.Platform.
func (d *Driver) CreateContext(h gpu.Display, c gpu.Config, clientVersion int) gpu.Context {
	d.record("CreateContext")
	if !d.initializedDisplay(h) {
		return gpu.NoContext
	}
	if c != gpu.Config(1) {
		d.platformFail(gpu.EGLBadConfig)
		return gpu.NoContext
	}
	if d.api != gpu.APIOpenGLES || clientVersion < 2 || clientVersion > 3 || d.fails(FailCreateContext) {
		d.platformFail(gpu.EGLBadMatch)
		return gpu.NoContext
	}
	ctx := &context{handle: gpu.Context(d.handle())}
	d.contexts[ctx.handle] = ctx
	d.stats.Contexts.Acquired++
	d.platformOK()
	return ctx.handle
}

// CreatePbufferSurface implements gpu.Platform.
func (d *Driver) CreatePbufferSurface(h gpu.Display, c gpu.Config, width, height int) gpu.Surface {
	d.record("CreatePbufferSurface")
	if !d.initializedDisplay(h) {
		return gpu.NoSurface
	}
	if c != gpu.Config(1) {
		d.platformFail(gpu.EGLBadConfig)
		return gpu.NoSurface
	}
	if width <= 0 || height <= 0 {
		d.platformFail(gpu.EGLBadParameter)
		return gpu.NoSurface
	}
	if d.fails(FailCreateSurface) {
		d.platformFail(gpu.EGLBadAlloc)
		return gpu.NoSurface
	}
	s := &surface{
		handle: gpu.Surface(d.handle()),
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}
	d.surfaces[s.handle] = s
	d.stats.Surfaces.Acquired++
	d.platformOK()
	return s.handle
}

// MakeCurrent implements gpu.Platform. Passing no surfaces and no context
// releases the current binding.
func (d *Driver) MakeCurrent(h gpu.Display, draw, read gpu.Surface, ctx gpu.Context) bool {
	d.record("MakeCurrent")
	if !d.validDisplay(h) {
		return false
	}
	if draw == gpu.NoSurface && read == gpu.NoSurface && ctx == gpu.NoContext {
		d.current, d.draw, d.read = nil, nil, nil
		d.platformOK()
		return true
	}
	if !d.display.initialized {
		d.platformFail(gpu.EGLNotInitialized)
		return false
	}
	c, ok := d.contexts[ctx]
	if !ok {
		d.platformFail(gpu.EGLBadContext)
		return false
	}
	ds, dok := d.surfaces[draw]
	rs, rok := d.surfaces[read]
	if !dok || !rok {
		d.platformFail(gpu.EGLBadSurface)
		return false
	}
	if d.fails(FailMakeCurrent) {
		d.platformFail(gpu.EGLBadMatch)
		return false
	}
	first := d.current == nil
	d.current, d.draw, d.read = c, ds, rs
	if first {
		d.viewport = [4]int{0, 0, ds.width, ds.height}
	}
	d.platformOK()
	return true
}

// SwapBuffers implements gpu.Platform. Pbuffer surfaces are single
// buffered, so a successful swap leaves the pixels in place.
func (d *Driver) SwapBuffers(h gpu.Display, s gpu.Surface) bool {
	d.record("SwapBuffers")
	if !d.initializedDisplay(h) {
		return false
	}
	if _, ok := d.surfaces[s]; !ok || d.fails(FailPresent) {
		d.platformFail(gpu.EGLBadSurface)
		return false
	}
	d.platformOK()
	return true
}

// DestroySurface implements gpu.Platform.
func (d *Driver) DestroySurface(h gpu.Display, s gpu.Surface) bool {
	d.record("DestroySurface")
	if !d.validDisplay(h) {
		d.misused("DestroySurface(%#x) on invalid display", uintptr(s))
		return false
	}
	surf, ok := d.surfaces[s]
	if !ok {
		d.misused("DestroySurface(%#x) on unknown surface", uintptr(s))
		d.platformFail(gpu.EGLBadSurface)
		return false
	}
	delete(d.surfaces, s)
	if d.draw == surf {
		d.draw = nil
	}
	if d.read == surf {
		d.read = nil
	}
	d.stats.Surfaces.Released++
	d.platformOK()
	return true
}

// DestroyContext implements gpu.Platform.
func (d *Driver) DestroyContext(h gpu.Display, ctx gpu.Context) bool {
	d.record("DestroyContext")
	if !d.validDisplay(h) {
		d.misused("DestroyContext(%#x) on invalid display", uintptr(ctx))
		return false
	}
	c, ok := d.contexts[ctx]
	if !ok {
		d.misused("DestroyContext(%#x) on unknown context", uintptr(ctx))
		d.platformFail(gpu.EGLBadContext)
		return false
	}
	delete(d.contexts, ctx)
	if d.current == c {
		d.current, d.draw, d.read = nil, nil, nil
	}
	d.stats.Contexts.Released++
	d.platformOK()
	return true
}

// Terminate implements gpu.Platform.
func (d *Driver) Terminate(h gpu.Display) bool {
	d.record("Terminate")
	if d.display == nil || d.display.handle != h || h == gpu.NoDisplay {
		d.misused("Terminate(%#x) on a display that is not open", uintptr(h))
		d.platformFail(gpu.EGLBadDisplay)
		return false
	}
	d.display = nil
	d.current, d.draw, d.read = nil, nil, nil
	d.stats.Displays.Released++
	d.platformOK()
	return true
}

// PlatformError implements gpu.Platform. Like eglGetError it returns the
// result of the last platform call.
func (d *Driver) PlatformError() gpu.ErrorCode {
	return d.platErr
}
