package soft

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// setError latches the first error until GetError is called, as GL does.
func (d *Driver) setError(code gpu.ErrorCode) {
	if d.glErr == gpu.NoError {
		d.glErr = code
	}
}

func (d *Driver) requireCurrent() bool {
	if d.current == nil {
		d.setError(gpu.GLInvalidOperation)
		return false
	}
	return true
}

// GetError implements gpu.Functions.
func (d *Driver) GetError() gpu.ErrorCode {
	code := d.glErr
	d.glErr = gpu.NoError
	return code
}

func (d *Driver) name() uint32 {
	d.nextName++
	return d.nextName
}

// CreateProgram implements gpu.Functions.
func (d *Driver) CreateProgram() gpu.Program {
	d.record("CreateProgram")
	if !d.requireCurrent() || d.fails(FailCreateProgram) {
		return gpu.NoProgram
	}
	p := gpu.Program(d.name())
	d.programs[p] = &program{attribs: make(map[string]uint32)}
	d.stats.Programs.Acquired++
	return p
}

// DeleteProgram implements gpu.Functions. Shaders that were flagged for
// deletion while attached are reclaimed here.
func (d *Driver) DeleteProgram(p gpu.Program) {
	d.record("DeleteProgram")
	if p == gpu.NoProgram {
		return
	}
	prog, ok := d.programs[p]
	if !ok {
		d.misused("DeleteProgram(%d) on unknown program", p)
		d.setError(gpu.GLInvalidValue)
		return
	}
	for _, s := range prog.shaders {
		d.detach(p, s)
	}
	delete(d.programs, p)
	if d.inUse == p {
		d.inUse = gpu.NoProgram
	}
	d.stats.Programs.Released++
}

func (d *Driver) detach(p gpu.Program, s gpu.Shader) {
	sh, ok := d.shaders[s]
	if !ok {
		return
	}
	sh.attached = slices.DeleteFunc(sh.attached, func(q gpu.Program) bool { return q == p })
	if sh.deletePending && len(sh.attached) == 0 {
		delete(d.shaders, s)
		d.log.Debug("soft: reclaimed shader", slog.Int("shader", int(s)))
	}
}

// CreateShader implements gpu.Functions.
func (d *Driver) CreateShader(kind gpu.ShaderKind) gpu.Shader {
	d.record("CreateShader")
	if !d.requireCurrent() {
		return gpu.NoShader
	}
	if kind != gpu.VertexShader && kind != gpu.FragmentShader {
		d.setError(gpu.GLInvalidEnum)
		return gpu.NoShader
	}
	if d.fails(createShaderFault(kind)) {
		d.setError(gpu.GLOutOfMemory)
		return gpu.NoShader
	}
	s := gpu.Shader(d.name())
	d.shaders[s] = &shader{kind: kind}
	d.stats.Shaders.Acquired++
	return s
}

func (d *Driver) lookupShader(s gpu.Shader) *shader {
	sh, ok := d.shaders[s]
	if !ok || sh.deletePending {
		d.setError(gpu.GLInvalidValue)
		return nil
	}
	return sh
}

func (d *Driver) lookupProgram(p gpu.Program) *program {
	prog, ok := d.programs[p]
	if !ok {
		d.setError(gpu.GLInvalidValue)
		return nil
	}
	return prog
}

// ShaderSource implements gpu.Functions.
func (d *Driver) ShaderSource(s gpu.Shader, src string) {
	d.record("ShaderSource")
	if sh := d.lookupShader(s); sh != nil {
		sh.src = src
	}
}

// CompileShader implements gpu.Functions.
func (d *Driver) CompileShader(s gpu.Shader) {
	d.record("CompileShader")
	sh := d.lookupShader(s)
	if sh == nil {
		return
	}
	if d.fails(compileFault(sh.kind)) {
		sh.compiled = compileResult{log: "0:1(1): error: syntax error, unexpected end of file"}
		return
	}
	sh.compiled = compileShader(sh.kind, sh.src)
}

// ShaderCompileStatus implements gpu.Functions.
func (d *Driver) ShaderCompileStatus(s gpu.Shader) bool {
	sh, ok := d.shaders[s]
	return ok && sh.compiled.ok
}

// ShaderInfoLog implements gpu.Functions.
func (d *Driver) ShaderInfoLog(s gpu.Shader) string {
	if sh, ok := d.shaders[s]; ok {
		return sh.compiled.log
	}
	return ""
}

// AttachShader implements gpu.Functions.
func (d *Driver) AttachShader(p gpu.Program, s gpu.Shader) {
	d.record("AttachShader")
	prog := d.lookupProgram(p)
	sh := d.lookupShader(s)
	if prog == nil || sh == nil {
		return
	}
	if slices.Contains(prog.shaders, s) || d.fails(attachFault(sh.kind)) {
		d.setError(gpu.GLInvalidOperation)
		return
	}
	prog.shaders = append(prog.shaders, s)
	sh.attached = append(sh.attached, p)
}

// DeleteShader implements gpu.Functions. A shader still attached to a
// program is only flagged; its storage goes away when the last program it
// is attached to is deleted.
func (d *Driver) DeleteShader(s gpu.Shader) {
	d.record("DeleteShader")
	if s == gpu.NoShader {
		return
	}
	sh, ok := d.shaders[s]
	if !ok || sh.deletePending {
		d.misused("DeleteShader(%d) on unknown or already deleted shader", s)
		d.setError(gpu.GLInvalidValue)
		return
	}
	d.stats.Shaders.Released++
	if len(sh.attached) > 0 {
		sh.deletePending = true
		return
	}
	delete(d.shaders, s)
}

// BindAttribLocation implements gpu.Functions.
func (d *Driver) BindAttribLocation(p gpu.Program, index uint32, name string) {
	d.record("BindAttribLocation")
	prog := d.lookupProgram(p)
	if prog == nil {
		return
	}
	if index >= maxVertexAttribs {
		d.setError(gpu.GLInvalidValue)
		return
	}
	prog.attribs[name] = index
}

// LinkProgram implements gpu.Functions.
func (d *Driver) LinkProgram(p gpu.Program) {
	d.record("LinkProgram")
	prog := d.lookupProgram(p)
	if prog == nil {
		return
	}
	prog.linked = false
	if d.fails(FailLinkProgram) {
		prog.log = "error: linking with uncompiled/unspecialized shader"
		return
	}

	var vs, fs *shader
	for _, s := range prog.shaders {
		sh := d.shaders[s]
		switch {
		case sh == nil || !sh.compiled.ok:
			prog.log = "error: linking with uncompiled shader"
			return
		case sh.kind == gpu.VertexShader:
			vs = sh
		case sh.kind == gpu.FragmentShader:
			fs = sh
		}
	}
	if vs == nil || fs == nil {
		prog.log = "error: program lacks a vertex or fragment shader"
		return
	}

	// Only explicitly bound inputs are supported; there is no automatic
	// location assignment.
	loc, ok := prog.attribs[vs.compiled.attrib]
	if !ok {
		prog.log = fmt.Sprintf("error: attribute %q has no location bound with glBindAttribLocation", vs.compiled.attrib)
		return
	}

	prog.color = fs.compiled.color
	prog.position = loc
	prog.linked = true
	prog.log = ""
}

// ProgramLinkStatus implements gpu.Functions.
func (d *Driver) ProgramLinkStatus(p gpu.Program) bool {
	prog, ok := d.programs[p]
	return ok && prog.linked
}

// ProgramInfoLog implements gpu.Functions.
func (d *Driver) ProgramInfoLog(p gpu.Program) string {
	if prog, ok := d.programs[p]; ok {
		return prog.log
	}
	return ""
}

// Viewport implements gpu.Functions.
func (d *Driver) Viewport(x, y, width, height int) {
	d.record("Viewport")
	if !d.requireCurrent() {
		return
	}
	if width < 0 || height < 0 {
		d.setError(gpu.GLInvalidValue)
		return
	}
	d.viewport = [4]int{x, y, width, height}
}

// ClearColor implements gpu.Functions.
func (d *Driver) ClearColor(r, g, b, a float32) {
	d.record("ClearColor")
	if !d.requireCurrent() {
		return
	}
	d.clearColor = [4]float32{r, g, b, a}
}

// ClearColorBuffer implements gpu.Functions.
func (d *Driver) ClearColorBuffer() {
	d.record("ClearColorBuffer")
	if !d.requireCurrent() {
		return
	}
	if d.draw == nil {
		d.setError(gpu.GLInvalidFramebufferOperation)
		return
	}
	d.draw.fill(quantize(d.clearColor))
}

// UseProgram implements gpu.Functions.
func (d *Driver) UseProgram(p gpu.Program) {
	d.record("UseProgram")
	if !d.requireCurrent() {
		return
	}
	if p == gpu.NoProgram {
		d.inUse = gpu.NoProgram
		return
	}
	prog := d.lookupProgram(p)
	if prog == nil {
		return
	}
	if !prog.linked {
		d.setError(gpu.GLInvalidOperation)
		return
	}
	d.inUse = p
}

// VertexAttribPointer implements gpu.Functions.
func (d *Driver) VertexAttribPointer(index uint32, size int, typ gpu.DataType, normalized bool, stride int, data []float32) {
	d.record("VertexAttribPointer")
	if !d.requireCurrent() {
		return
	}
	if index >= maxVertexAttribs || size < 1 || size > 4 || stride < 0 {
		d.setError(gpu.GLInvalidValue)
		return
	}
	if typ != gpu.Float {
		d.setError(gpu.GLInvalidEnum)
		return
	}
	a := &d.attribs[index]
	a.size = size
	a.stride = stride
	a.data = slices.Clone(data)
}

// EnableVertexAttribArray implements gpu.Functions.
func (d *Driver) EnableVertexAttribArray(index uint32) {
	d.record("EnableVertexAttribArray")
	if !d.requireCurrent() {
		return
	}
	if index >= maxVertexAttribs {
		d.setError(gpu.GLInvalidValue)
		return
	}
	d.attribs[index].enabled = true
}

// DrawArrays implements gpu.Functions.
func (d *Driver) DrawArrays(mode gpu.Primitive, first, count int) {
	d.record("DrawArrays")
	if !d.requireCurrent() {
		return
	}
	if mode != gpu.Triangles {
		d.setError(gpu.GLInvalidEnum)
		return
	}
	if first < 0 || count < 0 {
		d.setError(gpu.GLInvalidValue)
		return
	}
	prog, ok := d.programs[d.inUse]
	if !ok || !prog.linked || d.draw == nil || d.fails(FailDraw) {
		d.setError(gpu.GLInvalidOperation)
		return
	}

	a := d.attribs[prog.position]
	if !a.enabled || a.data == nil {
		d.setError(gpu.GLInvalidOperation)
		return
	}
	step := a.stride / 4
	if step == 0 {
		step = a.size
	}
	if (first+count-1)*step+a.size > len(a.data) {
		d.setError(gpu.GLInvalidOperation)
		return
	}

	color := quantize(prog.color)
	for t := 0; t+3 <= count; t += 3 {
		var tri [3][3]float32
		for i := range 3 {
			off := (first + t + i) * step
			for c := 0; c < a.size && c < 3; c++ {
				tri[i][c] = a.data[off+c]
			}
		}
		d.draw.rasterize(d.viewport, tri, color)
	}
}

// ReadPixels implements gpu.Functions.
func (d *Driver) ReadPixels(x, y, width, height int, dst []byte) {
	d.record("ReadPixels")
	if !d.requireCurrent() {
		return
	}
	if width < 0 || height < 0 {
		d.setError(gpu.GLInvalidValue)
		return
	}
	if d.read == nil || len(dst) < width*height*4 || d.fails(FailReadPixels) {
		d.setError(gpu.GLInvalidOperation)
		return
	}
	src := d.read
	for row := 0; row < height; row++ {
		sy := y + row
		if sy < 0 || sy >= src.height {
			continue
		}
		for col := 0; col < width; col++ {
			sx := x + col
			if sx < 0 || sx >= src.width {
				continue
			}
			so := (sy*src.width + sx) * 4
			do := (row*width + col) * 4
			copy(dst[do:do+4], src.pix[so:so+4])
		}
	}
}
