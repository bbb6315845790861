package render

import (
	"log/slog"

	"github.com/tinyrange/offscreen/internal/gpu"
)

type command struct {
	op   string
	call func()
}

// render draws the triangle, presents the surface and reads the colour
// buffer back into dst. The error state is checked after every command and
// the first error stops the sequence. dst is written only on success.
func (s *Session) render(dst []byte) error {
	f := s.drv
	w, h := s.opts.Width, s.opts.Height
	c := s.opts.ClearColor

	commands := []command{
		{"glViewport", func() { f.Viewport(0, 0, w, h) }},
		{"glClearColor", func() { f.ClearColor(c[0], c[1], c[2], c[3]) }},
		{"glClear", f.ClearColorBuffer},
		{"glUseProgram", func() { f.UseProgram(s.program) }},
		{"glVertexAttribPointer", func() { f.VertexAttribPointer(PositionAttrib, 3, gpu.Float, false, 0, triangle[:]) }},
		{"glEnableVertexAttribArray", func() { f.EnableVertexAttribArray(PositionAttrib) }},
		{"glDrawArrays", func() { f.DrawArrays(gpu.Triangles, 0, 3) }},
	}
	for _, cmd := range commands {
		cmd.call()
		if code := f.GetError(); !code.OK() {
			return &StepError{Op: cmd.op, Code: code, Err: gpu.ErrRenderCommandFailed}
		}
	}

	if !f.SwapBuffers(s.display, s.surface) {
		return s.platformError("eglSwapBuffers", gpu.ErrPresentFailed)
	}

	pix := make([]byte, len(dst))
	f.ReadPixels(0, 0, w, h, pix)
	if code := f.GetError(); !code.OK() {
		return &StepError{Op: "glReadPixels", Code: code, Err: gpu.ErrRenderCommandFailed}
	}
	copy(dst, pix)

	s.advance(StageRendered)
	s.log.Debug("frame read back", slog.Int("bytes", len(dst)))
	return nil
}
