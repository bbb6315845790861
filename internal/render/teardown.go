package render

import (
	"log/slog"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// teardown releases every resource belonging to a stage at or below the one
// reached, highest stage first. Release failures are logged and otherwise
// ignored: the first forward failure is what the caller gets.
func (s *Session) teardown() {
	d := s.drv
	reached := s.stage
	s.stage = StageNone

	if reached >= StageProgramCreated {
		d.DeleteProgram(s.program)
		if code := d.GetError(); !code.OK() {
			s.releaseFailed("glDeleteProgram", code)
		}
		s.program = gpu.NoProgram
	}
	if reached >= StageCurrent {
		if !d.MakeCurrent(s.display, gpu.NoSurface, gpu.NoSurface, gpu.NoContext) {
			s.releaseFailed("eglMakeCurrent", d.PlatformError())
		}
	}
	if reached >= StageSurfaceCreated {
		if !d.DestroySurface(s.display, s.surface) {
			s.releaseFailed("eglDestroySurface", d.PlatformError())
		}
		s.surface = gpu.NoSurface
	}
	if reached >= StageContextCreated {
		if !d.DestroyContext(s.display, s.context) {
			s.releaseFailed("eglDestroyContext", d.PlatformError())
		}
		s.context = gpu.NoContext
	}
	if reached >= StageDisplayOpened {
		if !d.Terminate(s.display) {
			s.releaseFailed("eglTerminate", d.PlatformError())
		}
		s.display = gpu.NoDisplay
		s.config = gpu.NoConfig
	}

	s.log.Debug("render session torn down", slog.String("reached", reached.String()))
}

func (s *Session) releaseFailed(op string, code gpu.ErrorCode) {
	s.log.Warn("resource release failed", slog.String("op", op), slog.String("code", code.String()))
}
