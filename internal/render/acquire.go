package render

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// acquire opens the display and makes a context with a pbuffer surface
// current. Each step stops the pipeline on failure.
func (s *Session) acquire() error {
	d := s.drv

	s.display = d.OpenDisplay()
	if s.display == gpu.NoDisplay {
		return s.platformError("eglGetPlatformDisplay", gpu.ErrDisplayUnavailable)
	}
	s.advance(StageDisplayOpened)

	major, minor, ok := d.Initialize(s.display)
	if !ok {
		return s.platformError("eglInitialize", gpu.ErrDisplayInitFailed)
	}
	s.log.Info("display initialized",
		slog.String("driver", d.Name()),
		slog.String("version", fmt.Sprintf("%d.%d", major, minor)))

	cfg, ok := d.ChooseConfig(s.display, configFilter)
	if !ok || cfg == gpu.NoConfig {
		return s.platformError("eglChooseConfig", gpu.ErrNoCompatibleConfig)
	}
	s.config = cfg

	if !d.BindAPI(gpu.APIOpenGLES) {
		return s.platformError("eglBindAPI", gpu.ErrAPIBindFailed)
	}

	s.context = d.CreateContext(s.display, s.config, ClientVersion)
	if s.context == gpu.NoContext {
		return s.platformError("eglCreateContext", gpu.ErrContextCreateFailed)
	}
	s.advance(StageContextCreated)

	s.surface = d.CreatePbufferSurface(s.display, s.config, s.opts.Width, s.opts.Height)
	if s.surface == gpu.NoSurface {
		return s.platformError("eglCreatePbufferSurface", gpu.ErrSurfaceCreateFailed)
	}
	s.advance(StageSurfaceCreated)

	if !d.MakeCurrent(s.display, s.surface, s.surface, s.context) {
		return s.platformError("eglMakeCurrent", gpu.ErrMakeCurrentFailed)
	}
	s.advance(StageCurrent)
	return nil
}
