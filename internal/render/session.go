// Package render drives a gpu.Driver through one off-screen frame: it
// acquires a display, configuration, context and pbuffer surface, builds the
// shader program, draws a single triangle, reads the colour buffer back and
// then releases everything it acquired in reverse order.
//
// A Session is single use. Whatever step fails, Run returns only after every
// resource acquired so far has been released exactly once.
package render

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// MaxDimension bounds the surface width and height.
const MaxDimension = 16384

// ClientVersion is the OpenGL ES version requested for the context.
const ClientVersion = 2

var configFilter = gpu.ConfigFilter{
	RedBits:       8,
	GreenBits:     8,
	BlueBits:      8,
	AlphaBits:     8,
	Pbuffer:       true,
	ClientVersion: ClientVersion,
}

// Options configures a Session.
type Options struct {
	Width  int
	Height int

	// VertexShader and FragmentShader default to DefaultVertexShader and
	// DefaultFragmentShader.
	VertexShader   string
	FragmentShader string

	ClearColor [4]float32

	Logger *slog.Logger

	// OnStage is called every time the pipeline reaches a new stage.
	OnStage func(Stage)
}

// Session owns every driver resource of a single render.
type Session struct {
	drv  gpu.Driver
	opts Options
	log  *slog.Logger

	used    bool
	stage   Stage
	reached Stage

	display gpu.Display
	config  gpu.Config
	context gpu.Context
	surface gpu.Surface
	program gpu.Program
}

// FrameSize returns the number of bytes of an RGBA8 frame.
func FrameSize(width, height int) int {
	return width * height * 4
}

// CheckDimensions reports whether a width x height surface can be rendered.
func CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d (each side must be 1..%d)", ErrInvalidDimensions, width, height, MaxDimension)
	}
	return nil
}

// NewSession validates opts and returns a session ready to Run.
func NewSession(drv gpu.Driver, opts Options) (*Session, error) {
	if err := CheckDimensions(opts.Width, opts.Height); err != nil {
		return nil, err
	}
	if opts.VertexShader == "" {
		opts.VertexShader = DefaultVertexShader
	}
	if opts.FragmentShader == "" {
		opts.FragmentShader = DefaultFragmentShader
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{drv: drv, opts: opts, log: log}, nil
}

// Run renders a frame with drv and returns its pixels.
func Run(drv gpu.Driver, opts Options) ([]byte, error) {
	s, err := NewSession(drv, opts)
	if err != nil {
		return nil, err
	}
	return s.Run()
}

// Reached returns the furthest stage the last Run got to.
func (s *Session) Reached() Stage { return s.reached }

// Run renders the frame into a newly allocated buffer of
// FrameSize(width, height) bytes. Rows are bottom row first.
func (s *Session) Run() ([]byte, error) {
	dst := make([]byte, FrameSize(s.opts.Width, s.opts.Height))
	if err := s.RunInto(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// RunInto renders the frame into dst, which must be exactly
// FrameSize(width, height) bytes. dst is only written when every step
// succeeded.
func (s *Session) RunInto(dst []byte) error {
	if s.used {
		return ErrSessionUsed
	}
	if want := FrameSize(s.opts.Width, s.opts.Height); len(dst) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(dst), want)
	}
	s.used = true

	// The current context is bound to this OS thread until teardown.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer s.teardown()

	s.log.Debug("render session starting",
		slog.String("driver", s.drv.Name()),
		slog.Int("width", s.opts.Width),
		slog.Int("height", s.opts.Height))

	if err := s.acquire(); err != nil {
		return err
	}
	if err := s.buildProgram(); err != nil {
		return err
	}
	return s.render(dst)
}

func (s *Session) advance(stage Stage) {
	s.stage = stage
	s.reached = stage
	s.log.Debug("render stage reached", slog.String("stage", stage.String()))
	if s.opts.OnStage != nil {
		s.opts.OnStage(stage)
	}
}

func (s *Session) platformError(op string, reason error) error {
	return &StepError{Op: op, Code: s.drv.PlatformError(), Err: reason}
}
