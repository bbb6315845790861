package render

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/tinyrange/offscreen/internal/gpu"
	"github.com/tinyrange/offscreen/internal/gpu/soft"
)

var (
	clearPixel = [4]byte{0, 0, 0, 0}
	redPixel   = [4]byte{255, 0, 0, 255}
)

func pixelAt(pix []byte, width, x, y int) [4]byte {
	off := (y*width + x) * 4
	return [4]byte(pix[off : off+4])
}

func checkLedger(t *testing.T, d *soft.Driver) {
	t.Helper()
	st := d.Stats()
	for _, c := range []struct {
		kind string
		n    soft.Counter
		max  int
	}{
		{"display", st.Displays, 1},
		{"context", st.Contexts, 1},
		{"surface", st.Surfaces, 1},
		{"program", st.Programs, 1},
		{"shader", st.Shaders, 2},
	} {
		if c.n.Released != c.n.Acquired {
			t.Errorf("%s: acquired %d, released %d", c.kind, c.n.Acquired, c.n.Released)
		}
		if c.n.Acquired > c.max {
			t.Errorf("%s: acquired %d times, want at most %d", c.kind, c.n.Acquired, c.max)
		}
	}
	if m := d.Misuse(); len(m) != 0 {
		t.Errorf("driver misuse: %v", m)
	}
	if n := d.LiveObjects(); n != 0 {
		t.Errorf("%d shader/program objects never reclaimed", n)
	}
}

func TestRun64x64(t *testing.T) {
	d := soft.New(soft.Options{})
	pix, err := Run(d, Options{Width: 64, Height: 64})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(pix) != 16384 {
		t.Fatalf("len(pix) = %d, want 16384", len(pix))
	}

	var sawClear, sawRed bool
	for i := 0; i < len(pix); i += 4 {
		switch p := [4]byte(pix[i : i+4]); p {
		case clearPixel:
			sawClear = true
		case redPixel:
			sawRed = true
		default:
			t.Fatalf("pixel %d = %v, want clear or red", i/4, p)
		}
	}
	if !sawClear || !sawRed {
		t.Fatalf("sawClear=%v sawRed=%v, want both", sawClear, sawRed)
	}
	if got := pixelAt(pix, 64, 32, 32); got != redPixel {
		t.Errorf("centre pixel = %v, want red", got)
	}
	if got := pixelAt(pix, 64, 0, 0); got != clearPixel {
		t.Errorf("corner pixel = %v, want clear", got)
	}
	checkLedger(t, d)
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := Run(soft.New(soft.Options{}), Options{Width: 97, Height: 41})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// The same driver must be reusable once a session is torn down.
	d := soft.New(soft.Options{})
	for i := 0; i < 2; i++ {
		pix, err := Run(d, Options{Width: 97, Height: 41})
		if err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
		if !bytes.Equal(first, pix) {
			t.Fatalf("Run() #%d output differs", i)
		}
	}
}

func TestClearColor(t *testing.T) {
	pix, err := Run(soft.New(soft.Options{}), Options{Width: 16, Height: 16, ClearColor: [4]float32{0, 0, 1, 1}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := pixelAt(pix, 16, 0, 15); got != [4]byte{0, 0, 255, 255} {
		t.Fatalf("corner pixel = %v, want blue", got)
	}
}

func TestTriangleOrientation(t *testing.T) {
	// The apex is at the top of the image, which is the last row of the
	// bottom-up buffer.
	pix, err := Run(soft.New(soft.Options{}), Options{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := pixelAt(pix, 100, 50, 73); got != redPixel {
		t.Errorf("pixel below apex = %v, want red", got)
	}
	if got := pixelAt(pix, 100, 26, 73); got != clearPixel {
		t.Errorf("pixel left of apex = %v, want clear", got)
	}
	if got := pixelAt(pix, 100, 26, 26); got != redPixel {
		t.Errorf("pixel above bottom-left vertex = %v, want red", got)
	}
}

func TestFailureUnwinding(t *testing.T) {
	tests := []struct {
		fault   soft.Fault
		reason  error
		op      string
		shader  gpu.ShaderKind
		reached Stage
	}{
		{soft.FailOpenDisplay, gpu.ErrDisplayUnavailable, "eglGetPlatformDisplay", 0, StageNone},
		{soft.FailInitialize, gpu.ErrDisplayInitFailed, "eglInitialize", 0, StageDisplayOpened},
		{soft.FailChooseConfig, gpu.ErrNoCompatibleConfig, "eglChooseConfig", 0, StageDisplayOpened},
		{soft.FailBindAPI, gpu.ErrAPIBindFailed, "eglBindAPI", 0, StageDisplayOpened},
		{soft.FailCreateContext, gpu.ErrContextCreateFailed, "eglCreateContext", 0, StageDisplayOpened},
		{soft.FailCreateSurface, gpu.ErrSurfaceCreateFailed, "eglCreatePbufferSurface", 0, StageContextCreated},
		{soft.FailMakeCurrent, gpu.ErrMakeCurrentFailed, "eglMakeCurrent", 0, StageSurfaceCreated},
		{soft.FailCreateProgram, gpu.ErrProgramCreateFailed, "glCreateProgram", 0, StageCurrent},
		{soft.FailCreateVertexShader, gpu.ErrShaderCreateFailed, "glCreateShader", gpu.VertexShader, StageProgramCreated},
		{soft.FailCreateFragmentShader, gpu.ErrShaderCreateFailed, "glCreateShader", gpu.FragmentShader, StageProgramCreated},
		{soft.FailCompileVertexShader, gpu.ErrShaderCompileFailed, "glCompileShader", gpu.VertexShader, StageProgramCreated},
		{soft.FailCompileFragmentShader, gpu.ErrShaderCompileFailed, "glCompileShader", gpu.FragmentShader, StageProgramCreated},
		{soft.FailAttachVertexShader, gpu.ErrShaderAttachFailed, "glAttachShader", gpu.VertexShader, StageProgramCreated},
		{soft.FailAttachFragmentShader, gpu.ErrShaderAttachFailed, "glAttachShader", gpu.FragmentShader, StageProgramCreated},
		{soft.FailLinkProgram, gpu.ErrProgramLinkFailed, "glLinkProgram", 0, StageProgramCreated},
		{soft.FailDraw, gpu.ErrRenderCommandFailed, "glDrawArrays", 0, StageProgramCreated},
		{soft.FailPresent, gpu.ErrPresentFailed, "eglSwapBuffers", 0, StageProgramCreated},
		{soft.FailReadPixels, gpu.ErrRenderCommandFailed, "glReadPixels", 0, StageProgramCreated},
	}
	for _, tt := range tests {
		t.Run(tt.fault.String(), func(t *testing.T) {
			d := soft.New(soft.Options{Fault: tt.fault})
			s, err := NewSession(d, Options{Width: 32, Height: 32})
			if err != nil {
				t.Fatalf("NewSession() error = %v", err)
			}
			pix, err := s.Run()
			if pix != nil {
				t.Errorf("Run() returned %d bytes on failure", len(pix))
			}
			if !errors.Is(err, tt.reason) {
				t.Fatalf("Run() error = %v, want %v", err, tt.reason)
			}
			var se *StepError
			if !errors.As(err, &se) {
				t.Fatalf("Run() error %T is not a *StepError", err)
			}
			if se.Op != tt.op || se.Shader != tt.shader {
				t.Errorf("StepError op=%q shader=%v, want op=%q shader=%v", se.Op, se.Shader, tt.op, tt.shader)
			}
			if s.Reached() != tt.reached {
				t.Errorf("Reached() = %v, want %v", s.Reached(), tt.reached)
			}
			checkLedger(t, d)
			checkReleaseOrder(t, d.Calls())
		})
	}
}

// checkReleaseOrder verifies that release calls come in reverse acquisition
// order and that terminating the display is the last call of all.
func checkReleaseOrder(t *testing.T, calls []string) {
	t.Helper()
	order := []string{"DeleteProgram", "DestroySurface", "DestroyContext", "Terminate"}
	var releases []string
	for _, c := range calls {
		if slices.Contains(order, c) {
			releases = append(releases, c)
		}
	}
	last := -1
	for _, r := range releases {
		i := slices.Index(order, r)
		if i <= last {
			t.Fatalf("release order %v is not %v", releases, order)
		}
		last = i
	}
	if len(releases) > 0 && calls[len(calls)-1] != "Terminate" {
		t.Fatalf("last call = %q, want Terminate", calls[len(calls)-1])
	}
}

func TestNoCompatibleConfigCreatesNothing(t *testing.T) {
	d := soft.New(soft.Options{Fault: soft.FailChooseConfig})
	_, err := Run(d, Options{Width: 64, Height: 64})
	if !errors.Is(err, gpu.ErrNoCompatibleConfig) {
		t.Fatalf("Run() error = %v, want ErrNoCompatibleConfig", err)
	}
	for _, call := range []string{"CreateContext", "CreatePbufferSurface", "CreateProgram", "CreateShader"} {
		if n := d.CallCount(call); n != 0 {
			t.Errorf("%s called %d times", call, n)
		}
	}
	if n := d.CallCount("Terminate"); n != 1 {
		t.Errorf("Terminate called %d times, want 1", n)
	}
}

func TestFragmentCompileFailure(t *testing.T) {
	d := soft.New(soft.Options{Fault: soft.FailCompileFragmentShader})
	_, err := Run(d, Options{Width: 64, Height: 64})

	var se *StepError
	if !errors.As(err, &se) || se.Shader != gpu.FragmentShader {
		t.Fatalf("Run() error = %v, want fragment stage failure", err)
	}
	if se.Log == "" {
		t.Error("compile failure carries no info log")
	}
	if n := d.CallCount("CompileShader"); n != 2 {
		t.Errorf("CompileShader called %d times, want 2", n)
	}
	if n := d.CallCount("AttachShader"); n != 1 {
		t.Errorf("AttachShader called %d times, want 1 (vertex only)", n)
	}
	if n := d.CallCount("LinkProgram"); n != 0 {
		t.Errorf("LinkProgram called %d times, want 0", n)
	}
	for _, call := range []string{"DeleteProgram", "DestroySurface", "DestroyContext", "Terminate"} {
		if n := d.CallCount(call); n != 1 {
			t.Errorf("%s called %d times, want 1", call, n)
		}
	}
	checkLedger(t, d)
}

func TestVertexCompileFailureSkipsFragment(t *testing.T) {
	d := soft.New(soft.Options{Fault: soft.FailCompileVertexShader})
	_, err := Run(d, Options{Width: 8, Height: 8})
	if !errors.Is(err, gpu.ErrShaderCompileFailed) {
		t.Fatalf("Run() error = %v, want ErrShaderCompileFailed", err)
	}
	if n := d.CallCount("CreateShader"); n != 1 {
		t.Errorf("CreateShader called %d times, want 1", n)
	}
	if n := d.CallCount("LinkProgram"); n != 0 {
		t.Errorf("LinkProgram called %d times, want 0", n)
	}
}

func TestInvalidShaderSource(t *testing.T) {
	d := soft.New(soft.Options{})
	_, err := Run(d, Options{
		Width:          8,
		Height:         8,
		FragmentShader: "void main(void) { gl_FragColor = texture2D(tex, uv); }",
	})
	var se *StepError
	if !errors.As(err, &se) || !errors.Is(err, gpu.ErrShaderCompileFailed) || se.Shader != gpu.FragmentShader {
		t.Fatalf("Run() error = %v, want fragment compile failure", err)
	}
	checkLedger(t, d)
}

func TestRunIntoLeavesBufferOnFailure(t *testing.T) {
	for _, f := range []soft.Fault{soft.FailDraw, soft.FailPresent, soft.FailReadPixels} {
		t.Run(f.String(), func(t *testing.T) {
			s, err := NewSession(soft.New(soft.Options{Fault: f}), Options{Width: 4, Height: 4})
			if err != nil {
				t.Fatal(err)
			}
			dst := bytes.Repeat([]byte{0xAA}, FrameSize(4, 4))
			if err := s.RunInto(dst); err == nil {
				t.Fatal("RunInto() succeeded")
			}
			if !bytes.Equal(dst, bytes.Repeat([]byte{0xAA}, FrameSize(4, 4))) {
				t.Fatal("destination buffer modified on failure")
			}
		})
	}
}

func TestRunIntoWrongSize(t *testing.T) {
	d := soft.New(soft.Options{})
	s, err := NewSession(d, Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RunInto(make([]byte, 10)); !errors.Is(err, ErrBufferSize) {
		t.Fatalf("RunInto() error = %v, want ErrBufferSize", err)
	}
	if len(d.Calls()) != 0 {
		t.Fatalf("driver called before size check: %v", d.Calls())
	}
	// The size check does not consume the session.
	if err := s.RunInto(make([]byte, FrameSize(4, 4))); err != nil {
		t.Fatalf("RunInto() error = %v", err)
	}
}

func TestSessionSingleUse(t *testing.T) {
	d := soft.New(soft.Options{})
	s, err := NewSession(d, Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	n := len(d.Calls())
	if _, err := s.Run(); !errors.Is(err, ErrSessionUsed) {
		t.Fatalf("second Run() error = %v, want ErrSessionUsed", err)
	}
	if len(d.Calls()) != n {
		t.Fatal("second Run() reached the driver")
	}
	checkLedger(t, d)
}

func TestInvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 5}, {MaxDimension + 1, 1}} {
		if _, err := NewSession(soft.New(soft.Options{}), Options{Width: dims[0], Height: dims[1]}); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("NewSession(%dx%d) error = %v, want ErrInvalidDimensions", dims[0], dims[1], err)
		}
	}
}

func TestOnStage(t *testing.T) {
	var got []Stage
	_, err := Run(soft.New(soft.Options{}), Options{
		Width:   4,
		Height:  4,
		OnStage: func(s Stage) { got = append(got, s) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []Stage{StageDisplayOpened, StageContextCreated, StageSurfaceCreated, StageCurrent, StageProgramCreated, StageRendered}
	if !slices.Equal(got, want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
}

func TestStepErrorMessage(t *testing.T) {
	err := &StepError{
		Op:     "glCompileShader",
		Shader: gpu.FragmentShader,
		Code:   gpu.GLInvalidOperation,
		Log:    "0:1(1): error: syntax error\n",
		Err:    gpu.ErrShaderCompileFailed,
	}
	want := "fragment shader: glCompileShader: shader compilation failed [GL_INVALID_OPERATION (0x0502)]: 0:1(1): error: syntax error"
	if err.Error() != want {
		t.Fatalf("Error() = %q\nwant      %q", err.Error(), want)
	}
}

func TestInfoLogLeavesFrameReportToCaller(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if _, err := Run(soft.New(soft.Options{}), Options{Width: 8, Height: 8, Logger: log}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "frame") {
		t.Errorf("info log mentions the frame:\n%s", out)
	}
	if n := strings.Count(out, "display initialized"); n != 1 {
		t.Errorf("display initialized logged %d times, want 1:\n%s", n, out)
	}
}

func TestVertexInputMustBePosition(t *testing.T) {
	const vertex = `attribute vec4 aPos;
void main(void) {
   gl_Position = aPos;
}
`
	d := soft.New(soft.Options{})
	_, err := Run(d, Options{Width: 8, Height: 8, VertexShader: vertex})
	if !errors.Is(err, gpu.ErrProgramLinkFailed) {
		t.Fatalf("Run() error = %v, want ErrProgramLinkFailed", err)
	}
	var se *StepError
	if !errors.As(err, &se) || se.Op != "glLinkProgram" || !strings.Contains(se.Log, "aPos") {
		t.Fatalf("Run() error = %#v, want glLinkProgram naming aPos", err)
	}
	if n := d.CallCount("DrawArrays"); n != 0 {
		t.Errorf("DrawArrays called %d times, want 0", n)
	}
	checkLedger(t, d)

	// The same shader reading PositionName renders.
	d = soft.New(soft.Options{})
	if _, err := Run(d, Options{Width: 8, Height: 8, VertexShader: strings.ReplaceAll(vertex, "aPos", PositionName)}); err != nil {
		t.Fatalf("Run() with %s error = %v", PositionName, err)
	}
	checkLedger(t, d)
}
