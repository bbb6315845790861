package render

import (
	"log/slog"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// buildProgram compiles both shader stages, attaches them to a new program
// and links it. Compile failures stop the build before linking.
func (s *Session) buildProgram() error {
	f := s.drv

	s.program = f.CreateProgram()
	if s.program == gpu.NoProgram {
		return &StepError{Op: "glCreateProgram", Code: f.GetError(), Err: gpu.ErrProgramCreateFailed}
	}
	s.advance(StageProgramCreated)

	if err := s.attachStage(gpu.VertexShader, s.opts.VertexShader); err != nil {
		return err
	}
	if err := s.attachStage(gpu.FragmentShader, s.opts.FragmentShader); err != nil {
		return err
	}

	f.BindAttribLocation(s.program, PositionAttrib, PositionName)
	if code := f.GetError(); !code.OK() {
		return &StepError{Op: "glBindAttribLocation", Code: code, Err: gpu.ErrProgramLinkFailed}
	}

	f.LinkProgram(s.program)
	code := f.GetError()
	if !code.OK() || !f.ProgramLinkStatus(s.program) {
		return &StepError{Op: "glLinkProgram", Code: code, Log: f.ProgramInfoLog(s.program), Err: gpu.ErrProgramLinkFailed}
	}
	s.log.Debug("shader program linked", slog.Int("program", int(s.program)))
	return nil
}

// attachStage creates, compiles and attaches one shader stage. Once
// attached, the shader is flagged for deletion right away: the driver keeps
// it alive until the program is deleted. A shader that never got attached
// is deleted before returning the error.
func (s *Session) attachStage(kind gpu.ShaderKind, src string) error {
	f := s.drv

	sh := f.CreateShader(kind)
	if sh == gpu.NoShader {
		return &StepError{Op: "glCreateShader", Shader: kind, Code: f.GetError(), Err: gpu.ErrShaderCreateFailed}
	}

	f.ShaderSource(sh, src)
	f.CompileShader(sh)
	code := f.GetError()
	if !code.OK() || !f.ShaderCompileStatus(sh) {
		log := f.ShaderInfoLog(sh)
		s.deleteShader(sh)
		return &StepError{Op: "glCompileShader", Shader: kind, Code: code, Log: log, Err: gpu.ErrShaderCompileFailed}
	}

	f.AttachShader(s.program, sh)
	if code := f.GetError(); !code.OK() {
		s.deleteShader(sh)
		return &StepError{Op: "glAttachShader", Shader: kind, Code: code, Err: gpu.ErrShaderAttachFailed}
	}

	s.deleteShader(sh)
	s.log.Debug("shader attached", slog.String("stage", kind.String()))
	return nil
}

// deleteShader releases sh and clears the error flag so a failed deletion
// cannot be blamed on the next command.
func (s *Session) deleteShader(sh gpu.Shader) {
	s.drv.DeleteShader(sh)
	if code := s.drv.GetError(); !code.OK() {
		s.log.Warn("delete shader failed", slog.Int("shader", int(sh)), slog.String("code", code.String()))
	}
}
