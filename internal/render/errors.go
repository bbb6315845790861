package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyrange/offscreen/internal/gpu"
)

var (
	ErrSessionUsed       = errors.New("render session already used")
	ErrInvalidDimensions = errors.New("invalid surface dimensions")
	ErrBufferSize        = errors.New("destination buffer has the wrong size")
)

// StepError reports the pipeline step that failed. Err is one of the gpu
// failure reasons (gpu.ErrNoCompatibleConfig and so on).
type StepError struct {
	Op     string         // driver entry point that failed, e.g. "eglChooseConfig"
	Shader gpu.ShaderKind // shader stage for program build failures, 0 otherwise
	Code   gpu.ErrorCode  // driver error code reported after the failure
	Log    string         // compiler or linker info log, if any
	Err    error
}

func (e *StepError) Error() string {
	var b strings.Builder
	if e.Shader != 0 {
		fmt.Fprintf(&b, "%s shader: ", e.Shader)
	}
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Err)
	if !e.Code.OK() {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if log := strings.TrimSpace(e.Log); log != "" {
		fmt.Fprintf(&b, ": %s", log)
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
