package gpu

import (
	"errors"
	"fmt"
)

// Failure reasons of the render pipeline. Every pipeline step reports
// exactly one of these.
var (
	ErrDisplayUnavailable  = errors.New("display unavailable")
	ErrDisplayInitFailed   = errors.New("display initialization failed")
	ErrNoCompatibleConfig  = errors.New("no compatible configuration")
	ErrAPIBindFailed       = errors.New("rendering API bind failed")
	ErrContextCreateFailed = errors.New("context creation failed")
	ErrSurfaceCreateFailed = errors.New("surface creation failed")
	ErrMakeCurrentFailed   = errors.New("make current failed")
	ErrProgramCreateFailed = errors.New("program creation failed")
	ErrShaderCreateFailed  = errors.New("shader creation failed")
	ErrShaderCompileFailed = errors.New("shader compilation failed")
	ErrShaderAttachFailed  = errors.New("shader attach failed")
	ErrProgramLinkFailed   = errors.New("program link failed")
	ErrRenderCommandFailed = errors.New("render command failed")
	ErrPresentFailed       = errors.New("present failed")
)

// Driver loading errors.
var (
	// ErrDriverUnsupported means the driver cannot exist on this platform.
	ErrDriverUnsupported = errors.New("driver unsupported on this platform")

	// ErrDriverUnavailable means a native library the driver needs could
	// not be loaded or is missing required entry points.
	ErrDriverUnavailable = errors.New("driver library unavailable")
)

// ErrorCode is a driver error code. Platform codes live in the EGL range
// (0x3000-0x30FF), rendering codes in the GL range (0x0500-0x05FF).
type ErrorCode uint32

const (
	NoError ErrorCode = 0

	EGLSuccess           ErrorCode = 0x3000
	EGLNotInitialized    ErrorCode = 0x3001
	EGLBadAccess         ErrorCode = 0x3002
	EGLBadAlloc          ErrorCode = 0x3003
	EGLBadAttribute      ErrorCode = 0x3004
	EGLBadConfig         ErrorCode = 0x3005
	EGLBadContext        ErrorCode = 0x3006
	EGLBadCurrentSurface ErrorCode = 0x3007
	EGLBadDisplay        ErrorCode = 0x3008
	EGLBadMatch          ErrorCode = 0x3009
	EGLBadNativePixmap   ErrorCode = 0x300A
	EGLBadNativeWindow   ErrorCode = 0x300B
	EGLBadParameter      ErrorCode = 0x300C
	EGLBadSurface        ErrorCode = 0x300D
	EGLContextLost       ErrorCode = 0x300E

	GLInvalidEnum                 ErrorCode = 0x0500
	GLInvalidValue                ErrorCode = 0x0501
	GLInvalidOperation            ErrorCode = 0x0502
	GLOutOfMemory                 ErrorCode = 0x0505
	GLInvalidFramebufferOperation ErrorCode = 0x0506
)

var errorNames = map[ErrorCode]string{
	EGLSuccess:           "EGL_SUCCESS",
	EGLNotInitialized:    "EGL_NOT_INITIALIZED",
	EGLBadAccess:         "EGL_BAD_ACCESS",
	EGLBadAlloc:          "EGL_BAD_ALLOC",
	EGLBadAttribute:      "EGL_BAD_ATTRIBUTE",
	EGLBadConfig:         "EGL_BAD_CONFIG",
	EGLBadContext:        "EGL_BAD_CONTEXT",
	EGLBadCurrentSurface: "EGL_BAD_CURRENT_SURFACE",
	EGLBadDisplay:        "EGL_BAD_DISPLAY",
	EGLBadMatch:          "EGL_BAD_MATCH",
	EGLBadNativePixmap:   "EGL_BAD_NATIVE_PIXMAP",
	EGLBadNativeWindow:   "EGL_BAD_NATIVE_WINDOW",
	EGLBadParameter:      "EGL_BAD_PARAMETER",
	EGLBadSurface:        "EGL_BAD_SURFACE",
	EGLContextLost:       "EGL_CONTEXT_LOST",

	GLInvalidEnum:                 "GL_INVALID_ENUM",
	GLInvalidValue:                "GL_INVALID_VALUE",
	GLInvalidOperation:            "GL_INVALID_OPERATION",
	GLOutOfMemory:                 "GL_OUT_OF_MEMORY",
	GLInvalidFramebufferOperation: "GL_INVALID_FRAMEBUFFER_OPERATION",
}

// OK reports whether c means "no error" in either code range.
func (c ErrorCode) OK() bool {
	return c == NoError || c == EGLSuccess
}

func (c ErrorCode) String() string {
	if c == NoError {
		return "GL_NO_ERROR"
	}
	if name, ok := errorNames[c]; ok {
		return fmt.Sprintf("%s (0x%04X)", name, uint32(c))
	}
	return fmt.Sprintf("0x%04X", uint32(c))
}
