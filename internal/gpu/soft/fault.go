package soft

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// Fault makes one driver entry point fail the way a real driver would.
type Fault int

const (
	NoFault Fault = iota
	FailOpenDisplay
	FailInitialize
	FailChooseConfig
	FailBindAPI
	FailCreateContext
	FailCreateSurface
	FailMakeCurrent
	FailCreateProgram
	FailCreateVertexShader
	FailCreateFragmentShader
	FailCompileVertexShader
	FailCompileFragmentShader
	FailAttachVertexShader
	FailAttachFragmentShader
	FailLinkProgram
	FailDraw
	FailPresent
	FailReadPixels
)

var faultNames = map[Fault]string{
	NoFault:                   "none",
	FailOpenDisplay:           "open-display",
	FailInitialize:            "initialize",
	FailChooseConfig:          "choose-config",
	FailBindAPI:               "bind-api",
	FailCreateContext:         "create-context",
	FailCreateSurface:         "create-surface",
	FailMakeCurrent:           "make-current",
	FailCreateProgram:         "create-program",
	FailCreateVertexShader:    "create-vertex-shader",
	FailCreateFragmentShader:  "create-fragment-shader",
	FailCompileVertexShader:   "compile-vertex-shader",
	FailCompileFragmentShader: "compile-fragment-shader",
	FailAttachVertexShader:    "attach-vertex-shader",
	FailAttachFragmentShader:  "attach-fragment-shader",
	FailLinkProgram:           "link-program",
	FailDraw:                  "draw",
	FailPresent:               "present",
	FailReadPixels:            "read-pixels",
}

func (f Fault) String() string {
	if name, ok := faultNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(f))
}

// ParseFault returns the Fault named s, as printed by Fault.String.
func ParseFault(s string) (Fault, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return NoFault, nil
	}
	for f, name := range faultNames {
		if name == s {
			return f, nil
		}
	}
	return NoFault, fmt.Errorf("unknown fault %q (valid: %s)", s, strings.Join(FaultNames(), ", "))
}

// FaultNames lists every fault name in sorted order.
func FaultNames() []string {
	names := make([]string, 0, len(faultNames))
	for _, name := range faultNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func createShaderFault(kind gpu.ShaderKind) Fault {
	if kind == gpu.VertexShader {
		return FailCreateVertexShader
	}
	return FailCreateFragmentShader
}

func compileFault(kind gpu.ShaderKind) Fault {
	if kind == gpu.VertexShader {
		return FailCompileVertexShader
	}
	return FailCompileFragmentShader
}

func attachFault(kind gpu.ShaderKind) Fault {
	if kind == gpu.VertexShader {
		return FailAttachVertexShader
	}
	return FailAttachFragmentShader
}
