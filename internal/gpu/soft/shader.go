package soft

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tinyrange/offscreen/internal/gpu"
)

// The software driver only understands constant-colour shaders: a vertex
// stage that passes its position through and a fragment stage that writes a
// literal vec4 to gl_FragColor.

var (
	mainRe      = regexp.MustCompile(`void\s+main\s*\(\s*(void)?\s*\)`)
	positionRe  = regexp.MustCompile(`gl_Position\s*=\s*([^;]*);`)
	attributeRe = regexp.MustCompile(`attribute\s+(?:(?:lowp|mediump|highp)\s+)?vec[234]\s+(\w+)\s*;`)
	fragColorRe = regexp.MustCompile(`gl_FragColor\s*=\s*vec4\s*\(([^)]*)\)`)
)

type compileResult struct {
	ok    bool
	log   string
	color [4]float32

	// attrib is the vertex input gl_Position is taken from.
	attrib string
}

func compileShader(kind gpu.ShaderKind, src string) compileResult {
	if strings.TrimSpace(src) == "" {
		return compileResult{log: "0:0(0): error: empty shader source"}
	}
	if strings.Count(src, "{") != strings.Count(src, "}") {
		return compileResult{log: "0:0(0): error: unbalanced braces"}
	}
	if !mainRe.MatchString(src) {
		return compileResult{log: "0:0(0): error: missing main function"}
	}

	switch kind {
	case gpu.VertexShader:
		m := positionRe.FindStringSubmatch(src)
		if m == nil {
			return compileResult{log: "0:0(0): error: gl_Position is never written"}
		}
		for _, a := range attributeRe.FindAllStringSubmatch(src, -1) {
			if regexp.MustCompile(`\b` + a[1] + `\b`).MatchString(m[1]) {
				return compileResult{ok: true, attrib: a[1]}
			}
		}
		return compileResult{log: "0:0(0): error: gl_Position must be taken from a vertex attribute"}
	case gpu.FragmentShader:
		m := fragColorRe.FindStringSubmatch(src)
		if m == nil {
			return compileResult{log: "0:0(0): error: gl_FragColor must be assigned a constant vec4"}
		}
		color, err := parseVec4(m[1])
		if err != nil {
			return compileResult{log: fmt.Sprintf("0:0(0): error: %v", err)}
		}
		return compileResult{ok: true, color: color}
	default:
		return compileResult{log: "0:0(0): error: unsupported shader stage"}
	}
}

func parseVec4(args string) ([4]float32, error) {
	var out [4]float32
	parts := strings.Split(args, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("vec4 takes 4 components, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(p), "f"), 32)
		if err != nil {
			return out, fmt.Errorf("component %d: %q is not a constant", i, strings.TrimSpace(p))
		}
		out[i] = float32(v)
	}
	return out, nil
}
