package render

// PositionAttrib is the attribute slot the vertex position is bound to.
const PositionAttrib = 0

// PositionName is the vertex shader input bound to PositionAttrib.
const PositionName = "vPosition"

const DefaultVertexShader = `attribute vec4 vPosition;

void main(void) {
   gl_Position = vPosition;
}
`

const DefaultFragmentShader = `precision mediump float;

void main(void) {
   gl_FragColor = vec4(1.0, 0.0, 0.0, 1.0);
}
`

// triangle holds three XYZ vertices in normalized device coordinates.
var triangle = [9]float32{
	0.0, 0.5, 0.0,
	-0.5, -0.5, 0.0,
	0.5, -0.5, 0.0,
}
