package soft

import "math"

type point struct{ x, y float32 }

func edge(a, b, p point) float32 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

// quantize converts a normalized colour to RGBA8.
func quantize(c [4]float32) [4]byte {
	var out [4]byte
	for i, v := range c {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[i] = byte(v*255 + 0.5)
	}
	return out
}

// fill sets every pixel of the surface to c.
func (s *surface) fill(c [4]byte) {
	for i := 0; i < len(s.pix); i += 4 {
		copy(s.pix[i:i+4], c[:])
	}
}

// rasterize draws one flat-shaded triangle given in normalized device
// coordinates. Rows are stored bottom row first, matching ReadPixels.
func (s *surface) rasterize(vp [4]int, tri [3][3]float32, c [4]byte) {
	var v [3]point
	for i := range tri {
		v[i] = point{
			x: float32(vp[0]) + (tri[i][0]+1)*float32(vp[2])/2,
			y: float32(vp[1]) + (tri[i][1]+1)*float32(vp[3])/2,
		}
	}

	area := edge(v[0], v[1], v[2])
	if area == 0 {
		return
	}

	minX := int(math.Floor(float64(min(v[0].x, v[1].x, v[2].x))))
	maxX := int(math.Ceil(float64(max(v[0].x, v[1].x, v[2].x))))
	minY := int(math.Floor(float64(min(v[0].y, v[1].y, v[2].y))))
	maxY := int(math.Ceil(float64(max(v[0].y, v[1].y, v[2].y))))

	// Clip to the viewport and the surface.
	minX = max(minX, vp[0], 0)
	minY = max(minY, vp[1], 0)
	maxX = min(maxX, vp[0]+vp[2], s.width)
	maxY = min(maxY, vp[1]+vp[3], s.height)

	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			p := point{float32(x) + 0.5, float32(y) + 0.5}
			w0 := edge(v[1], v[2], p)
			w1 := edge(v[2], v[0], p)
			w2 := edge(v[0], v[1], p)
			if area < 0 {
				w0, w1, w2 = -w0, -w1, -w2
			}
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			off := (y*s.width + x) * 4
			copy(s.pix[off:off+4], c[:])
		}
	}
}
