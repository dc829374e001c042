package engine

// Matrix2D is a 2D affine map stored as [a, b, c, d, e, f]:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
//
// The viewport's world→screen map is diagonal: a and d carry the per-axis
// pixels per world unit (d negative, since screen Y grows downward) and e, f
// the screen position of the world origin.
type Matrix2D [6]float64

func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Multiply returns m·other, which applies other first.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformRect maps the four corners of r and returns their bounding box.
func (m Matrix2D) TransformRect(r Rect) Rect {
	xs, ys := [4]float64{}, [4]float64{}
	corners := [4][2]float64{
		{r.X, r.Y}, {r.X + r.Width, r.Y},
		{r.X + r.Width, r.Y + r.Height}, {r.X, r.Y + r.Height},
	}
	for i, c := range corners {
		xs[i], ys[i] = m.TransformPoint(c[0], c[1])
	}
	minX, maxX := min(xs[0], xs[1], xs[2], xs[3]), max(xs[0], xs[1], xs[2], xs[3])
	minY, maxY := min(ys[0], ys[1], ys[2], ys[3]), max(ys[0], ys[1], ys[2], ys[3])
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Invert returns the inverse map, or Identity when m is singular.
func (m Matrix2D) Invert() Matrix2D {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 {
		return Identity()
	}
	k := 1 / det
	return Matrix2D{
		m[3] * k, -m[1] * k,
		-m[2] * k, m[0] * k,
		(m[2]*m[5] - m[3]*m[4]) * k,
		(m[1]*m[4] - m[0]*m[5]) * k,
	}
}

// ToSlice is the JSON form sent to clients, usable as Canvas2D setTransform
// arguments.
func (m Matrix2D) ToSlice() []float64 {
	return m[:]
}

// Rect is an axis-aligned rectangle. Y grows in the same direction as the
// space it lives in, so a world Rect's Y is its lowest edge.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
