// Package gridfn provides the polymorphic scalar-field abstraction the path
// tracer samples for "follow", "swerve", and density/width/speed modulation
// grids: a minimal value_at(x,z) contract plus a handful of combinators
// sufficient to compose cached arrays, coordinate transforms, and linear
// blends (spec.md §4.2). It intentionally does not provide equality or
// stringification beyond what Lerp needs to short-circuit on a nil operand.
package gridfn

import "math"

// Sampler is any scalar field over the (x,z) plane.
type Sampler interface {
	// ValueAt samples the field at the given world-space coordinates.
	ValueAt(x, z float64) float64
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(x, z float64) float64

// ValueAt implements Sampler.
func (f SamplerFunc) ValueAt(x, z float64) float64 { return f(x, z) }

// cache is a nearest-cell lookup over a rectangular array, returning a
// fallback value for coordinates outside the array bounds.
type cache struct {
	data     [][]float64 // data[x][z]
	fallback float64
}

// NewCache returns a Sampler backed by a 2D array, indexed by rounding (x,z)
// to the nearest cell. Coordinates that fall outside the array bounds sample
// fallback instead.
func NewCache(data [][]float64, fallback float64) Sampler {
	return &cache{data: data, fallback: fallback}
}

// ValueAt implements Sampler.
func (c *cache) ValueAt(x, z float64) float64 {
	ix := int(math.Round(x))
	iz := int(math.Round(z))
	if ix < 0 || ix >= len(c.data) {
		return c.fallback
	}
	row := c.data[ix]
	if iz < 0 || iz >= len(row) {
		return c.fallback
	}
	return row[iz]
}

// transform offsets and rescales the query point before delegating to an
// inner Sampler: inner(x*scaleX - translateX, z*scaleZ - translateZ).
type transform struct {
	inner                  Sampler
	translateX, translateZ float64
	scaleX, scaleZ         float64
}

// NewTransform wraps inner so that queries are scaled then translated before
// sampling. No default is applied to scaleX and scaleZ: a zero scale
// collapses that axis, so callers that want no scaling pass 1.
func NewTransform(inner Sampler, translateX, translateZ, scaleX, scaleZ float64) Sampler {
	return &transform{inner: inner, translateX: translateX, translateZ: translateZ, scaleX: scaleX, scaleZ: scaleZ}
}

// ValueAt implements Sampler.
func (t *transform) ValueAt(x, z float64) float64 {
	return t.inner.ValueAt(x*t.scaleX-t.translateX, z*t.scaleZ-t.translateZ)
}

// scaleWithBias rescales an inner sampler's output: inner*scale + bias.
type scaleWithBias struct {
	inner       Sampler
	scale, bias float64
}

// NewScaleWithBias wraps inner so that every sampled value is scaled and
// biased: inner(x,z)*scale + bias.
func NewScaleWithBias(inner Sampler, scale, bias float64) Sampler {
	return &scaleWithBias{inner: inner, scale: scale, bias: bias}
}

// ValueAt implements Sampler.
func (s *scaleWithBias) ValueAt(x, z float64) float64 {
	return s.inner.ValueAt(x, z)*s.scale + s.bias
}

// lerp linearly blends two samplers by a fixed weight t, with nil-tolerant
// short-circuiting so that an absent grid contributes nothing to the blend.
type lerp struct {
	a, b Sampler
	t    float64
}

// LerpOf returns a Sampler equivalent to `a when t<=0 or b==nil; b when t>=1 or
// a==nil; else a + (b-a)*t`. This is the merge rule TraceParams uses to combine
// two optional grid references (spec.md §3.1, §4.2): when one side of a merge
// has no grid at all, the other side's grid is used unconditionally regardless
// of t, rather than being scaled down.
func LerpOf(a, b Sampler, t float64) Sampler {
	if t <= 0 || b == nil {
		return a
	}
	if t >= 1 || a == nil {
		return b
	}
	return &lerp{a: a, b: b, t: t}
}

// ValueAt implements Sampler.
func (l *lerp) ValueAt(x, z float64) float64 {
	va := l.a.ValueAt(x, z)
	vb := l.b.ValueAt(x, z)
	return va + (vb-va)*l.t
}

// rotate samples inner at the query point rotated about a pivot by angleDeg
// (under the package-wide positive-clockwise convention documented in geom).
type rotate struct {
	inner          Sampler
	pivotX, pivotZ float64
	angleDeg       float64
}

// NewRotate wraps inner so that a query at (x,z) is first rotated about
// (pivotX,pivotZ) by angleDeg before sampling inner.
func NewRotate(inner Sampler, pivotX, pivotZ, angleDeg float64) Sampler {
	return &rotate{inner: inner, pivotX: pivotX, pivotZ: pivotZ, angleDeg: angleDeg}
}

// ValueAt implements Sampler.
func (r *rotate) ValueAt(x, z float64) float64 {
	rx, rz := Rotate(x, z, r.pivotX, r.pivotZ, r.angleDeg)
	return r.inner.ValueAt(rx, rz)
}

// Rotate rotates the point (x,z) about (px,pz) by angleDeg, using the same
// rotation sense as geom.Direction (Direction(90) == (0,1)), and returns the
// rotated point.
func Rotate(x, z, px, pz, angleDeg float64) (float64, float64) {
	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dz := x-px, z-pz
	rx := dx*cos - dz*sin
	rz := dx*sin + dz*cos
	return rx + px, rz + pz
}
