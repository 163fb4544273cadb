// Package geom provides the 2D double-precision vector primitives used
// throughout terraingraph: the path graph's positions, the tracer's kinematic
// frames, and the grid kernels' sample offsets all share this one type.
//
// Convention:
//
//   - Angles are in degrees. A positive angle rotates CLOCKWISE in (x,z) space.
//     Direction(0) == (1,0), Direction(90) == (0,1), Direction(-90) == (0,-1).
//     Every function in this package and in the tracer package is consistent
//     with this convention; do not mix in a counter-clockwise angle anywhere.
//   - Equality and normalization use a fixed epsilon, not caller-supplied
//     tolerances, because the tracer's determinism property (spec §8.3) requires
//     every run to make the exact same near-zero decisions.
package geom

import "math"

// EqEpsilon is the tolerance used by Vec2.Equal.
const EqEpsilon = 1e-10

// normalizeEpsilon is the minimum magnitude below which Normalize returns the
// zero vector instead of dividing by a near-zero length.
const normalizeEpsilon = 1e-5

// Vec2 is a 2D vector (or point) in the (x,z) plane used by the path tracer.
type Vec2 struct {
	X, Z float64
}

// Zero is the additive identity.
var Zero = Vec2{}

// Add returns a+b.
func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Z + b.Z} }

// Sub returns a-b.
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Z - b.Z} }

// Scale returns a*s.
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Z * s} }

// Neg returns -a.
func (a Vec2) Neg() Vec2 { return Vec2{-a.X, -a.Z} }

// Equal reports whether a and b are within EqEpsilon of each other componentwise.
func (a Vec2) Equal(b Vec2) bool {
	return math.Abs(a.X-b.X) <= EqEpsilon && math.Abs(a.Z-b.Z) <= EqEpsilon
}

// Magnitude returns |a|.
func (a Vec2) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Z*a.Z)
}

// Normalize returns a/|a|, or the zero vector if |a| < normalizeEpsilon.
func (a Vec2) Normalize() Vec2 {
	m := a.Magnitude()
	if m < normalizeEpsilon {
		return Zero
	}
	return a.Scale(1 / m)
}

// PerpCW returns a rotated 90° clockwise: (x,z) -> (z,-x).
func (a Vec2) PerpCW() Vec2 { return Vec2{a.Z, -a.X} }

// PerpCCW returns a rotated 90° counter-clockwise: (x,z) -> (-z,x).
func (a Vec2) PerpCCW() Vec2 { return Vec2{-a.Z, a.X} }

// Dot returns a·b.
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Z*b.Z }

// PerpDot returns a's perpendicular dot with b: a.x*b.z - a.z*b.x.
// This equals |a||b|sin(theta) for the angle from a to b under our
// clockwise-positive convention (positive when b is clockwise of a).
func (a Vec2) PerpDot(b Vec2) float64 { return a.X*b.Z - a.Z*b.X }

// Angle returns the unsigned angle between a and b in degrees, in [0,180].
// Returns 0 if either vector's magnitude is near zero.
func (a Vec2) Angle(b Vec2) float64 {
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma < normalizeEpsilon || mb < normalizeEpsilon {
		return 0
	}
	cos := a.Dot(b) / (ma * mb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// SignedAngle returns the angle between a and b in degrees, signed so that a
// positive result means b is clockwise of a (consistent with the package's
// positive-clockwise convention), in [-180,180].
func (a Vec2) SignedAngle(b Vec2) float64 {
	angle := a.Angle(b)
	if a.PerpDot(b) < 0 {
		return -angle
	}
	return angle
}

// Direction returns the unit vector for angleDeg under the positive-clockwise
// convention: Direction(0) = (1,0), Direction(90) = (0,1), Direction(-90) = (0,-1),
// Direction(180) = (-1,0).
func Direction(angleDeg float64) Vec2 {
	switch normalizeDeg(angleDeg) {
	case 0:
		return Vec2{1, 0}
	case 90:
		return Vec2{0, 1}
	case 180, -180:
		return Vec2{-1, 0}
	case -90:
		return Vec2{0, -1}
	}
	rad := angleDeg * math.Pi / 180
	return Vec2{math.Cos(rad), math.Sin(rad)}
}

// normalizeDeg folds angleDeg into (-180,180] rounded to the nearest integer
// only for the purpose of matching the exact-axis cases in Direction; it is
// not used for general angle arithmetic (see NormalizeDeg for that).
func normalizeDeg(angleDeg float64) float64 {
	n := NormalizeDeg(angleDeg)
	r := math.Round(n)
	if math.Abs(n-r) < 1e-9 {
		return r
	}
	return n
}

// NormalizeDeg folds angleDeg into (-180,180].
func NormalizeDeg(angleDeg float64) float64 {
	a := math.Mod(angleDeg, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}

// Intersection is the result of a successful TryIntersect: the intersection
// point and the scalar multiple of da at which it occurs along ray a.
type Intersection struct {
	Point Vec2
	ScaleA float64
}

// TryIntersect finds the intersection of two rays a=(oa,da) and b=(ob,db), in the
// form p = oa + s*da, and reports s via Intersection.ScaleA. Returns false if the
// rays are parallel (|perpDot(db,da)| <= eps).
//
// The sign convention matches spec.md §4.1 exactly: p := perpDot(db,da); s :=
// perpDot(db, ob-oa) / p. Implementations that swap operand order will silently
// flip the sign of degenerate/near-parallel results, so this order must not be
// "simplified".
func TryIntersect(oa, ob, da, db Vec2, eps float64) (Intersection, bool) {
	p := db.PerpDot(da)
	if math.Abs(p) <= eps {
		return Intersection{}, false
	}
	s := db.PerpDot(ob.Sub(oa)) / p
	return Intersection{Point: oa.Add(da.Scale(s)), ScaleA: s}, true
}
