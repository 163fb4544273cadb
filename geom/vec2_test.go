package geom_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m00nl1ght-dev/terraingraph/geom"
)

func TestDirectionAxes(t *testing.T) {
	require := require.New(t)
	require.InDelta(1.0, geom.Direction(0).X, 1e-12)
	require.InDelta(0.0, geom.Direction(0).Z, 1e-12)
	require.InDelta(0.0, geom.Direction(90).X, 1e-12)
	require.InDelta(1.0, geom.Direction(90).Z, 1e-12)
	require.InDelta(-1.0, geom.Direction(180).X, 1e-12)
	require.InDelta(0.0, geom.Direction(-90).X, 1e-12)
	require.InDelta(-1.0, geom.Direction(-90).Z, 1e-12)
}

func TestNormalizeNearZero(t *testing.T) {
	v := geom.Vec2{X: 1e-7, Z: 0}
	require.Equal(t, geom.Zero, v.Normalize())
}

func TestAngleNearZeroMagnitude(t *testing.T) {
	require.Equal(t, 0.0, geom.Vec2{}.Angle(geom.Vec2{X: 1}))
}

func TestSignedAngleSign(t *testing.T) {
	a := geom.Vec2{X: 1, Z: 0}
	b := geom.Direction(45)
	require.InDelta(t, 45.0, a.SignedAngle(b), 1e-9)
	require.InDelta(t, -45.0, b.SignedAngle(a), 1e-9)
}

func TestPerp(t *testing.T) {
	v := geom.Vec2{X: 1, Z: 2}
	require.Equal(t, geom.Vec2{X: 2, Z: -1}, v.PerpCW())
	require.Equal(t, geom.Vec2{X: -2, Z: 1}, v.PerpCCW())
}

func TestTryIntersectRoundTrip(t *testing.T) {
	// geometry round-trip property, spec §8.10: intersecting the found point
	// back against the same two rays yields scalar 0 along the first ray.
	oa := geom.Vec2{X: 0, Z: 0}
	da := geom.Vec2{X: 1, Z: 0}
	ob := geom.Vec2{X: 5, Z: -5}
	db := geom.Vec2{X: 0, Z: 1}

	ix, ok := geom.TryIntersect(oa, ob, da, db, 1e-9)
	require.True(t, ok)
	require.InDelta(t, 5.0, ix.Point.X, 1e-9)
	require.InDelta(t, 0.0, ix.Point.Z, 1e-9)

	ix2, ok := geom.TryIntersect(ix.Point, ob, da, db, 1e-9)
	require.True(t, ok)
	require.InDelta(t, 0.0, ix2.ScaleA, 1e-9)
}

func TestTryIntersectParallel(t *testing.T) {
	oa := geom.Vec2{X: 0, Z: 0}
	da := geom.Vec2{X: 1, Z: 0}
	ob := geom.Vec2{X: 0, Z: 1}
	db := geom.Vec2{X: 2, Z: 0}
	_, ok := geom.TryIntersect(oa, ob, da, db, 1e-9)
	require.False(t, ok)
}

func TestNormalizeDegFolds(t *testing.T) {
	require.InDelta(t, 180.0, geom.NormalizeDeg(180), 1e-9)
	require.InDelta(t, -179.0, geom.NormalizeDeg(181), 1e-9)
	require.InDelta(t, 0.0, geom.NormalizeDeg(360), 1e-9)
	require.InDelta(t, 10.0, geom.NormalizeDeg(370), 1e-9)
}

func TestMagnitudeSanity(t *testing.T) {
	v := geom.Vec2{X: 3, Z: 4}
	require.InDelta(t, 5.0, v.Magnitude(), 1e-12)
	require.InDelta(t, math.Hypot(3, 4), v.Magnitude(), 1e-12)
}
