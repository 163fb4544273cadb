package tracer

import (
	"math"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

// originFrame returns the TraceFrame an Origin seeds its root segments with
// (spec.md §4.4): pos at the origin's position, normal derived from its
// angle, width/speed/density carried from the origin, identity factors.
func originFrame(o *pathgraph.Origin) TraceFrame {
	return TraceFrame{
		Pos:     o.Position,
		Normal:  geom.Direction(o.Angle),
		Angle:   o.Angle,
		Width:   o.Width,
		Speed:   o.Speed,
		Density: o.Density,
		Value:   o.Value,
		Offset:  0,
		Dist:    0,
		Factors: identityFactors,
	}
}

// initialFrame computes the frame a segment begins tracing from, given its
// parent's final frame p, the segment s, and the tail-margin offset d0 <= 0
// (spec.md §4.4's "Initial frame for a segment").
func initialFrame(p TraceFrame, s *pathgraph.Segment, d0 float64) TraceFrame {
	angle := geom.NormalizeDeg(p.Angle + s.RelAngle)
	normal := geom.Direction(-angle)

	width := p.Width*s.RelWidth - d0*s.Params.WidthLoss
	speed := p.Speed*s.RelSpeed - d0*s.Params.SpeedLoss
	density := p.Density * s.RelDensity

	var valueSpeedTerm float64
	if d0 < 0 {
		valueSpeedTerm = speed
	} else {
		valueSpeedTerm = p.Speed
	}
	value := p.Value + s.RelValue + d0*valueSpeedTerm

	offset := p.Offset + s.RelOffset - s.RelShift*p.WidthEff()*p.DensityEff()

	pos := p.Pos.
		Add(p.Normal.Scale(s.RelPosition)).
		Add(p.PerpCCW().Scale(s.RelShift * p.WidthEff())).
		Add(normal.Scale(d0))

	return TraceFrame{
		Pos:     pos,
		Normal:  normal,
		Angle:   angle,
		Width:   width,
		Speed:   speed,
		Density: density,
		Value:   value,
		Offset:  offset,
		Dist:    d0,
		Factors: identityFactors,
	}
}

// PerpCCW is a convenience wrapper over the frame's normal; it exists so the
// frame-construction formulas above read the same shape as spec.md §4.4
// ("p.perpCCW").
func (f TraceFrame) PerpCCW() geom.Vec2 { return f.Normal.PerpCCW() }

// mergedFrame combines the final frames of two or more parents into the base
// frame a multi-parent branch is traced from (spec.md §4.4's "Merged frame").
func mergedFrame(parents []TraceFrame) TraceFrame {
	n := float64(len(parents))
	var width, speed, value, density float64
	var posAccum, normalAccum geom.Vec2
	var offsetAccum, weightSum float64

	for _, p := range parents {
		width += p.Width
		speed += p.Speed
		value += p.Value
		density += p.Density
		normalAccum = normalAccum.Add(p.Normal)
	}
	width /= n
	speed /= n
	value /= n
	density /= n
	meanWidth := width

	for _, p := range parents {
		w := p.Width
		if meanWidth != 0 {
			w = p.Width / meanWidth
		}
		posAccum = posAccum.Add(p.Pos.Scale(w))
		offsetAccum += p.Offset * w
		weightSum += w
	}
	pos := posAccum
	offset := offsetAccum
	if weightSum != 0 {
		pos = posAccum.Scale(1 / weightSum)
		offset = offsetAccum / weightSum
	}

	normalMean := normalAccum.Scale(1 / n)
	angle := -geom.Vec2{X: 1, Z: 0}.SignedAngle(normalMean)

	return TraceFrame{
		Pos:     pos,
		Normal:  normalMean.Normalize(),
		Angle:   angle,
		Width:   width,
		Speed:   speed,
		Density: density,
		Value:   value,
		Offset:  offset,
		Dist:    0,
		Factors: identityFactors,
	}
}

// advanceInput bundles the per-segment context advance needs beyond the
// current frame: its trace parameters, length, per-edge stability, and the
// grid-space margin offset to subtract before sampling grid functions.
type advanceInput struct {
	Params        pathgraph.TraceParams
	Length        float64
	StabilityHead float64
	StabilityTail float64
	MarginOffset  geom.Vec2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerpScalar(a, b, t float64) float64 { return a + (b-a)*t }

// advance implements spec.md §4.4's Advance: it moves the frame by deltaD
// along its normal (or along a computed arc pivot when radial is true),
// rotates by deltaTheta, decrements width/speed/density by their configured
// losses, accumulates value/offset, and rebuilds LocalFactors from the
// segment's grids and the junction-stability blend.
func advance(f TraceFrame, in advanceInput, deltaD, deltaTheta, extraValue, extraOffset float64, radial bool) TraceFrame {
	angle2 := geom.NormalizeDeg(f.Angle + deltaTheta)
	normal2 := geom.Direction(-angle2)

	var pos2 geom.Vec2
	if radial {
		pivotOffset := 180 * deltaD / (math.Pi * -deltaTheta)
		pivot := f.Pos.Add(f.PerpCCW().Scale(pivotOffset))
		pos2 = pivot.Sub(normal2.PerpCCW().Scale(pivotOffset))
	} else {
		pos2 = f.Pos.Add(f.Normal.Scale(deltaD))
	}

	width2 := f.Width - deltaD*in.Params.WidthLoss
	speed2 := f.Speed - deltaD*in.Params.SpeedLoss
	density2 := f.Density - deltaD*in.Params.DensityLoss

	var speedTerm float64
	if f.Dist >= 0 {
		speedTerm = f.SpeedEff()
	} else {
		speedTerm = f.Speed
	}
	value2 := f.Value + extraValue + deltaD*speedTerm
	offset2 := f.Offset + extraOffset
	dist2 := f.Dist + deltaD

	factors2 := rebuildLocalFactors(in, pos2, dist2)

	return TraceFrame{
		Pos:     pos2,
		Normal:  normal2,
		Angle:   angle2,
		Width:   width2,
		Speed:   speed2,
		Density: density2,
		Value:   value2,
		Offset:  offset2,
		Dist:    dist2,
		Factors: factors2,
	}
}

// rebuildLocalFactors samples the segment's width/speed/density grids at the
// inner-grid-space position (pos - margin) and derives the junction-stability
// Scalar from dist and the segment's head/tail stability (spec.md §4.4).
func rebuildLocalFactors(in advanceInput, pos geom.Vec2, dist float64) LocalFactors {
	gx, gz := pos.X-in.MarginOffset.X, pos.Z-in.MarginOffset.Z

	widthMul, speedMul, densityMul := 1.0, 1.0, 1.0
	if in.Params.Width != nil {
		widthMul = in.Params.Width.ValueAt(gx, gz)
	}
	if in.Params.Speed != nil {
		speedMul = in.Params.Speed.ValueAt(gx, gz)
	}
	if in.Params.Density != nil {
		densityMul = in.Params.Density.ValueAt(gx, gz)
	}

	progress := 0.0
	if in.Length > 0 {
		progress = clamp01(dist / in.Length)
	}
	stability := clamp01(lerpScalar(in.StabilityTail, in.StabilityHead, progress))
	scalar := 1 - stability

	return LocalFactors{WidthMul: widthMul, SpeedMul: speedMul, DensityMul: densityMul, Scalar: scalar}
}
