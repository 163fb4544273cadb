// Package tracer implements the path tracer: the deterministic attempt loop
// that rasterizes a pathgraph.Path onto six equally sized 2D grids, detects
// collisions between path segments as it rasterizes, and rewrites the graph
// on collision by merging two segments with a tangent arc-and-duct or by
// tapering the losing segment to a stub (spec.md §4.5–§4.9).
//
// Complexity:
//
//   - Time:  O(F) per attempt, where F is the total number of advance steps
//     across all segments; each step rasterizes an O(W) cell neighborhood,
//     where W is the path's half-width in cells. Collision recovery adds a
//     constant number of extra segments (duct + arc) per resolved collision.
//   - Space: O(outer^2) for the six grids, reused across attempts via Clear.
//
// Errors:
//
//   - ErrInvalidConfig        a Tracer was constructed with inconsistent margins.
//   - ErrFrameBudgetExceeded  the MaxTraceFrames budget (spec.md §5) was exceeded;
//     this is a fatal, non-recoverable condition, unlike ordinary collisions.
package tracer

import (
	"errors"

	"github.com/m00nl1ght-dev/terraingraph/geom"
)

// Sentinel errors returned by the tracer package.
var (
	// ErrInvalidConfig indicates a Tracer was constructed with
	// trace_outer_margin < trace_inner_margin (negative sizes and margins are
	// clamped to zero first, not rejected).
	ErrInvalidConfig = errors.New("tracer: invalid tracer configuration")

	// ErrFrameBudgetExceeded indicates a single Trace call advanced more than
	// MaxTraceFrames times. This is a programmer-error-class fatal condition
	// (spec.md §5, §7): the grids are left in a partial, invalid state.
	ErrFrameBudgetExceeded = errors.New("tracer: frame budget exceeded")
)

// MaxTraceFrames bounds the total number of advance steps across every
// segment within a single Trace call (spec.md §5).
const MaxTraceFrames = 1_000_000

// radialThreshold is the |delta angle| (in degrees) at or above which a step
// is treated as a radial (arc) advance rather than a linear one (spec.md §4.5
// item 5).
const radialThreshold = 0.5

// DebugSink receives human-readable progress messages from the tracer. The
// default sink, used when a Tracer is constructed without one, discards every
// message. This is the sole process-wide injectable setting the core exposes
// (spec.md §6, §9): everything else is passed explicitly through Trace's
// arguments.
type DebugSink interface {
	Debugf(format string, args ...any)
}

// noopSink is DebugSink's default, silent implementation.
type noopSink struct{}

func (noopSink) Debugf(string, ...any) {}

// LocalFactors softens the per-step local grid multipliers near branching
// junctions (spec.md §4.4). Scalar is in [0,1]; 1 fully applies WidthMul etc.,
// 0 suppresses them entirely (scaleAround collapses to the neutral factor 1).
type LocalFactors struct {
	WidthMul   float64
	SpeedMul   float64
	DensityMul float64
	Scalar     float64 // in [0,1]
}

// identityFactors is the neutral LocalFactors: every multiplier is 1 and
// Scalar is 0, so scaleAround(v, v, 0) == v for width/speed/density all equal
// to the unmodified base value.
var identityFactors = LocalFactors{WidthMul: 1, SpeedMul: 1, DensityMul: 1, Scalar: 0}

// scaleAround implements spec.md §4.4's scaleAround(v, m, s) = (v-m)*s + m.
func scaleAround(v, m, s float64) float64 {
	return (v-m)*s + m
}

// WidthEff, SpeedEff, DensityEff apply this LocalFactors to a base scalar via
// scaleAround(factor, 1, Scalar), per spec.md §4.4.
func (f LocalFactors) WidthEff(width float64) float64 {
	return width * scaleAround(f.WidthMul, 1, f.Scalar)
}

func (f LocalFactors) SpeedEff(speed float64) float64 {
	return speed * scaleAround(f.SpeedMul, 1, f.Scalar)
}

func (f LocalFactors) DensityEff(density float64) float64 {
	return density * scaleAround(f.DensityMul, 1, f.Scalar)
}

// TraceFrame is an immutable kinematic snapshot at one advance step
// (spec.md §4.4).
type TraceFrame struct {
	Pos    geom.Vec2
	Normal geom.Vec2
	Angle  float64 // degrees

	Width   float64
	Speed   float64
	Density float64
	Value   float64
	Offset  float64
	Dist    float64 // signed; negative during the tail margin

	Factors LocalFactors
}

// WidthEff, SpeedEff, DensityEff return this frame's effective width/speed/
// density after applying its LocalFactors.
func (f TraceFrame) WidthEff() float64   { return f.Factors.WidthEff(f.Width) }
func (f TraceFrame) SpeedEff() float64   { return f.Factors.SpeedEff(f.Speed) }
func (f TraceFrame) DensityEff() float64 { return f.Factors.DensityEff(f.Density) }
