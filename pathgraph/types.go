// Package pathgraph implements the node-graph data model the path tracer
// rasterizes and rewrites: an append-only arena of Origins and Segments
// connected by symmetric parent/branch edges (spec.md §3.1).
//
// A Path is owned exclusively by whichever code is mutating it — it is never
// safe to share between goroutines concurrently (unlike the teacher's
// core.Graph, which takes a locking hit because it is a general-purpose
// library type; a Path is always owned by exactly one in-flight trace, per
// spec.md §5).
//
// Errors:
//
//   - ErrDiscardedPath   any mutation attempted through Path.Empty.
//   - ErrUnknownOrigin   an OriginID is out of range for this Path.
//   - ErrUnknownSegment  a SegmentID is out of range for this Path.
//   - ErrCycle           an Attach would introduce a cycle into the DAG.
package pathgraph

import (
	"errors"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/gridfn"
)

// Sentinel errors returned by pathgraph operations.
var (
	// ErrDiscardedPath indicates a mutation was attempted on Path.Empty, the
	// shared discarded-path sentinel.
	ErrDiscardedPath = errors.New("pathgraph: cannot mutate the discarded path")

	// ErrUnknownOrigin indicates an OriginID has no corresponding Origin.
	ErrUnknownOrigin = errors.New("pathgraph: unknown origin id")

	// ErrUnknownSegment indicates a SegmentID has no corresponding Segment.
	ErrUnknownSegment = errors.New("pathgraph: unknown segment id")

	// ErrCycle indicates an Attach call would introduce a cycle.
	ErrCycle = errors.New("pathgraph: attach would introduce a cycle")
)

// OriginID identifies an Origin within its owning Path's arena.
type OriginID int

// SegmentID identifies a Segment within its owning Path's arena.
type SegmentID int

// NoID is the sentinel "absent" value for both OriginID and SegmentID.
const NoID = -1

// Origin is a root anchor of one or more path branches (spec.md §3.1).
type Origin struct {
	Position geom.Vec2
	Value    float64
	Angle    float64 // degrees
	Width    float64
	Speed    float64
	Density  float64
	Branches []SegmentID // ordered set, no duplicates
}

// NewOrigin returns an Origin at position with the given angle and the
// spec-mandated defaults Width=Speed=Density=1, Value=0.
func NewOrigin(position geom.Vec2, angleDeg float64) Origin {
	return Origin{Position: position, Angle: angleDeg, Width: 1, Speed: 1, Density: 1}
}

// SmoothDelta describes a value/offset adjustment distributed across the
// steps of a segment using the linear-tent weighting of spec.md §4.5 item 4.
type SmoothDelta struct {
	ValueDelta   float64
	OffsetDelta  float64
	StepsTotal   int // <=0 means "apply the full delta every step"
	StepsStart   int // step index (within the segment) for the first step of the window
	StepsPadding int // shrinks StepsTotal symmetrically, producing flat plateaus
}

// TraceParams configures how a Segment is traced (spec.md §3.1). It is a
// value type; equality should be done field-wise by callers that need it
// (grid-function fields are only comparable by reference identity, which
// Go's == already provides for interface values backed by pointers).
type TraceParams struct {
	StepSize        float64
	WidthLoss       float64
	SpeedLoss       float64
	DensityLoss     float64
	AngleTenacity   float64 // in [0,1)
	AvoidOverlap    float64 // >=0
	ArcRetraceRange float64 // >=0
	ArcStableRange  float64 // >=0

	AbsFollow gridfn.Sampler
	RelFollow gridfn.Sampler
	Swerve    gridfn.Sampler
	Width     gridfn.Sampler
	Speed     gridfn.Sampler
	Density   gridfn.Sampler
}

// MergeTraceParams linearly interpolates the scalar fields of a and b by t
// and merges the grid-function fields with gridfn.LerpOf, per spec.md §3.1.
func MergeTraceParams(a, b TraceParams, t float64) TraceParams {
	lerp := func(x, y float64) float64 { return x + (y-x)*t }
	return TraceParams{
		StepSize:        lerp(a.StepSize, b.StepSize),
		WidthLoss:       lerp(a.WidthLoss, b.WidthLoss),
		SpeedLoss:       lerp(a.SpeedLoss, b.SpeedLoss),
		DensityLoss:     lerp(a.DensityLoss, b.DensityLoss),
		AngleTenacity:   lerp(a.AngleTenacity, b.AngleTenacity),
		AvoidOverlap:    lerp(a.AvoidOverlap, b.AvoidOverlap),
		ArcRetraceRange: lerp(a.ArcRetraceRange, b.ArcRetraceRange),
		ArcStableRange:  lerp(a.ArcStableRange, b.ArcStableRange),
		AbsFollow:       gridfn.LerpOf(a.AbsFollow, b.AbsFollow, t),
		RelFollow:       gridfn.LerpOf(a.RelFollow, b.RelFollow, t),
		Swerve:          gridfn.LerpOf(a.Swerve, b.Swerve, t),
		Width:           gridfn.LerpOf(a.Width, b.Width, t),
		Speed:           gridfn.LerpOf(a.Speed, b.Speed, t),
		Density:         gridfn.LerpOf(a.Density, b.Density, t),
	}
}

// Segment is one edge of the path graph: a length of path with
// parent-relative increments applied at its tail, trace parameters, and
// DAG edges to parent and branch segments (spec.md §3.1).
type Segment struct {
	Length float64 // >=0

	RelAngle    float64 // degrees
	RelWidth    float64
	RelSpeed    float64
	RelOffset   float64
	RelValue    float64
	RelShift    float64
	RelDensity  float64
	RelPosition float64

	Params TraceParams

	Parents  []SegmentID // ordered set, no duplicates
	Branches []SegmentID // ordered set, no duplicates

	OriginParent OriginID // NoID unless this segment is a branch of an Origin

	Smooth *SmoothDelta

	StabilityAtHead float64 // in [0,1]
	StabilityAtTail float64 // in [0,1]
}

// NewSegment returns a Segment of the given length with the spec-mandated
// defaults RelWidth=RelSpeed=RelDensity=1 and every other relative scalar 0.
func NewSegment(length float64) Segment {
	return Segment{
		Length:       length,
		RelWidth:     1,
		RelSpeed:     1,
		RelDensity:   1,
		OriginParent: NoID,
	}
}
