package tracer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

func TestNewTracerClampsNegativeSizes(t *testing.T) {
	tr, err := NewTracer(-5, -5, -2, 1, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 0, tr.innerX)
	require.Equal(t, 0, tr.innerZ)
	require.Equal(t, 0, tr.margin)
}

func TestNewTracerRejectsInvertedMargins(t *testing.T) {
	_, err := NewTracer(10, 10, 1, 5, 1, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewTracerOuterSize(t *testing.T) {
	tr, err := NewTracer(10, 20, 3, 1, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 16, tr.outerX)
	require.Equal(t, 26, tr.outerZ)
}

func TestClearResetsGrids(t *testing.T) {
	tr, err := NewTracer(4, 4, 1, 1, 2, nil)
	require.NoError(t, err)

	tr.mainGrid[0][0] = 5
	tr.valueGrid[0][0] = 3
	tr.offsetGrid[0][0] = 2
	tr.distanceGrid[0][0] = -1
	tr.segmentGrid[0][0] = pathgraph.SegmentID(7)
	tr.debugGrid[0][0] = pathgraph.SegmentID(7)

	tr.Clear()

	require.Equal(t, 0.0, tr.mainGrid[0][0])
	require.Equal(t, 0.0, tr.valueGrid[0][0])
	require.Equal(t, 0.0, tr.offsetGrid[0][0])
	require.Equal(t, tr.traceOuterMargin, tr.distanceGrid[0][0])
	require.Equal(t, pathgraph.NoID, int(tr.segmentGrid[0][0]))
	require.Equal(t, pathgraph.NoID, int(tr.debugGrid[0][0]))
}

func TestOverlapAvoidanceSamplerNilWhenOuterMarginZero(t *testing.T) {
	tr, err := NewTracer(4, 4, 1, 0, 0, nil)
	require.NoError(t, err)
	require.Nil(t, tr.overlapAvoidanceSampler())

	tr2, err := NewTracer(4, 4, 1, 0, 2, nil)
	require.NoError(t, err)
	require.NotNil(t, tr2.overlapAvoidanceSampler())
}

// buildStraightPath constructs a single origin with one straight root
// segment of the given length and width, with trivial trace params.
func buildStraightPath(t *testing.T, length, width float64) (*pathgraph.Path, pathgraph.SegmentID) {
	t.Helper()
	p := pathgraph.NewPath()
	oid, err := p.AddOrigin(pathgraph.NewOrigin(geom.Vec2{X: 0, Z: 0}, 0))
	require.NoError(t, err)
	p.Origin(oid).Width = width

	seg := pathgraph.NewSegment(length)
	seg.Params = pathgraph.TraceParams{StepSize: 1, AngleTenacity: 0.999}
	sid, err := p.AddSegment(seg)
	require.NoError(t, err)
	require.NoError(t, p.AttachOriginBranch(oid, sid))
	return p, sid
}

func TestTraceStraightRootNoCollision(t *testing.T) {
	p, sid := buildStraightPath(t, 10, 4)

	tr, err := NewTracer(20, 20, 5, 1, 1, nil)
	require.NoError(t, err)

	ok, err := tr.Trace(p, 10)
	require.NoError(t, err)
	require.True(t, ok)

	// The path runs along z=0 from x=0 to x=10; cells under the core band
	// should be owned by the segment and have a positive half-width.
	require.Equal(t, sid, tr.SegmentAt(5, 0))
	require.Greater(t, tr.MainGrid().ValueAt(5, 0), 0.0)
}

func TestTraceFrameBudgetExceeded(t *testing.T) {
	p, sid := buildStraightPath(t, 10, 4)
	tr, err := NewTracer(20, 20, 5, 1, 1, nil)
	require.NoError(t, err)
	tr.framesRemaining = 0

	// Calling traceSegment directly with an exhausted budget should surface
	// ErrFrameBudgetExceeded without looping.
	base := originFrame(p.Origin(0))
	_, _, err = tr.traceSegment(p, sid, base, 0, 0, false, nil)
	require.ErrorIs(t, err, ErrFrameBudgetExceeded)
}

// buildCrossingRoots constructs two straight, single-segment root paths that
// cross at (10,10): A runs along z=10 from x=0, B runs along x=10 from z=0,
// both length 20. Both roots share arcRetraceRange; angleTenacity is forced
// to 0 so collision-recovery arcs do not drift off the exact crossing line.
func buildCrossingRoots(t *testing.T, arcRetraceRange float64) (*pathgraph.Path, pathgraph.SegmentID, pathgraph.SegmentID) {
	t.Helper()
	p := pathgraph.NewPath()

	oa, err := p.AddOrigin(pathgraph.NewOrigin(geom.Vec2{X: 0, Z: 10}, 0))
	require.NoError(t, err)
	segA := pathgraph.NewSegment(20)
	segA.Params = pathgraph.TraceParams{StepSize: 1, ArcRetraceRange: arcRetraceRange}
	sidA, err := p.AddSegment(segA)
	require.NoError(t, err)
	require.NoError(t, p.AttachOriginBranch(oa, sidA))

	ob, err := p.AddOrigin(pathgraph.NewOrigin(geom.Vec2{X: 10, Z: 0}, -90))
	require.NoError(t, err)
	segB := pathgraph.NewSegment(20)
	segB.Params = pathgraph.TraceParams{StepSize: 1, ArcRetraceRange: arcRetraceRange}
	sidB, err := p.AddSegment(segB)
	require.NoError(t, err)
	require.NoError(t, p.AttachOriginBranch(ob, sidB))

	return p, sidA, sidB
}

func TestTraceCrossingRootsOwnershipByQueueOrder(t *testing.T) {
	// spec.md §8 S2: arc_retrace_range=0 means canCollide always returns
	// false, so the trace succeeds in one pass and the contested cell stays
	// owned by whichever root was queued (and therefore rasterized) first.
	p, sidA, _ := buildCrossingRoots(t, 0)

	tr, err := NewTracer(24, 24, 6, 1, 1, nil)
	require.NoError(t, err)

	ok, err := tr.Trace(p, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sidA, tr.SegmentAt(10, 10))
}

func TestTraceCrossingRootsMergeRewritesFiveSegments(t *testing.T) {
	// spec.md §8 S3: with arc_retrace_range=3 the first attempt records a
	// genuine collision at (10,10); recovery merges the two segments into an
	// arc-duct-arc-merged chain (2 new segments per side + 1 merged segment
	// = 5), and the second attempt succeeds with no leaves discarded.
	p, sidA, sidB := buildCrossingRoots(t, 3)
	p.Segment(sidA).Params.AngleTenacity = 0
	p.Segment(sidB).Params.AngleTenacity = 0

	before := p.SegmentCount()

	tr, err := NewTracer(30, 30, 8, 1, 1, nil)
	require.NoError(t, err)

	ok, err := tr.Trace(p, 5)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, before+5, p.SegmentCount())
	require.False(t, p.IsLeaf(sidA))
	require.False(t, p.IsLeaf(sidB))

	foundMerged := false
	for i := 0; i < p.SegmentCount(); i++ {
		if len(p.Segment(pathgraph.SegmentID(i)).Parents) == 2 {
			foundMerged = true
			break
		}
	}
	require.True(t, foundMerged, "expected a merged segment with exactly 2 parents")

	for i := 0; i < p.SegmentCount(); i++ {
		sid := pathgraph.SegmentID(i)
		require.False(t, p.IsDiscarded(sid), "segment %d should not be discarded", i)
	}
}

// buildConvergingForkPath builds a single straight root with two children: a
// sibling that continues straight (never sets AvoidOverlap, footprint x in
// [30,40] at z=10), and a colliding child that starts shifted 10 units
// sideways at the fork and angles back toward the sibling's line at 60
// degrees. Its near-1 AngleTenacity keeps its avoid-overlap steering from
// bending it away, so it stays on that line and the first collision is
// recorded at distance 12 along its own path (cell (36,10), well inside the
// sibling's footprint) — comfortably past its ArcRetraceRange exclusion
// window (3) so the overlap registers as a genuine collision, and
// comfortably more than 2.5x its tail width so stubbing never needs to walk
// back into the root.
func buildConvergingForkPath(t *testing.T) (p *pathgraph.Path, colliding, sibling pathgraph.SegmentID) {
	t.Helper()
	p = pathgraph.NewPath()

	oid, err := p.AddOrigin(pathgraph.NewOrigin(geom.Vec2{X: 0, Z: 10}, 0))
	require.NoError(t, err)

	root := pathgraph.NewSegment(30)
	root.Params = pathgraph.TraceParams{StepSize: 1}
	rid, err := p.AddSegment(root)
	require.NoError(t, err)
	require.NoError(t, p.AttachOriginBranch(oid, rid))

	siblingSeg := pathgraph.NewSegment(10)
	siblingSeg.Params = pathgraph.TraceParams{StepSize: 1}
	sibling, err = p.AddSegment(siblingSeg)
	require.NoError(t, err)
	require.NoError(t, p.Attach(rid, sibling))

	collidingSeg := pathgraph.NewSegment(20)
	collidingSeg.RelShift = 10
	collidingSeg.RelAngle = 60
	collidingSeg.Params = pathgraph.TraceParams{StepSize: 1, ArcRetraceRange: 3, AvoidOverlap: 2, AngleTenacity: 0.999}
	colliding, err = p.AddSegment(collidingSeg)
	require.NoError(t, err)
	require.NoError(t, p.Attach(rid, colliding))

	return p, colliding, sibling
}

func TestTraceLeafStubTapersCollidingChildOnly(t *testing.T) {
	// spec.md §8 S4: the child with avoid_overlap set collides with its own
	// sibling once clear of the exclusion window; recovery tapers it to a
	// shorter, width-decaying stub while the sibling is left untouched.
	p, colliding, sibling := buildConvergingForkPath(t)
	originalCollidingLength := p.Segment(colliding).Length
	originalSiblingLength := p.Segment(sibling).Length

	tr, err := NewTracer(60, 30, 10, 1, 1, nil)
	require.NoError(t, err)

	ok, err := tr.Trace(p, 5)
	require.NoError(t, err)
	require.True(t, ok)

	require.Less(t, p.Segment(colliding).Length, originalCollidingLength)
	require.Greater(t, p.Segment(colliding).Params.WidthLoss, 0.0)

	require.Equal(t, originalSiblingLength, p.Segment(sibling).Length)
	require.Equal(t, 0.0, p.Segment(sibling).Params.WidthLoss)
}

func TestTraceAppliesSmoothDeltaAlongRealTrace(t *testing.T) {
	// spec.md §8 S5: a SmoothDelta distributed via linear-tent weighting over
	// a real Trace() run, with zero padding on the first/last 2 steps, should
	// accumulate to the ratio of non-padded steps covered so far, and to the
	// full delta at the segment's end.
	p, sid := buildStraightPath(t, 10, 1)
	p.Segment(sid).Smooth = &pathgraph.SmoothDelta{ValueDelta: 2, StepsTotal: 10, StepsPadding: 2}

	tr, err := NewTracer(20, 20, 5, 0, 1, nil)
	require.NoError(t, err)

	ok, err := tr.Trace(p, 5)
	require.NoError(t, err)
	require.True(t, ok)

	// value accumulates both the unit speed term (one per step) and the
	// smooth delta (2, fully applied by the time padding zeroes out the tail).
	// The last rasterized cell is x=9 (frame 9: 9+2); the cell on the final
	// frame's line, x=10, lies outside the last step and is never written.
	require.InDelta(t, 11.0, tr.ValueGrid().ValueAt(9, 0), 1e-6)
	require.InDelta(t, 10.0, tr.ValueGrid().ValueAt(8, 0), 1e-6)
}

func TestTraceIsDeterministicAcrossIndependentRuns(t *testing.T) {
	// spec.md §8 S6: tracing the same graph twice, independently built,
	// produces byte-equal grids and structurally equal graphs.
	build := func() (*pathgraph.Path, *Tracer) {
		p, _, _ := buildCrossingRoots(t, 3)
		p.Segment(0).Params.AngleTenacity = 0
		p.Segment(1).Params.AngleTenacity = 0
		tr, err := NewTracer(30, 30, 8, 1, 1, nil)
		require.NoError(t, err)
		return p, tr
	}

	p1, tr1 := build()
	ok1, err1 := tr1.Trace(p1, 5)
	require.NoError(t, err1)
	require.True(t, ok1)

	p2, tr2 := build()
	ok2, err2 := tr2.Trace(p2, 5)
	require.NoError(t, err2)
	require.True(t, ok2)

	require.Equal(t, p1.SegmentCount(), p2.SegmentCount())
	for i := 0; i < p1.SegmentCount(); i++ {
		s1, s2 := p1.Segment(pathgraph.SegmentID(i)), p2.Segment(pathgraph.SegmentID(i))
		require.InDelta(t, s1.Length, s2.Length, 1e-9)
		require.InDelta(t, s1.Params.WidthLoss, s2.Params.WidthLoss, 1e-9)
	}
	require.Equal(t, tr1.mainGrid, tr2.mainGrid)
	require.Equal(t, tr1.segmentGrid, tr2.segmentGrid)
	require.Equal(t, tr1.valueGrid, tr2.valueGrid)
}

func TestPreprocessSetsJunctionStability(t *testing.T) {
	p := pathgraph.NewPath()
	branchParams := pathgraph.TraceParams{ArcStableRange: 2}

	parent, err := p.AddSegment(pathgraph.NewSegment(1))
	require.NoError(t, err)
	p.Segment(parent).Params = branchParams

	childA, err := p.AddSegment(pathgraph.NewSegment(1))
	require.NoError(t, err)
	childB, err := p.AddSegment(pathgraph.NewSegment(1))
	require.NoError(t, err)
	require.NoError(t, p.Attach(parent, childA))
	require.NoError(t, p.Attach(parent, childB))

	mergeChild, err := p.AddSegment(pathgraph.NewSegment(1))
	require.NoError(t, err)
	p.Segment(mergeChild).Params = branchParams
	require.NoError(t, p.Attach(childA, mergeChild))
	require.NoError(t, p.Attach(childB, mergeChild))

	tr, err := NewTracer(4, 4, 1, 0, 0, nil)
	require.NoError(t, err)
	tr.preprocess(p)

	require.Equal(t, 2.0, p.Segment(parent).StabilityAtHead)
	require.Equal(t, 1.0, p.Segment(mergeChild).StabilityAtTail)
}
