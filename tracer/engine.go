package tracer

import (
	"math"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/gridfn"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

// Tracer rasterizes a pathgraph.Path onto six same-sized grids and rewrites
// the graph's collisions as it goes (spec.md §3.2, §4.5). The grids are
// "outer" sized: innerX/innerZ plus a margin of cells on every side, so that
// a path segment's steering kernels can sample just past the region the
// caller actually cares about.
type Tracer struct {
	innerX, innerZ int
	margin         int
	marginF        float64

	traceInnerMargin float64
	traceOuterMargin float64

	outerX, outerZ int

	mainGrid     [][]float64
	valueGrid    [][]float64
	offsetGrid   [][]float64
	distanceGrid [][]float64

	segmentGrid [][]pathgraph.SegmentID
	debugGrid   [][]pathgraph.SegmentID

	debugSink DebugSink

	framesRemaining int
}

// NewTracer constructs a Tracer with the given inner grid size, the number of
// margin cells added on every side, and the inner/outer trace margins used
// during rasterization (spec.md §3.2). Negative sizes are clamped to zero.
// A nil sink discards debug output. Returns ErrInvalidConfig if
// traceOuterMargin < traceInnerMargin.
func NewTracer(innerX, innerZ, margin int, traceInnerMargin, traceOuterMargin float64, sink DebugSink) (*Tracer, error) {
	innerX = maxInt(innerX, 0)
	innerZ = maxInt(innerZ, 0)
	margin = maxInt(margin, 0)
	traceInnerMargin = math.Max(traceInnerMargin, 0)
	traceOuterMargin = math.Max(traceOuterMargin, 0)

	if traceOuterMargin < traceInnerMargin {
		return nil, ErrInvalidConfig
	}

	if sink == nil {
		sink = noopSink{}
	}

	t := &Tracer{
		innerX:           innerX,
		innerZ:           innerZ,
		margin:           margin,
		marginF:          float64(margin),
		traceInnerMargin: traceInnerMargin,
		traceOuterMargin: traceOuterMargin,
		outerX:           innerX + 2*margin,
		outerZ:           innerZ + 2*margin,
		debugSink:        sink,
	}
	t.mainGrid = newFloatGrid(t.outerX, t.outerZ)
	t.valueGrid = newFloatGrid(t.outerX, t.outerZ)
	t.offsetGrid = newFloatGrid(t.outerX, t.outerZ)
	t.distanceGrid = newFloatGrid(t.outerX, t.outerZ)
	t.segmentGrid = newSegmentGrid(t.outerX, t.outerZ)
	t.debugGrid = newSegmentGrid(t.outerX, t.outerZ)
	t.Clear()
	return t, nil
}

func newFloatGrid(x, z int) [][]float64 {
	g := make([][]float64, x)
	for i := range g {
		g[i] = make([]float64, z)
	}
	return g
}

func newSegmentGrid(x, z int) [][]pathgraph.SegmentID {
	g := make([][]pathgraph.SegmentID, x)
	for i := range g {
		g[i] = make([]pathgraph.SegmentID, z)
	}
	return g
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clear resets every grid to its empty state: main/value/offset to zero,
// distance to traceOuterMargin (meaning "no path recorded nearby yet"), and
// the segment/debug ownership grids to pathgraph.NoID.
func (t *Tracer) Clear() {
	for x := 0; x < t.outerX; x++ {
		for z := 0; z < t.outerZ; z++ {
			t.mainGrid[x][z] = 0
			t.valueGrid[x][z] = 0
			t.offsetGrid[x][z] = 0
			t.distanceGrid[x][z] = t.traceOuterMargin
			t.segmentGrid[x][z] = pathgraph.NoID
			t.debugGrid[x][z] = pathgraph.NoID
		}
	}
}

// overlapAvoidanceSampler returns a Sampler over the distance grid for the
// avoid-overlap steering kernel, or nil when traceOuterMargin is zero: with
// no outer margin the distance grid carries no usable lookahead, so overlap
// avoidance is disabled rather than steering off stale zero distances.
func (t *Tracer) overlapAvoidanceSampler() gridfn.Sampler {
	if t.traceOuterMargin <= 0 {
		return nil
	}
	return gridfn.NewCache(t.distanceGrid, t.traceOuterMargin)
}

// Trace attempts to rasterize every branch of path onto the Tracer's grids,
// retrying up to maxAttempts times whenever a collision forces a graph
// rewrite (spec.md §4.5's attempt loop). It returns true once an attempt
// completes with no collisions, or false if maxAttempts is exhausted. A
// non-nil error indicates a fatal, non-recoverable condition (the frame
// budget was exceeded, or recovery itself failed); the grids are left in a
// partial state in that case.
func (t *Tracer) Trace(path *pathgraph.Path, maxAttempts int) (bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 50
	}
	t.framesRemaining = MaxTraceFrames

	for attempt := 0; attempt < maxAttempts; attempt++ {
		t.preprocess(path)
		t.Clear()
		occurred, err := t.tryTrace(path, nil)
		if err != nil {
			return false, err
		}
		if len(occurred) == 0 {
			t.debugSink.Debugf("trace succeeded after %d attempt(s)", attempt+1)
			return true, nil
		}

		// Re-run with grids cleared so the "other side" of each collision gets
		// a chance to rasterize through the contested cell and have its own
		// frames captured (spec.md §4.6).
		t.Clear()
		if _, err := t.tryTrace(path, occurred); err != nil {
			return false, err
		}

		first := pickFirstCollision(path, occurred)
		t.debugSink.Debugf("attempt %d: resolving collision between segment %d and %d at (%d,%d)",
			attempt, first.SegA, first.SegB, first.CellX, first.CellZ)

		if err := t.resolveCollision(path, first); err != nil {
			return false, err
		}
	}

	t.debugSink.Debugf("trace gave up after %d attempts", maxAttempts)
	return false, nil
}

// preprocess applies local stability to every branching junction (spec.md
// §4.5's Preprocess step): a segment with two or more branches gets its own
// StabilityAtHead biased toward its ArcStableRange, and a segment with two or
// more parents gets its own StabilityAtTail biased toward half of it. Run at
// the start of every attempt so junctions introduced by a prior collision
// rewrite are covered too.
func (t *Tracer) preprocess(path *pathgraph.Path) {
	for i := 0; i < path.SegmentCount(); i++ {
		seg := path.Segment(pathgraph.SegmentID(i))
		r := seg.Params.ArcStableRange
		if len(seg.Branches) >= 2 {
			seg.StabilityAtHead = r
		}
		if len(seg.Parents) >= 2 {
			seg.StabilityAtTail = r / 2
		}
	}
}

type queueItem struct {
	seg  pathgraph.SegmentID
	base TraceFrame
}

// tryTrace performs a single rasterization pass over the whole path,
// front-to-back in branch order, and returns every collision detected. When
// simulated is non-nil the pass is in "capture the other side" mode: for each
// pending collision whose FramesB is still empty, the first segment to
// rasterize through that collision's cell has its frame buffer recorded into
// it (spec.md §4.6).
func (t *Tracer) tryTrace(path *pathgraph.Path, simulated []*PathCollision) ([]*PathCollision, error) {
	simulating := simulated != nil

	var occurred []*PathCollision
	var queue []queueItem
	pendingParentFrames := map[pathgraph.SegmentID][]TraceFrame{}

	for i := 0; i < path.OriginCount(); i++ {
		oid := pathgraph.OriginID(i)
		o := path.Origin(oid)
		base := originFrame(o)
		base.Pos = base.Pos.Add(geom.Vec2{X: t.marginF, Z: t.marginF})
		for _, segID := range o.Branches {
			if path.Segment(segID).RelWidth <= 0 {
				continue
			}
			queue = append(queue, queueItem{seg: segID, base: base})
		}
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		seg := path.Segment(item.seg)
		marginHead, marginTail := 0.0, 0.0
		if path.IsLeaf(item.seg) {
			marginHead = t.traceInnerMargin
		}
		if path.IsRoot(item.seg) {
			marginTail = t.traceInnerMargin
		}

		finalFrame, collision, err := t.traceSegment(path, item.seg, item.base, marginHead, marginTail, simulating, simulated)
		if err != nil {
			return nil, err
		}
		if collision != nil {
			occurred = append(occurred, collision)
			continue
		}

		for _, branchID := range seg.Branches {
			pendingParentFrames[branchID] = append(pendingParentFrames[branchID], finalFrame)
			branchSeg := path.Segment(branchID)
			if len(pendingParentFrames[branchID]) < len(branchSeg.Parents) {
				continue
			}
			var base TraceFrame
			if len(branchSeg.Parents) == 1 {
				base = pendingParentFrames[branchID][0]
			} else {
				base = mergedFrame(pendingParentFrames[branchID])
			}
			queue = append(queue, queueItem{seg: branchID, base: base})
		}
	}

	return occurred, nil
}

// traceSegment advances one segment step by step from its initial frame to
// its length (plus any head/tail trace margin), rasterizing each step onto
// the Tracer's grids, until it either reaches the end or detects a collision
// (spec.md §4.5 items 1-6).
func (t *Tracer) traceSegment(path *pathgraph.Path, segID pathgraph.SegmentID, base TraceFrame, marginHead, marginTail float64, simulating bool, simulated []*PathCollision) (TraceFrame, *PathCollision, error) {
	seg := path.Segment(segID)
	marginVec := geom.Vec2{X: t.marginF, Z: t.marginF}

	d0 := -marginTail
	cur := initialFrame(base, seg, d0)
	buffer := []TraceFrame{cur}

	in := advanceInput{
		Params:        seg.Params,
		Length:        seg.Length,
		StabilityHead: seg.StabilityAtHead,
		StabilityTail: seg.StabilityAtTail,
		MarginOffset:  marginVec,
	}

	step := seg.Params.StepSize
	if step <= 0 {
		step = 1
	}
	target := seg.Length + marginHead
	initialAngle := cur.Angle
	lastWholeWeight, finalWeight := fractionalTailWeights(step, seg.Length)

	for cur.Dist < target {
		if t.framesRemaining <= 0 {
			return cur, nil, ErrFrameBudgetExceeded
		}
		t.framesRemaining--

		deltaD := step
		if cur.Dist+deltaD > target {
			deltaD = target - cur.Dist
		}
		if deltaD <= 1e-12 {
			break
		}

		gx, gz := cur.Pos.X-t.marginF, cur.Pos.Z-t.marginF
		relPos := cur.Pos.Sub(buffer[0].Pos)

		followVec := geom.Zero
		if seg.Params.AbsFollow != nil || seg.Params.RelFollow != nil {
			followVec = followVec.Add(followKernel.calculateAt(
				geom.Vec2{X: 1, Z: 0}, geom.Vec2{X: 0, Z: 1},
				seg.Params.AbsFollow, seg.Params.RelFollow,
				geom.Vec2{X: gx, Z: gz}, relPos, initialAngle-90,
			))
		}
		if seg.Params.AvoidOverlap != 0 {
			if overlap := t.overlapAvoidanceSampler(); overlap != nil {
				avoidVec := avoidOverlapKernel.calculateAt(cur.Normal, cur.Normal.PerpCW(), overlap, nil, cur.Pos, geom.Zero, 0)
				followVec = followVec.Add(avoidVec.Scale(seg.Params.AvoidOverlap))
			}
		}

		deltaTheta := -cur.Normal.SignedAngle(cur.Normal.Add(followVec))
		if seg.Params.Swerve != nil {
			deltaTheta += seg.Params.Swerve.ValueAt(gx, gz)
		}

		maxDeltaTheta := 0.0
		if cur.Width > 1e-9 {
			maxDeltaTheta = (1 - seg.Params.AngleTenacity) * 180 * deltaD / (cur.Width * math.Pi)
		}
		deltaTheta = geom.NormalizeDeg(deltaD * deltaTheta)
		if deltaTheta > maxDeltaTheta {
			deltaTheta = maxDeltaTheta
		} else if deltaTheta < -maxDeltaTheta {
			deltaTheta = -maxDeltaTheta
		}

		extraValue, extraOffset := smoothContribution(seg.Smooth, len(buffer)-1)
		if weightScale := straddleWeight(cur.Dist, deltaD, step, target, lastWholeWeight, finalWeight); weightScale != 1 {
			extraValue *= weightScale
			extraOffset *= weightScale
		}
		radial := math.Abs(deltaTheta) >= radialThreshold

		var pivot geom.Vec2
		var pivotOffset float64
		if radial {
			pivotOffset = 180 * deltaD / (math.Pi * -deltaTheta)
			pivot = cur.Pos.Add(cur.PerpCCW().Scale(pivotOffset))
		}

		next := advance(cur, in, deltaD, deltaTheta, extraValue, extraOffset, radial)

		col := t.rasterizeStep(path, segID, seg.Length, cur, next, radial, pivot, pivotOffset, deltaTheta, deltaD, simulating, simulated, buffer)
		if col != nil {
			return next, col, nil
		}

		cur = next
		buffer = append(buffer, cur)
	}

	return cur, nil, nil
}

// rasterizeStep sweeps the AABB of the quad between frames a and b, writing
// distance/value/offset/main/segment grids for every cell inside the path's
// effective width, and returns a collision if this step's core band overlaps
// another segment that cannot be ignored (spec.md §4.5 item 6, §4.6, §4.7).
func (t *Tracer) rasterizeStep(path *pathgraph.Path, segID pathgraph.SegmentID, segLength float64, a, b TraceFrame, radial bool, pivot geom.Vec2, pivotOffset, deltaTheta, deltaD float64, simulating bool, simulated []*PathCollision, buffer []TraceFrame) *PathCollision {
	extendA := a.WidthEff() / 2
	extendB := b.WidthEff() / 2
	maxExtend := math.Max(extendA, extendB)

	outerM := t.traceOuterMargin
	innerM := t.traceInnerMargin

	minX := math.Min(a.Pos.X, b.Pos.X) - maxExtend - outerM
	maxX := math.Max(a.Pos.X, b.Pos.X) + maxExtend + outerM
	minZ := math.Min(a.Pos.Z, b.Pos.Z) - maxExtend - outerM
	maxZ := math.Max(a.Pos.Z, b.Pos.Z) + maxExtend + outerM

	ix0 := clampInt(int(math.Floor(minX)), 0, t.outerX-1)
	ix1 := clampInt(int(math.Ceil(maxX)), 0, t.outerX-1)
	iz0 := clampInt(int(math.Floor(minZ)), 0, t.outerZ-1)
	iz1 := clampInt(int(math.Ceil(maxZ)), 0, t.outerZ-1)

	signDeltaTheta := 1.0
	if -deltaTheta < 0 {
		signDeltaTheta = -1.0
	}
	absDeltaTheta := math.Abs(deltaTheta)

	for x := ix0; x <= ix1; x++ {
		for z := iz0; z <= iz1; z++ {
			c := geom.Vec2{X: float64(x), Z: float64(z)}
			if a.Normal.Dot(c.Sub(a.Pos)) < 0 {
				continue
			}
			if b.Normal.Dot(c.Sub(b.Pos)) >= 0 {
				continue
			}

			var shift, progress float64
			if radial && absDeltaTheta > 1e-9 {
				pv := c.Sub(pivot)
				shift = signDeltaTheta * (pv.Magnitude() - math.Abs(pivotOffset))
				progress = a.Pos.Sub(pivot).Angle(pv) / absDeltaTheta
			} else {
				shift = -a.Normal.PerpDot(c.Sub(a.Pos))
				if deltaD > 1e-12 {
					progress = a.Normal.Dot(c.Sub(a.Pos)) / deltaD
				}
			}
			progress = clamp01(progress)
			extend := lerpScalar(extendA, extendB, progress)
			dist := lerpScalar(a.Dist, b.Dist, progress)

			distanceReplaced := false
			if math.Abs(shift) <= extend+outerM {
				candidate := math.Abs(shift) - extend
				if candidate < t.distanceGrid[x][z] {
					t.distanceGrid[x][z] = candidate
					t.debugGrid[x][z] = segID
					distanceReplaced = true
				}
			}
			if distanceReplaced && math.Abs(shift) <= extend+innerM {
				densEff := lerpScalar(a.DensityEff(), b.DensityEff(), progress)
				t.valueGrid[x][z] = lerpScalar(a.Value, b.Value, progress)
				t.offsetGrid[x][z] = lerpScalar(a.Offset, b.Offset, progress) + shift*densEff
			}

			if math.Abs(shift) > extend || dist < 0 || dist > segLength {
				continue
			}

			if t.mainGrid[x][z] > 0 {
				owner := t.segmentGrid[x][z]
				if owner != segID && canCollide(path, segID, owner, dist, path.Segment(segID).Params) {
					frames := append(append([]TraceFrame(nil), buffer...), b)
					return &PathCollision{SegA: segID, SegB: owner, CellX: x, CellZ: z, FramesA: frames}
				}
			}

			if simulating {
				for _, sc := range simulated {
					if sc.sameCell(x, z) && len(sc.FramesB) == 0 {
						sc.FramesB = append(append([]TraceFrame(nil), buffer...), b)
					}
				}
			}

			// A non-colliding pass-through (canCollide returned false above, or
			// there was no prior owner at all) must not steal ownership from the
			// first writer (spec.md §8 invariant 2).
			if t.mainGrid[x][z] > 0 && t.segmentGrid[x][z] != segID {
				continue
			}

			t.segmentGrid[x][z] = segID
			t.mainGrid[x][z] = extend
		}
	}

	return nil
}
