package tracer

import (
	"math"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/gridfn"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

const mergeIntersectEps = 0.05

// arcDuctResult is one side's chosen construction within a merge attempt
// (spec.md §4.9): the frame the segment is truncated at, and the duct/arc
// geometry connecting it to the shared merge point.
type arcDuctResult struct {
	frame    TraceFrame
	ductLen  float64
	arcLen   float64
	arcAngle float64
}

// findArcDuct walks a side's captured frame buffer from its head (the frame
// nearest the collision) back toward its tail, looking for the first frame
// from which a tangent arc-and-duct to target is geometrically valid
// (spec.md §4.9's per-side search within one `i` iteration).
func findArcDuct(frames []TraceFrame, params pathgraph.TraceParams, target, normal geom.Vec2, sideSign, shift float64, collisionPos geom.Vec2) (arcDuctResult, bool) {
	for idx := len(frames) - 1; idx >= 0; idx-- {
		frame := frames[idx]
		isTailFrame := idx == 0

		pointB := frame.Pos
		if !isTailFrame && pointB.Sub(collisionPos).Magnitude() < params.ArcRetraceRange {
			continue
		}

		pointC := target.Add(normal.PerpCCW().Scale(sideSign * shift * 0.5 * frame.Width))

		ixF, okF := geom.TryIntersect(pointB, pointC, frame.Normal, normal, mergeIntersectEps)
		if !okF || ixF.ScaleA < 0 {
			continue
		}
		ixF2, okF2 := geom.TryIntersect(pointC, pointB, normal, frame.Normal, mergeIntersectEps)
		if !okF2 || ixF2.ScaleA > 0 {
			continue
		}
		pointF := ixF.Point

		ductLength := pointB.Sub(pointF).Magnitude() - pointC.Sub(pointF).Magnitude()
		if ductLength < 0 {
			continue
		}

		pointG := pointB.Add(frame.Normal.Scale(ductLength))
		ixK, okK := geom.TryIntersect(pointG, pointC, frame.Normal.PerpCCW(), normal.PerpCCW(), mergeIntersectEps)
		if !okK {
			continue
		}
		center := ixK.Point

		radius := pointG.Sub(center).Magnitude()
		if radius < 1e-9 {
			continue
		}
		chord := pointG.Sub(pointC).Magnitude()
		ratio := chord / (2 * radius)
		if ratio > 1 {
			ratio = 1
		} else if ratio < -1 {
			ratio = -1
		}
		arcLength := 2 * radius * math.Asin(ratio)
		if math.IsNaN(arcLength) {
			continue
		}

		arcAngle := -frame.Normal.SignedAngle(normal)
		maxArcAngle := 0.0
		if frame.Width > 1e-9 {
			maxArcAngle = (1 - params.AngleTenacity) * 180 * arcLength / (frame.Width * math.Pi)
		}
		if math.Abs(arcAngle) > maxArcAngle {
			continue
		}

		return arcDuctResult{frame: frame, ductLen: ductLength, arcLen: arcLength, arcAngle: arcAngle}, true
	}
	return arcDuctResult{}, false
}

// mergeCollision attempts spec.md §4.9's merge recovery: join the two
// colliding segments with a tangent arc-and-duct on each side into one new
// merged segment. Returns false (no error) when the merge is refused or no
// `i` iteration produces a valid construction on both sides, in which case
// the caller falls back to stubCollision.
func (t *Tracer) mergeCollision(path *pathgraph.Path, c *PathCollision) (bool, error) {
	segA, segB := c.SegA, c.SegB
	paramsA := path.Segment(segA).Params
	paramsB := path.Segment(segB).Params

	if paramsA.AvoidOverlap > 0 {
		return false, nil
	}
	if pathgraph.SubtreeContains(path, segB, segA) {
		return false, nil
	}
	if pathgraph.HasMultiParentDescendant(path, segA) || pathgraph.HasMultiParentDescendant(path, segB) {
		return false, nil
	}

	frameA := lastFrame(c.FramesA)
	frameB := lastFrame(c.FramesB)

	var midpoint, normal geom.Vec2
	if ix, ok := geom.TryIntersect(frameA.Pos, frameB.Pos, frameA.Normal, frameB.Normal, mergeIntersectEps); ok {
		midpoint = ix.Point
		normal = frameA.Normal.Scale(frameA.Width).Add(frameB.Normal.Scale(frameB.Width)).Normalize()
	} else {
		if frameA.Normal.PerpDot(frameB.Normal) >= 0 {
			normal = frameA.Normal.PerpCCW()
		} else {
			normal = frameA.Normal.PerpCW()
		}
		midpoint = geom.Vec2{X: float64(c.CellX), Z: float64(c.CellZ)}
	}

	shift := 1.0
	if normal.PerpDot(frameA.Normal) < 0 {
		shift = -1.0
	}

	var chosenA, chosenB arcDuctResult
	found := false
	for i := 0; i <= 6; i++ {
		r := math.Max(paramsA.ArcRetraceRange, paramsB.ArcRetraceRange) * (1 + 0.25*float64(i*i))
		target := midpoint.Add(normal.Scale(r))

		resA, okA := findArcDuct(c.FramesA, paramsA, target, normal, 1, shift, midpoint)
		if !okA {
			continue
		}
		resB, okB := findArcDuct(c.FramesB, paramsB, target, normal, -1, shift, midpoint)
		if !okB {
			continue
		}
		chosenA, chosenB = resA, resB
		found = true
		break
	}
	if !found {
		return false, nil
	}

	return true, t.applyMerge(path, segA, segB, paramsA, paramsB, frameA, frameB, chosenA, chosenB, shift)
}

func (t *Tracer) applyMerge(path *pathgraph.Path, segA, segB pathgraph.SegmentID, paramsA, paramsB pathgraph.TraceParams, frameA, frameB TraceFrame, chosenA, chosenB arcDuctResult, shift float64) error {
	origLenA := path.Segment(segA).Length
	origLenB := path.Segment(segB).Length

	valueAtMergeA := chosenA.frame.Value + chosenA.frame.Speed*(chosenA.arcLen+chosenA.ductLen)
	valueAtMergeB := chosenB.frame.Value + chosenB.frame.Speed*(chosenB.arcLen+chosenB.ductLen)
	targetDensity := 0.5 * (frameA.Density + frameB.Density)
	offsetAtMergeA := frameA.Offset + frameA.Width*targetDensity*0.5*(-shift)
	offsetAtMergeB := frameB.Offset + frameB.Width*targetDensity*0.5*(shift)

	followingBranches := append([]pathgraph.SegmentID(nil), path.Segment(segB).Branches...)

	connectedA := pathgraph.ConnectedComponent(path, segA)
	connectedB := pathgraph.ConnectedComponent(path, segB)
	interconnected := setsIntersect(connectedA, connectedB)
	densityDiffers := frameA.Density != frameB.Density

	if err := path.DetachAllBranches(segA); err != nil {
		return err
	}
	if err := path.DetachAllBranches(segB); err != nil {
		return err
	}

	arcA, err := t.applyMergeSide(path, segA, paramsA, chosenA, valueAtMergeB-valueAtMergeA, offsetAtMergeB-offsetAtMergeA, targetDensity, densityDiffers, connectedA, interconnected)
	if err != nil {
		return err
	}
	arcB, err := t.applyMergeSide(path, segB, paramsB, chosenB, valueAtMergeA-valueAtMergeB, offsetAtMergeA-offsetAtMergeB, targetDensity, densityDiffers, connectedB, interconnected)
	if err != nil {
		return err
	}

	merged := pathgraph.NewSegment(math.Max(origLenA-chosenA.frame.Dist, origLenB-chosenB.frame.Dist))
	merged.Params = pathgraph.MergeTraceParams(paramsA, paramsB, 0.5)
	merged.StabilityAtHead = 0
	merged.StabilityAtTail = (paramsA.ArcStableRange + paramsB.ArcStableRange) / 4
	mergedID, err := path.AddSegment(merged)
	if err != nil {
		return err
	}

	if err := path.Attach(arcA, mergedID); err != nil {
		return err
	}
	if err := path.Attach(arcB, mergedID); err != nil {
		return err
	}
	for _, br := range followingBranches {
		if err := path.Attach(mergedID, br); err != nil {
			return err
		}
	}
	// A's former branches are already unreachable: DetachAllBranches(segA)
	// above cut their only parent edge (a merge refuses to run at all if any
	// descendant has a second parent, so none of them survive by another path).

	return nil
}

// applyMergeSide truncates seg at its chosen frame, inserts the duct and arc
// children, and distributes the value/offset parity delta either across the
// arc+duct (when the two sides share a connected component) or across the
// RelValue/RelOffset of every root in seg's connected component as it was
// before the rewrite (spec.md §4.9 items 1-6).
// It returns the new arc segment's id, which becomes a parent of M.
func (t *Tracer) applyMergeSide(path *pathgraph.Path, seg pathgraph.SegmentID, params pathgraph.TraceParams, chosen arcDuctResult, deltaValue, deltaOffset, targetDensity float64, densityDiffers bool, connected []pathgraph.SegmentID, interconnected bool) (pathgraph.SegmentID, error) {
	segNode := path.Segment(seg)
	segNode.Length = chosen.frame.Dist

	duct := pathgraph.NewSegment(chosen.ductLen)
	duct.Params = params
	duct.Params.Swerve = nil
	ductID, err := path.AddSegment(duct)
	if err != nil {
		return pathgraph.NoID, err
	}
	if err := path.Attach(seg, ductID); err != nil {
		return pathgraph.NoID, err
	}

	swerveValue := 0.0
	if chosen.arcLen > 1e-9 {
		swerveValue = chosen.arcAngle / chosen.arcLen
	}
	arc := pathgraph.NewSegment(chosen.arcLen)
	arc.Params = params
	arc.Params.Swerve = gridfn.SamplerFunc(func(float64, float64) float64 { return swerveValue })
	arc.StabilityAtHead = params.ArcStableRange / 2
	if densityDiffers && chosen.arcLen > 1e-9 {
		arc.Params.DensityLoss = (chosen.frame.Density - targetDensity) / chosen.arcLen
	}
	arcID, err := path.AddSegment(arc)
	if err != nil {
		return pathgraph.NoID, err
	}
	if err := path.Attach(ductID, arcID); err != nil {
		return pathgraph.NoID, err
	}

	if interconnected {
		step := params.StepSize
		if step <= 0 {
			step = 1
		}
		stepsArc := maxInt(int(chosen.arcLen/step), 1)
		stepsDuct := maxInt(int(chosen.ductLen/step), 1)
		fsArc := fullStepsCount(stepsArc, 0)
		fsDuct := fullStepsCount(stepsDuct, 0)
		totalFS := fsArc + fsDuct
		if totalFS > 0 {
			arcNode := path.Segment(arcID)
			arcNode.Smooth = &pathgraph.SmoothDelta{
				ValueDelta:  deltaValue * float64(fsArc) / float64(totalFS),
				OffsetDelta: deltaOffset * float64(fsArc) / float64(totalFS),
				StepsTotal:  stepsArc,
			}
			ductNode := path.Segment(ductID)
			ductNode.Smooth = &pathgraph.SmoothDelta{
				ValueDelta:  deltaValue * float64(fsDuct) / float64(totalFS),
				OffsetDelta: deltaOffset * float64(fsDuct) / float64(totalFS),
				StepsTotal:  stepsDuct,
			}
		}
	} else {
		for _, id := range connected {
			if path.IsRoot(id) {
				root := path.Segment(id)
				root.RelValue += deltaValue / 2
				root.RelOffset += deltaOffset / 2
			}
		}
	}

	return arcID, nil
}

func setsIntersect(a, b []pathgraph.SegmentID) bool {
	set := make(map[pathgraph.SegmentID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if set[id] {
			return true
		}
	}
	return false
}

// resolveCollision implements spec.md §4.6's handle_first_collision: an
// incomplete collision (no captured frames for the other side) is always
// stubbed; a complete one attempts a merge first and falls back to stub.
func (t *Tracer) resolveCollision(path *pathgraph.Path, c *PathCollision) error {
	if !c.Complete() {
		return t.stubCollision(path, c)
	}
	merged, err := t.mergeCollision(path, c)
	if err != nil {
		return err
	}
	if merged {
		return nil
	}
	return t.stubCollision(path, c)
}
