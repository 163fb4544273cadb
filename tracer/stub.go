package tracer

import "github.com/m00nl1ght-dev/terraingraph/pathgraph"

// tailScalar reconstructs a static per-segment scalar (width, density, or
// speed) at a segment's own tail (dist=0), purely from graph data, without
// re-tracing: an Origin-rooted segment starts from the origin's field scaled
// by its RelX; any other segment starts from the mean of its parents' head
// values (mirroring mergedFrame's averaging for multi-parent branches)
// scaled by its own RelX, where a parent's head value is its own tail value
// minus length*loss. Used by the stub strategy's backward walk (spec.md
// §4.8), which needs an ancestor's tail value without a saved frame buffer
// for it.
func (t *Tracer) tailScalar(path *pathgraph.Path, segID pathgraph.SegmentID, originVal func(*pathgraph.Origin) float64, relVal func(*pathgraph.Segment) float64, loss func(*pathgraph.Segment) float64) float64 {
	seg := path.Segment(segID)
	if len(seg.Parents) == 0 {
		if seg.OriginParent != pathgraph.NoID {
			return originVal(path.Origin(seg.OriginParent)) * relVal(seg)
		}
		return relVal(seg)
	}
	sum := 0.0
	for _, pid := range seg.Parents {
		p := path.Segment(pid)
		head := t.tailScalar(path, pid, originVal, relVal, loss) - p.Length*loss(p)
		sum += head
	}
	return (sum / float64(len(seg.Parents))) * relVal(seg)
}

func (t *Tracer) tailWidth(path *pathgraph.Path, segID pathgraph.SegmentID) float64 {
	return t.tailScalar(path, segID,
		func(o *pathgraph.Origin) float64 { return o.Width },
		func(s *pathgraph.Segment) float64 { return s.RelWidth },
		func(s *pathgraph.Segment) float64 { return s.Params.WidthLoss })
}

func (t *Tracer) tailDensity(path *pathgraph.Path, segID pathgraph.SegmentID) float64 {
	return t.tailScalar(path, segID,
		func(o *pathgraph.Origin) float64 { return o.Density },
		func(s *pathgraph.Segment) float64 { return s.RelDensity },
		func(s *pathgraph.Segment) float64 { return s.Params.DensityLoss })
}

func (t *Tracer) tailSpeed(path *pathgraph.Path, segID pathgraph.SegmentID) float64 {
	return t.tailScalar(path, segID,
		func(o *pathgraph.Origin) float64 { return o.Speed },
		func(s *pathgraph.Segment) float64 { return s.RelSpeed },
		func(s *pathgraph.Segment) float64 { return s.Params.SpeedLoss })
}

// stubCollision picks the smaller-width_eff side of a collision and tapers it
// to a stub (spec.md §4.8). If the collision is incomplete (no FramesB),
// SegA is always the side stubbed, since it is the only side a frame was
// ever captured for.
func (t *Tracer) stubCollision(path *pathgraph.Path, c *PathCollision) error {
	seg := c.SegA
	frame := lastFrame(c.FramesA)
	if c.Complete() {
		fb := lastFrame(c.FramesB)
		if fb.WidthEff() < frame.WidthEff() {
			seg = c.SegB
			frame = fb
		}
	}
	return t.applyStub(path, seg, frame)
}

// applyStub implements spec.md §4.8: it truncates seg to the distance
// reached, walking backward through single-parent, single-branch chains to
// accumulate more length when a tapered tail would otherwise be too short,
// then tapers width to zero over what remains while density and speed grow
// (their losses are set to -3 times their tail value per remaining length).
func (t *Tracer) applyStub(path *pathgraph.Path, segID pathgraph.SegmentID, frame TraceFrame) error {
	cur := segID
	length := frame.Dist
	widthAtTail := t.tailWidth(path, cur)

	for length < 2.5*widthAtTail {
		curSeg := path.Segment(cur)
		if len(curSeg.Parents) != 1 {
			break
		}
		parentID := curSeg.Parents[0]
		parentSeg := path.Segment(parentID)
		if len(parentSeg.Branches) >= 2 {
			break
		}
		length += parentSeg.Length
		cur = parentID
		widthAtTail = t.tailWidth(path, cur)
	}

	curSeg := path.Segment(cur)
	retrace := curSeg.Params.ArcRetraceRange
	if retrace < 1 {
		retrace = 1
	}
	lengthPrime := length - retrace
	if lengthPrime <= 0 {
		return t.discardStub(path, cur)
	}

	densityAtTail := t.tailDensity(path, cur)
	speedAtTail := t.tailSpeed(path, cur)

	curSeg.Length = lengthPrime
	curSeg.Params.WidthLoss = widthAtTail / lengthPrime
	curSeg.Params.DensityLoss = -3 * densityAtTail / lengthPrime
	curSeg.Params.SpeedLoss = -3 * speedAtTail / lengthPrime

	return path.DetachAllBranches(cur)
}

// discardStub detaches segID from every parent, branch, and origin reference,
// making it unreachable (spec.md §4.8's "discard the stub").
func (t *Tracer) discardStub(path *pathgraph.Path, segID pathgraph.SegmentID) error {
	if err := path.DetachAllParents(segID); err != nil {
		return err
	}
	if err := path.DetachAllBranches(segID); err != nil {
		return err
	}
	seg := path.Segment(segID)
	if seg.OriginParent != pathgraph.NoID {
		return path.DetachOriginBranch(seg.OriginParent, segID)
	}
	return nil
}
