package tracer

import "github.com/m00nl1ght-dev/terraingraph/pathgraph"

// PathCollision records a detected overlap between two path segments during
// rasterization (spec.md §4.6). FramesA is always populated at the moment of
// detection; FramesB is filled in by the tracer's second ("simulated") pass
// within the same attempt, which re-traces to capture the other segment's
// frames at the same grid cell. A collision is "complete" once both are set.
type PathCollision struct {
	SegA, SegB pathgraph.SegmentID
	CellX, CellZ int

	FramesA []TraceFrame
	FramesB []TraceFrame
}

// Complete reports whether both sides of the collision have captured frames.
func (c *PathCollision) Complete() bool {
	return len(c.FramesA) > 0 && len(c.FramesB) > 0
}

func (c *PathCollision) sameCell(x, z int) bool {
	return c.CellX == x && c.CellZ == z
}

// canCollide implements spec.md §4.7: an active segment never collides with
// anything if its ArcRetraceRange is non-positive (tracing passes straight
// through), and within ArcRetraceRange of its own start it ignores its direct
// parent, direct branches, and direct siblings.
func canCollide(path *pathgraph.Path, active, passive pathgraph.SegmentID, distAlongActive float64, activeParams pathgraph.TraceParams) bool {
	if activeParams.ArcRetraceRange <= 0 {
		return false
	}
	if distAlongActive < activeParams.ArcRetraceRange {
		if isDirectParent(path, active, passive) || isDirectBranch(path, active, passive) || isDirectSibling(path, active, passive) {
			return false
		}
	}
	return true
}

func isDirectParent(path *pathgraph.Path, of, candidate pathgraph.SegmentID) bool {
	for _, p := range path.Segment(of).Parents {
		if p == candidate {
			return true
		}
	}
	return false
}

func isDirectBranch(path *pathgraph.Path, of, candidate pathgraph.SegmentID) bool {
	for _, b := range path.Segment(of).Branches {
		if b == candidate {
			return true
		}
	}
	return false
}

func isDirectSibling(path *pathgraph.Path, a, b pathgraph.SegmentID) bool {
	if a == b {
		return false
	}
	for _, pa := range path.Segment(a).Parents {
		for _, pb := range path.Segment(b).Parents {
			if pa == pb {
				return true
			}
		}
	}
	return false
}

// precedes implements spec.md §4.6's total pre-order over collisions, used to
// pick which collision to resolve first when several occur in one attempt.
func precedes(path *pathgraph.Path, a, b *PathCollision) bool {
	// 1. If a.SegA is in the subtree of b.SegB (including equality), a does
	// not precede b.
	if pathgraph.SubtreeContains(path, b.SegB, a.SegA) {
		return false
	}
	// 2. If a.SegB is an ancestor of b.SegA (including equality), a precedes b.
	if pathgraph.IsAncestor(path, a.SegB, b.SegA) {
		return true
	}
	// 3. If a.SegB is a strict ancestor of b.SegB, a precedes b.
	if a.SegB != b.SegB && pathgraph.IsAncestor(path, a.SegB, b.SegB) {
		return true
	}
	// 4. If both are incomplete, neither precedes.
	if !a.Complete() && !b.Complete() {
		return false
	}
	// 5. If they share SegB and a's captured distance is smaller, a precedes b.
	if a.SegB == b.SegB && a.Complete() && b.Complete() {
		distA := lastFrame(a.FramesB).Dist
		distB := lastFrame(b.FramesB).Dist
		if distA < distB {
			return true
		}
	}
	// 6. Otherwise false.
	return false
}

func lastFrame(frames []TraceFrame) TraceFrame {
	if len(frames) == 0 {
		return TraceFrame{}
	}
	return frames[len(frames)-1]
}

// pickFirstCollision returns the minimal collision under precedes (spec.md
// §4.6's handle_first_collision selection step). It assumes at least one
// collision is present.
func pickFirstCollision(path *pathgraph.Path, collisions []*PathCollision) *PathCollision {
	best := collisions[0]
	for _, c := range collisions[1:] {
		if precedes(path, c, best) {
			best = c
		}
	}
	return best
}
