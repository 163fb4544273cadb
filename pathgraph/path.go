package pathgraph

import "fmt"

// Path owns two append-only arenas of Origins and Segments (spec.md §3.1).
// Nodes are identified by their index and are never removed, only detached;
// a segment with no parents, no branches, and no origin referencing it is
// "discarded" — still present in the arena but unreachable.
type Path struct {
	origins  []Origin
	segments []Segment
	discarded bool
}

// Empty is the shared discarded-path sentinel. Any mutation attempted
// through it returns ErrDiscardedPath. It must never be mutated directly by
// callers; NewPath always returns a fresh, non-discarded Path.
var Empty = &Path{discarded: true}

// NewPath returns a new, empty, mutable Path.
func NewPath() *Path {
	return &Path{}
}

// OriginCount returns the number of origins in the arena.
func (p *Path) OriginCount() int { return len(p.origins) }

// SegmentCount returns the number of segments in the arena.
func (p *Path) SegmentCount() int { return len(p.segments) }

// Origin returns a pointer to the origin with the given id for in-place
// mutation. Panics if id is out of range; callers that need a fallible
// lookup should use OriginOK.
func (p *Path) Origin(id OriginID) *Origin {
	return &p.origins[id]
}

// OriginOK returns the origin with the given id, and whether it exists.
func (p *Path) OriginOK(id OriginID) (*Origin, bool) {
	if id < 0 || int(id) >= len(p.origins) {
		return nil, false
	}
	return &p.origins[id], true
}

// Segment returns a pointer to the segment with the given id for in-place
// mutation. Panics if id is out of range; callers that need a fallible
// lookup should use SegmentOK.
func (p *Path) Segment(id SegmentID) *Segment {
	return &p.segments[id]
}

// SegmentOK returns the segment with the given id, and whether it exists.
func (p *Path) SegmentOK(id SegmentID) (*Segment, bool) {
	if id < 0 || int(id) >= len(p.segments) {
		return nil, false
	}
	return &p.segments[id], true
}

// AddOrigin appends a new Origin to the arena and returns its id.
func (p *Path) AddOrigin(o Origin) (OriginID, error) {
	if p.discarded {
		return NoID, ErrDiscardedPath
	}
	p.origins = append(p.origins, o)
	return OriginID(len(p.origins) - 1), nil
}

// AddSegment appends a new Segment to the arena and returns its id.
func (p *Path) AddSegment(s Segment) (SegmentID, error) {
	if p.discarded {
		return NoID, ErrDiscardedPath
	}
	p.segments = append(p.segments, s)
	return SegmentID(len(p.segments) - 1), nil
}

// AttachOriginBranch adds seg as a branch of origin, if not already present,
// and records origin as seg's OriginParent.
func (p *Path) AttachOriginBranch(origin OriginID, seg SegmentID) error {
	if p.discarded {
		return ErrDiscardedPath
	}
	o, ok := p.OriginOK(origin)
	if !ok {
		return fmt.Errorf("%w: origin %d", ErrUnknownOrigin, origin)
	}
	s, ok := p.SegmentOK(seg)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, seg)
	}
	if !containsSegment(o.Branches, seg) {
		o.Branches = append(o.Branches, seg)
	}
	s.OriginParent = origin
	return nil
}

// DetachOriginBranch removes seg from origin's branches, if present, and
// clears seg's OriginParent if it pointed at origin.
func (p *Path) DetachOriginBranch(origin OriginID, seg SegmentID) error {
	if p.discarded {
		return ErrDiscardedPath
	}
	o, ok := p.OriginOK(origin)
	if !ok {
		return fmt.Errorf("%w: origin %d", ErrUnknownOrigin, origin)
	}
	s, ok := p.SegmentOK(seg)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, seg)
	}
	o.Branches = removeSegment(o.Branches, seg)
	if s.OriginParent == origin {
		s.OriginParent = NoID
	}
	return nil
}

// Attach inserts child into parent.Branches and parent into child.Parents,
// if not already present (spec.md §3.1: edge mutations are symmetric).
// Rejects ids outside this path's arena, the discarded sentinel, and any
// attach that would introduce a cycle. Ids are not tagged with their Path,
// so an in-range id taken from a different Path is accepted as a local one.
func (p *Path) Attach(parent, child SegmentID) error {
	if p.discarded {
		return ErrDiscardedPath
	}
	pn, ok := p.SegmentOK(parent)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, parent)
	}
	cn, ok := p.SegmentOK(child)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, child)
	}
	if containsSegment(pn.Branches, child) {
		return nil // already attached; idempotent
	}
	// Attaching parent->child introduces a cycle iff parent is already
	// reachable from child by following existing branch edges.
	if SubtreeContains(p, child, parent) {
		return ErrCycle
	}
	pn.Branches = append(pn.Branches, child)
	cn.Parents = append(cn.Parents, parent)
	return nil
}

// Detach removes child from parent.Branches and parent from child.Parents,
// if present. Detaching edges that do not exist is a no-op.
func (p *Path) Detach(parent, child SegmentID) error {
	if p.discarded {
		return ErrDiscardedPath
	}
	pn, ok := p.SegmentOK(parent)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, parent)
	}
	cn, ok := p.SegmentOK(child)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, child)
	}
	pn.Branches = removeSegment(pn.Branches, child)
	cn.Parents = removeSegment(cn.Parents, parent)
	return nil
}

// DetachAllBranches detaches every branch of seg from seg.
func (p *Path) DetachAllBranches(seg SegmentID) error {
	s, ok := p.SegmentOK(seg)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, seg)
	}
	branches := append([]SegmentID(nil), s.Branches...)
	for _, b := range branches {
		if err := p.Detach(seg, b); err != nil {
			return err
		}
	}
	return nil
}

// DetachAllParents detaches every parent of seg from seg.
func (p *Path) DetachAllParents(seg SegmentID) error {
	s, ok := p.SegmentOK(seg)
	if !ok {
		return fmt.Errorf("%w: segment %d", ErrUnknownSegment, seg)
	}
	parents := append([]SegmentID(nil), s.Parents...)
	for _, pa := range parents {
		if err := p.Detach(pa, seg); err != nil {
			return err
		}
	}
	return nil
}

// IsRoot reports whether seg has no parent segments (spec.md §3.1:
// is_root iff parents empty). A segment that is a branch of an Origin but
// has no segment parents is still a root under this definition.
func (p *Path) IsRoot(seg SegmentID) bool {
	return len(p.segments[seg].Parents) == 0
}

// IsLeaf reports whether seg has no branch segments.
func (p *Path) IsLeaf(seg SegmentID) bool {
	return len(p.segments[seg].Branches) == 0
}

// IsDiscarded reports whether seg is unreachable: no parents, no branches,
// and no origin references it directly.
func (p *Path) IsDiscarded(seg SegmentID) bool {
	s := &p.segments[seg]
	return len(s.Parents) == 0 && len(s.Branches) == 0 && s.OriginParent == NoID
}

func containsSegment(list []SegmentID, id SegmentID) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

func removeSegment(list []SegmentID, id SegmentID) []SegmentID {
	out := list[:0:0]
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
