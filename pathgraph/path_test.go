package pathgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

func newTestSegment(t *testing.T, p *pathgraph.Path, length float64) pathgraph.SegmentID {
	t.Helper()
	id, err := p.AddSegment(pathgraph.NewSegment(length))
	require.NoError(t, err)
	return id
}

func TestNewOriginDefaults(t *testing.T) {
	o := pathgraph.NewOrigin(geom.Vec2{X: 1, Z: 2}, 30)
	require.Equal(t, 1.0, o.Width)
	require.Equal(t, 1.0, o.Speed)
	require.Equal(t, 1.0, o.Density)
	require.Equal(t, 0.0, o.Value)
}

func TestNewSegmentDefaults(t *testing.T) {
	s := pathgraph.NewSegment(10)
	require.Equal(t, 1.0, s.RelWidth)
	require.Equal(t, 1.0, s.RelSpeed)
	require.Equal(t, 1.0, s.RelDensity)
	require.Equal(t, 0.0, s.RelAngle)
	require.Equal(t, pathgraph.NoID, int(s.OriginParent))
}

func TestAttachDetachDuality(t *testing.T) {
	p := pathgraph.NewPath()
	a := newTestSegment(t, p, 1)
	b := newTestSegment(t, p, 1)

	require.NoError(t, p.Attach(a, b))
	require.Contains(t, p.Segment(a).Branches, b)
	require.Contains(t, p.Segment(b).Parents, a)

	// idempotent re-attach
	require.NoError(t, p.Attach(a, b))
	require.Len(t, p.Segment(a).Branches, 1)

	require.NoError(t, p.Detach(a, b))
	require.NotContains(t, p.Segment(a).Branches, b)
	require.NotContains(t, p.Segment(b).Parents, a)
}

func TestAttachRejectsCycle(t *testing.T) {
	p := pathgraph.NewPath()
	a := newTestSegment(t, p, 1)
	b := newTestSegment(t, p, 1)
	c := newTestSegment(t, p, 1)

	require.NoError(t, p.Attach(a, b))
	require.NoError(t, p.Attach(b, c))
	require.ErrorIs(t, p.Attach(c, a), pathgraph.ErrCycle)
	require.ErrorIs(t, p.Attach(a, a), pathgraph.ErrCycle)
}

func TestIsRootIsLeaf(t *testing.T) {
	p := pathgraph.NewPath()
	a := newTestSegment(t, p, 1)
	b := newTestSegment(t, p, 1)
	require.True(t, p.IsRoot(a))
	require.True(t, p.IsLeaf(a))

	require.NoError(t, p.Attach(a, b))
	require.True(t, p.IsRoot(a))
	require.False(t, p.IsLeaf(a))
	require.False(t, p.IsRoot(b))
	require.True(t, p.IsLeaf(b))
}

func TestIsDiscarded(t *testing.T) {
	p := pathgraph.NewPath()
	a := newTestSegment(t, p, 1)
	b := newTestSegment(t, p, 1)
	require.NoError(t, p.Attach(a, b))
	require.NoError(t, p.Detach(a, b))
	require.True(t, p.IsDiscarded(b))
	require.True(t, p.IsDiscarded(a))
}

func TestAttachOriginBranch(t *testing.T) {
	p := pathgraph.NewPath()
	origin, err := p.AddOrigin(pathgraph.NewOrigin(geom.Zero, 0))
	require.NoError(t, err)
	a := newTestSegment(t, p, 1)

	require.NoError(t, p.AttachOriginBranch(origin, a))
	require.Contains(t, p.Origin(origin).Branches, a)
	require.Equal(t, origin, p.Segment(a).OriginParent)
	require.False(t, p.IsDiscarded(a))

	require.NoError(t, p.DetachOriginBranch(origin, a))
	require.NotContains(t, p.Origin(origin).Branches, a)
	require.True(t, p.IsDiscarded(a))
}

func TestEmptyPathRejectsMutation(t *testing.T) {
	_, err := pathgraph.Empty.AddSegment(pathgraph.NewSegment(1))
	require.ErrorIs(t, err, pathgraph.ErrDiscardedPath)

	_, err = pathgraph.Empty.AddOrigin(pathgraph.NewOrigin(geom.Zero, 0))
	require.ErrorIs(t, err, pathgraph.ErrDiscardedPath)
}

func TestForeignOrUnknownIDs(t *testing.T) {
	p := pathgraph.NewPath()
	a := newTestSegment(t, p, 1)
	_, ok := p.SegmentOK(a + 5)
	require.False(t, ok)
	require.ErrorIs(t, p.Attach(a, a+5), pathgraph.ErrUnknownSegment)
}

func TestMergeTraceParams(t *testing.T) {
	a := pathgraph.TraceParams{StepSize: 1, AngleTenacity: 0}
	b := pathgraph.TraceParams{StepSize: 3, AngleTenacity: 0.4}
	m := pathgraph.MergeTraceParams(a, b, 0.5)
	require.InDelta(t, 2.0, m.StepSize, 1e-12)
	require.InDelta(t, 0.2, m.AngleTenacity, 1e-12)
}
