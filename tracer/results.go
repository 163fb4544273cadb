package tracer

import (
	"github.com/m00nl1ght-dev/terraingraph/gridfn"
	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

// MainGrid returns the rasterized half-width field: main[c] is half the
// width_eff of the segment that owns cell c (the first segment whose core
// band covered it; later segments passing through do not overwrite it), or 0
// where no segment was ever rasterized there. Coordinates are margin-shifted, so
// (0,0) refers to the inner grid's own origin (spec.md §3.2, §4.5).
func (t *Tracer) MainGrid() gridfn.Sampler {
	return t.shifted(t.mainGrid, 0)
}

// ValueGrid returns the rasterized scalar value field (spec.md §3.2).
func (t *Tracer) ValueGrid() gridfn.Sampler {
	return t.shifted(t.valueGrid, 0)
}

// OffsetGrid returns the rasterized lateral-offset field (spec.md §3.2).
func (t *Tracer) OffsetGrid() gridfn.Sampler {
	return t.shifted(t.offsetGrid, 0)
}

// DistanceGrid returns the signed distance-to-nearest-path field; cells
// never reached by any segment's outer margin read back as
// traceOuterMargin, the value Clear initializes every cell to (spec.md §3.2).
func (t *Tracer) DistanceGrid() gridfn.Sampler {
	return t.shifted(t.distanceGrid, t.traceOuterMargin)
}

func (t *Tracer) shifted(data [][]float64, fallback float64) gridfn.Sampler {
	return gridfn.NewTransform(gridfn.NewCache(data, fallback), -t.marginF, -t.marginF, 1, 1)
}

// DebugGrid returns the id of the last segment to have updated distance[c],
// or pathgraph.NoID where no segment ever has (spec.md §4.5 item 6).
// Coordinates are margin-shifted like the scalar grids.
func (t *Tracer) DebugGrid(x, z float64) pathgraph.SegmentID {
	ix := int(x + t.marginF)
	iz := int(z + t.marginF)
	if ix < 0 || ix >= t.outerX || iz < 0 || iz >= t.outerZ {
		return pathgraph.NoID
	}
	return t.debugGrid[ix][iz]
}

// SegmentAt returns the id of the segment currently owning cell (x,z) in the
// rasterized main grid, or pathgraph.NoID. Coordinates are margin-shifted.
func (t *Tracer) SegmentAt(x, z float64) pathgraph.SegmentID {
	ix := int(x + t.marginF)
	iz := int(z + t.marginF)
	if ix < 0 || ix >= t.outerX || iz < 0 || iz >= t.outerZ {
		return pathgraph.NoID
	}
	return t.segmentGrid[ix][iz]
}
