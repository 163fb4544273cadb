package tracer

import (
	"github.com/m00nl1ght-dev/terraingraph/geom"
	"github.com/m00nl1ght-dev/terraingraph/gridfn"
)

// kernelSample is one precomputed offset/direction pair in a kernel's local
// frame (spec.md §4.3).
type kernelSample struct {
	offsetX, offsetZ float64 // offset in the local frame, before axis transform
	dirX, dirZ       float64 // unit direction in the local frame
}

// kernel is a precomputed set of sample offsets and directions used to build
// a finite-difference steering vector at a trace step.
type kernel struct {
	samples []kernelSample
}

// squareKernel returns a kernel sampling every lattice point (x*extend,
// z*extend) for x,z in [-size,size] except the origin, n = (2*size+1)^2 - 1.
// Each sample's direction is the normalized offset.
func squareKernel(size int, extend float64) *kernel {
	samples := make([]kernelSample, 0, (2*size+1)*(2*size+1)-1)
	for x := -size; x <= size; x++ {
		for z := -size; z <= size; z++ {
			if x == 0 && z == 0 {
				continue
			}
			ox, oz := float64(x)*extend, float64(z)*extend
			dir := geom.Vec2{X: ox, Z: oz}.Normalize()
			samples = append(samples, kernelSample{offsetX: ox, offsetZ: oz, dirX: dir.X, dirZ: dir.Z})
		}
	}
	return &kernel{samples: samples}
}

// shieldKernel returns a one-sided fan kernel: (extend, z*spacing) for z in
// [-size,size], n = 2*size+1. Each sample's direction is the normalized
// offset, matching squareKernel's convention.
func shieldKernel(size int, extend, spacing float64) *kernel {
	samples := make([]kernelSample, 0, 2*size+1)
	for z := -size; z <= size; z++ {
		ox, oz := extend, float64(z)*spacing
		dir := geom.Vec2{X: ox, Z: oz}.Normalize()
		samples = append(samples, kernelSample{offsetX: ox, offsetZ: oz, dirX: dir.X, dirZ: dir.Z})
	}
	return &kernel{samples: samples}
}

// calculateAt implements spec.md §4.3's CalculateAt: it samples a "home"
// value vh at absPos/relPos (absF and relF may each be nil, contributing 0),
// then for every precomputed sample point transforms its local offset and
// direction into the world frame via axisX/axisZ, samples there, and
// accumulates direction' . (vt - vh). The result is divided by the sample
// count. If the kernel has zero samples, the zero vector is returned.
func (k *kernel) calculateAt(axisX, axisZ geom.Vec2, absF, relF gridfn.Sampler, absPos, relPos geom.Vec2, relAngle float64) geom.Vec2 {
	vh := 0.0
	if absF != nil {
		vh += absF.ValueAt(absPos.X, absPos.Z)
	}
	if relF != nil {
		rx, rz := gridfn.Rotate(relPos.X, relPos.Z, 0, 0, relAngle)
		vh += relF.ValueAt(rx, rz)
	}

	if len(k.samples) == 0 {
		return geom.Zero
	}

	var acc geom.Vec2
	for _, s := range k.samples {
		worldOffset := axisX.Scale(s.offsetX).Add(axisZ.Scale(s.offsetZ))
		worldDir := axisX.Scale(s.dirX).Add(axisZ.Scale(s.dirZ))

		samplePos := absPos.Add(worldOffset)
		vt := 0.0
		if absF != nil {
			vt += absF.ValueAt(samplePos.X, samplePos.Z)
		}
		if relF != nil {
			relSamplePos := relPos.Add(worldOffset)
			rx, rz := gridfn.Rotate(relSamplePos.X, relSamplePos.Z, 0, 0, relAngle)
			vt += relF.ValueAt(rx, rz)
		}

		acc = acc.Add(worldDir.Scale(vt - vh))
	}
	return acc.Scale(1 / float64(len(k.samples)))
}

// followKernel is the standard kernel used for "follow" steering: an 8-ring
// square lattice one cell wide.
var followKernel = squareKernel(1, 1)

// avoidOverlapKernel is the standard kernel used for overlap-avoidance
// steering: a forward-biased fan.
var avoidOverlapKernel = shieldKernel(2, 1, 1)
