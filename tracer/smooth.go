package tracer

import (
	"math"

	"github.com/m00nl1ght-dev/terraingraph/pathgraph"
)

// linearDist implements spec.md §4.5 item 4's tent weight:
//
//	linear_dist(n,x) = (x < n/2 ? x+1 : n-x) / S
//	S = (floor(n/2) + n mod 2) * (floor(n/2) + 1)
//
// For every n >= 1, sum_{x=0}^{n-1} linearDist(n,x) == 1 (spec.md §8.9).
func linearDist(n, x int) float64 {
	if n <= 0 {
		return 0
	}
	half := n / 2
	mod := n % 2
	s := float64((half+mod)*(half+1))
	var numerator float64
	if float64(x) < float64(n)/2 {
		numerator = float64(x + 1)
	} else {
		numerator = float64(n - x)
	}
	return numerator / s
}

// tentWeight applies stepsPadding to linearDist: it shrinks the active window
// to [stepsPadding, stepsTotal-stepsPadding) and returns 0 outside it, so that
// the first and last stepsPadding steps contribute nothing (spec.md §4.5 item 4
// : "steps_padding symmetrically shrinks n and shifts the pointer").
func tentWeight(stepsTotal, stepsPadding, stepIndex int) float64 {
	n := stepsTotal - 2*stepsPadding
	if n <= 0 {
		return 0
	}
	xi := stepIndex - stepsPadding
	if xi < 0 || xi >= n {
		return 0
	}
	return linearDist(n, xi)
}

// smoothContribution returns the (extraValue, extraOffset) a SmoothDelta
// contributes at the given zero-based step index within its segment
// (spec.md §4.5 item 4). A nil SmoothDelta contributes nothing. When
// StepsTotal <= 0 the full delta is added at every step, per spec.md.
func smoothContribution(s *pathgraph.SmoothDelta, stepIndex int) (extraValue, extraOffset float64) {
	if s == nil {
		return 0, 0
	}
	if s.StepsTotal <= 0 {
		return s.ValueDelta, s.OffsetDelta
	}
	w := tentWeight(s.StepsTotal, s.StepsPadding, stepIndex-s.StepsStart)
	return s.ValueDelta * w, s.OffsetDelta * w
}

// fractionalTailWeights returns the multipliers applied to the last whole
// step and the final, possibly-partial step of a segment's trace, per
// spec.md §4.5 item 4: "frames that straddle the last whole step receive
// fractional weights per the ratios step/(step+length mod step) and
// (length mod step)/(step+length mod step)". When length is an exact
// multiple of step (or step<=0), both ratios are 1 and no adjustment is
// needed.
func fractionalTailWeights(step, length float64) (lastWhole, final float64) {
	if step <= 0 || length <= 0 {
		return 1, 1
	}
	r := math.Mod(length, step)
	if r < 1e-9 {
		return 1, 1
	}
	denom := step + r
	return step / denom, r / denom
}

// straddleWeight picks which of the two fractionalTailWeights ratios (if
// any) applies to the step currently being taken: dist is the distance at
// the start of the step, deltaD the step actually taken (already clipped to
// target), step the nominal step size, and target the loop's stopping
// distance. It returns 1 for every step except the last whole step before a
// partial final step (lastWhole) and that final partial step itself (final).
func straddleWeight(dist, deltaD, step, target, lastWhole, final float64) float64 {
	if lastWhole == 1 && final == 1 {
		return 1
	}
	if deltaD < step-1e-9 {
		return final
	}
	remainingAfter := target - (dist + deltaD)
	if remainingAfter > 1e-9 && remainingAfter < step-1e-9 {
		return lastWhole
	}
	return 1
}

// fullStepsCount is the number of non-padding steps a segment contributes
// when its SmoothDelta window spans stepsTotal steps: stepsTotal - 2*padding,
// floored at 0. It is used by the merge rewrite (spec.md §4.9 item 5) to
// proportion a distributed delta across a chain of parent segments.
func fullStepsCount(stepsTotal, stepsPadding int) int {
	n := stepsTotal - 2*stepsPadding
	if n < 0 {
		return 0
	}
	return n
}
