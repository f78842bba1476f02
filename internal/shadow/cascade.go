// Package shadow implements the ShadowCascadeComputer of spec §4.11:
// given camera view/projection and a light direction, produces N cascade
// view-projection matrices and split depths partitioning the view frustum
// logarithmically. Grounded on the original engine's cascade-shadow-map
// computation (original_source), expressed with go-gl/mathgl/mgl32 since the
// teacher's own xlab/linmath has no frustum-corner or bounding-sphere
// helpers.
package shadow

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Lambda is the logarithmic/uniform split blend factor (spec §4.11, empirically 0.95).
const Lambda = 0.95

// snapUnit is the shimmer-reduction grid size cascade extents are snapped to.
const snapUnit = 1.0 / 16.0

// Cascade is one computed shadow cascade: its view-projection matrix and the
// split depth the Color+Depth fragment shader uses to pick it.
type Cascade struct {
	ViewProj   mgl32.Mat4
	SplitDepth float32
}

// Compute produces count cascades from the camera's view/projection,
// near/far planes, and a unit light direction (spec §4.11 steps 1-5).
func Compute(view, proj mgl32.Mat4, near, far float32, lightDir mgl32.Vec3, count int) []Cascade {
	splits := splitDepths(near, far, count)

	invViewProj := proj.Mul4(view).Inv()

	cascades := make([]Cascade, count)
	prevSplit := near
	for i := 0; i < count; i++ {
		d := splits[i]
		corners := frustumCorners(invViewProj, normalizedSplit(prevSplit, near, far), normalizedSplit(d, near, far))
		center, radius := boundingSphere(corners)

		minExtent := mgl32.Vec3{-radius, -radius, -radius}
		maxExtent := mgl32.Vec3{radius, radius, radius}
		maxExtent = snapVec3(maxExtent, snapUnit)
		minExtent = snapVec3(minExtent, snapUnit)

		eye := center.Sub(lightDir.Mul(minExtent[2]))
		lookAt := mgl32.LookAtV(eye, center, mgl32.Vec3{0, 1, 0})
		ortho := mgl32.Ortho(minExtent.X(), maxExtent.X(), minExtent.Y(), maxExtent.Y(), -50, maxExtent.Z()-minExtent.Z())

		cascades[i] = Cascade{ViewProj: ortho.Mul4(lookAt), SplitDepth: d}
		prevSplit = d
	}
	return cascades
}

// splitDepths implements step 1: split i is log_i*Lambda + uniform_i*(1-Lambda),
// with log_i = near*(far/near)^p and uniform_i = near + (far-near)*p for
// p = (i+1)/count, returned as a view-space distance in (near, far]. Compute
// maps it to [0, 1] along the frustum edges with normalizedSplit.
func splitDepths(near, far float32, count int) []float32 {
	rng := far - near
	ratio := far / near

	splits := make([]float32, count)
	for i := 0; i < count; i++ {
		p := float32(i+1) / float32(count)
		logSplit := near * float32(math.Pow(float64(ratio), float64(p)))
		uniformSplit := near + rng*p
		splits[i] = Lambda*logSplit + (1-Lambda)*uniformSplit
	}
	return splits
}

func normalizedSplit(d, near, far float32) float32 {
	return (d - near) / (far - near)
}

// ndcFrustumCorners are the 8 NDC-space frustum corners, near face first.
var ndcFrustumCorners = [8]mgl32.Vec3{
	{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// frustumCorners implements step 2: unproject the 8 NDC corners to world
// space via the inverse of (projection * view), then interpolate along each
// near-to-far edge between the previous split and this cascade's split.
func frustumCorners(invViewProj mgl32.Mat4, prevSplit, split float32) [8]mgl32.Vec3 {
	var world [8]mgl32.Vec3
	for i, ndc := range ndcFrustumCorners {
		world[i] = unproject(invViewProj, ndc)
	}

	var corners [8]mgl32.Vec3
	for i := 0; i < 4; i++ {
		near := world[i]
		far := world[i+4]
		corners[i] = near.Add(far.Sub(near).Mul(prevSplit))
		corners[i+4] = near.Add(far.Sub(near).Mul(split))
	}
	return corners
}

func unproject(invViewProj mgl32.Mat4, ndc mgl32.Vec3) mgl32.Vec3 {
	clip := mgl32.Vec4{ndc.X(), ndc.Y(), ndc.Z(), 1}
	world := invViewProj.Mul4x1(clip)
	if world.W() == 0 {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{world.X() / world.W(), world.Y() / world.W(), world.Z() / world.W()}
}

// boundingSphere implements step 3: center is the average of the 8 corners,
// radius is the max distance from center to any corner.
func boundingSphere(corners [8]mgl32.Vec3) (center mgl32.Vec3, radius float32) {
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / 8.0)

	for _, c := range corners {
		if d := c.Sub(center).Len(); d > radius {
			radius = d
		}
	}
	return center, radius
}

// snapVec3 implements step 4: snap each component to the nearest multiple of unit.
func snapVec3(v mgl32.Vec3, unit float32) mgl32.Vec3 {
	return mgl32.Vec3{snapFloat(v.X(), unit), snapFloat(v.Y(), unit), snapFloat(v.Z(), unit)}
}

func snapFloat(v, unit float32) float32 {
	return float32(math.Round(float64(v/unit))) * unit
}
