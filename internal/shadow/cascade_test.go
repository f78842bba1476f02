package shadow

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompute_SplitDepthsStrictlyIncrease covers property P7.
func TestCompute_SplitDepthsStrictlyIncrease(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 5, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	light := mgl32.Vec3{0.3, -1, 0.2}.Normalize()

	cascades := Compute(view, proj, 0.1, 100, light, 4)
	require.Len(t, cascades, 4)

	for i := 1; i < len(cascades); i++ {
		assert.Greater(t, cascades[i].SplitDepth, cascades[i-1].SplitDepth, "splits must strictly increase")
	}
	assert.Less(t, cascades[len(cascades)-1].SplitDepth, float32(100.1), "last split must not exceed far plane by much")
}

func TestSplitDepths_BlendsLogAndUniform(t *testing.T) {
	splits := splitDepths(1, 100, 4)
	require.Len(t, splits, 4)
	for i := 1; i < len(splits); i++ {
		assert.Greater(t, splits[i], splits[i-1])
	}
}

func TestBoundingSphere_ContainsAllCorners(t *testing.T) {
	corners := [8]mgl32.Vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	center, radius := boundingSphere(corners)
	assert.InDelta(t, 0, center.X(), 1e-5)
	assert.InDelta(t, 0, center.Y(), 1e-5)
	assert.InDelta(t, 0, center.Z(), 1e-5)
	for _, c := range corners {
		assert.LessOrEqual(t, c.Sub(center).Len(), radius+1e-5)
	}
}

func TestSnapFloat_RoundsToNearestUnit(t *testing.T) {
	assert.InDelta(t, 0.5, snapFloat(0.52, snapUnit*8), 1e-6)
}
