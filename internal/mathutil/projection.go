// Package mathutil holds the handful of matrix helpers shared across
// packages that don't belong to any one subsystem. Grounded on the
// teacher's math.go VulkanProjectionMat, adapted from xlab/linmath to
// mathgl/mgl32 since every other matrix consumer in this engine (shadow
// cascades, the asset interfaces) already standardizes on mathgl.
package mathutil

import "github.com/go-gl/mathgl/mgl32"

// VulkanClipFixup converts an OpenGL-convention projection matrix (Y-up
// clip space, [-1, 1] depth range) to Vulkan's convention (Y-down clip
// space, [0, 1] depth range).
func VulkanClipFixup(proj mgl32.Mat4) mgl32.Mat4 {
	fixup := mgl32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return fixup.Mul4(proj)
}
