// Package asset defines the narrow interfaces this engine consumes from
// its external collaborators — a glTF mesh/material loader, a debug-UI
// vertex stream producer, and a scene-graph matrix source — without owning
// any of their implementations (spec §1 explicitly scopes model parsing,
// scene graph, and debug-UI widget logic out of this module).
package asset

import "github.com/go-gl/mathgl/mgl32"

// Mesh is the renderable geometry handle a glTF loader hands back; this
// engine only needs enough to bind vertex/index buffers and push a model
// matrix, not the full asset graph.
type Mesh interface {
	VertexBufferHandle() uint64
	IndexBufferHandle() uint64
	IndexCount() uint32
	MaterialTag() string
}

// SkinnedMesh additionally exposes the joint matrices a
// ColoredGeometrySkinned draw call needs.
type SkinnedMesh interface {
	Mesh
	JointMatrices() []mgl32.Mat4
}

// DebugUIFrame is one frame's worth of immediate-mode vertex/index data, as
// produced by an external debug-UI library (e.g. an ImGui binding).
type DebugUIFrame interface {
	Vertices() []byte
	Indices() []uint16
	DrawCommands() []DebugUIDrawCommand
}

// DebugUIDrawCommand is one scissored draw call within a DebugUIFrame.
type DebugUIDrawCommand struct {
	ElemCount  uint32
	ClipRect   [4]float32
	TextureTag string
}

// SceneGraph supplies the per-frame matrices the render jobs read; owned
// and updated by the external game-logic layer during FrameLoop step 4.
type SceneGraph interface {
	CameraView() mgl32.Mat4
	CameraProjection() mgl32.Mat4
	LightDirection() mgl32.Vec3
	VisibleMeshes() []Mesh
}
