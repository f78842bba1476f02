// Package destruction implements the deferred pipeline destruction of spec
// §4.5: a rebuilt pipeline's old handle is enqueued with a countdown of
// SWAPCHAIN_COUNT frames instead of being destroyed immediately, so frames
// already in flight keep referencing it until they drain. Grounded on the
// teacher's swapchain.go/pools.go pattern of draining in-flight resources by
// frame count rather than a full device wait-idle.
package destruction

import vk "github.com/vulkan-go/vulkan"

// Entry is one pipeline (and its layout) awaiting destruction.
type Entry struct {
	Pipeline vk.Pipeline
	Layout   vk.PipelineLayout
	countdown int
}

// Queue holds every pending destruction. Not safe for concurrent use — all
// calls happen on the main thread during the frame epilogue (spec §4.5/§5).
type Queue struct {
	device       vk.Device
	initCountdown int
	entries      []Entry
}

// New creates a destruction queue whose entries start at initCountdown
// (normally config.SwapchainImageCount).
func New(device vk.Device, initCountdown int) *Queue {
	return &Queue{device: device, initCountdown: initCountdown}
}

// Enqueue schedules pipeline+layout for destruction after initCountdown more
// frame epilogues have run.
func (q *Queue) Enqueue(pipeline vk.Pipeline, layout vk.PipelineLayout) {
	if pipeline == vk.Pipeline(vk.NullHandle) {
		return
	}
	q.entries = append(q.entries, Entry{Pipeline: pipeline, Layout: layout, countdown: q.initCountdown})
}

// Tick decrements every countdown by one and destroys entries that reach
// zero. Called once per frame epilogue (spec §4.5 — "every frame epilogue
// decrements all countdowns; entries at zero are destroyed").
func (q *Queue) Tick() {
	live := q.entries[:0]
	for _, e := range q.entries {
		e.countdown--
		if e.countdown <= 0 {
			if e.Pipeline != vk.Pipeline(vk.NullHandle) {
				vk.DestroyPipeline(q.device, e.Pipeline, nil)
				vk.DestroyPipelineLayout(q.device, e.Layout, nil)
			}
			continue
		}
		live = append(live, e)
	}
	q.entries = live
}

// Pending returns the number of entries still awaiting destruction, used by
// tests and by the resize coordinator to confirm drainage.
func (q *Queue) Pending() int {
	return len(q.entries)
}

// DrainImmediately destroys every pending entry regardless of countdown.
// Only safe to call once the device is known idle (spec §4.10 resize path,
// or process shutdown) — it does not itself wait for in-flight frames.
func (q *Queue) DrainImmediately() {
	for _, e := range q.entries {
		vk.DestroyPipeline(q.device, e.Pipeline, nil)
		vk.DestroyPipelineLayout(q.device, e.Layout, nil)
	}
	q.entries = nil
}
