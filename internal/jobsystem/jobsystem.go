// Package jobsystem implements the JobSystem of spec §4.7: a small fixed
// worker pool recording secondary command buffers off the main thread, with
// results collected into a deterministic (pass, ordering) sequence before
// concatenation into the primary command buffer. Grounded on the teacher's
// use of per-thread command pools (pools.go) generalized into a worker pool,
// since the teacher itself is single-threaded.
package jobsystem

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashforge/vkengine/internal/vkutil"
)

// Pass is the render pass a job's secondary command buffer targets.
type Pass int

const (
	PassShadow Pass = iota
	PassSkybox
	PassColorDepth
	PassGUI
)

// Job is a unit of recording work: given the frame slot and a secondary
// command buffer allocated from the worker's own command pool, record into it.
type Job struct {
	Pass     Pass
	Cascade  int // only meaningful for PassShadow
	Ordering int
	Record   func(frameSlot int, cb vk.CommandBuffer) error
}

// Result is a completed job's secondary command buffer, tagged for sorting.
type Result struct {
	Pass     Pass
	Cascade  int
	Ordering int
	CB       vk.CommandBuffer
}

// worker owns one command pool; it never shares it with another worker
// (spec §5 — "Command pools: one per worker").
type worker struct {
	device vk.Device
	pool   vk.CommandPool
}

// System is the fixed worker pool plus the bounded job queue and the result
// collector. The spec calls the collector a "lock-free result stack"; this
// implementation resolves that as a mutex-guarded slice, since Go has no
// portable lock-free stack in the standard library and the actual access
// pattern (N producers during the frame, one consumer after the barrier)
// makes a mutex effectively uncontended.
type System struct {
	device      vk.Device
	workers     []*worker
	jobs        chan Job
	pending     sync.WaitGroup
	currentSlot int32

	mu      sync.Mutex
	results []Result
}

// New creates workerCount workers and starts them immediately; they run for
// the lifetime of the System, pulling jobs off the shared bounded queue
// across every frame (spec §4.7 — "typically hardware_concurrency - 1
// workers plus the main thread").
func New(device vk.Device, graphicsFamily uint32, workerCount int) (*System, error) {
	s := &System{device: device, jobs: make(chan Job, 256)}

	for i := 0; i < workerCount; i++ {
		var pool vk.CommandPool
		ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: graphicsFamily,
		}, nil, &pool)
		if vkutil.IsError(ret) {
			return nil, fmt.Errorf("creating worker %d command pool: %w", i, vkutil.NewError(ret))
		}
		w := &worker{device: device, pool: pool}
		s.workers = append(s.workers, w)
		go s.runWorker(w)
	}
	return s, nil
}

// ResetCommandBuffers implements reset_command_buffers(frame-slot): resets
// every worker's pool on the main thread before jobs for the new frame are
// dispatched (spec §4.7).
func (s *System) ResetCommandBuffers() error {
	for i, w := range s.workers {
		if ret := vk.ResetCommandPool(s.device, w.pool, 0); vkutil.IsError(ret) {
			return fmt.Errorf("resetting worker %d command pool: %w", i, vkutil.NewError(ret))
		}
	}
	return nil
}

// Start implements start(): clears the previous frame's results and records
// which frame slot's UBO ranges jobs submitted from here on should read.
func (s *System) Start(frameSlot int) {
	atomic.StoreInt32(&s.currentSlot, int32(frameSlot))
	s.mu.Lock()
	s.results = s.results[:0]
	s.mu.Unlock()
}

func (s *System) runWorker(w *worker) {
	for job := range s.jobs {
		cb, err := s.allocateSecondary(w)
		if err == nil {
			frameSlot := int(atomic.LoadInt32(&s.currentSlot))
			if err := job.Record(frameSlot, cb); err == nil {
				s.mu.Lock()
				s.results = append(s.results, Result{Pass: job.Pass, Cascade: job.Cascade, Ordering: job.Ordering, CB: cb})
				s.mu.Unlock()
			}
		}
		s.pending.Done()
	}
}

func (s *System) allocateSecondary(w *worker) (vk.CommandBuffer, error) {
	cbs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(w.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        w.pool,
		Level:              vk.CommandBufferLevelSecondary,
		CommandBufferCount: 1,
	}, cbs)
	if vkutil.IsError(ret) {
		return nil, vkutil.NewError(ret)
	}
	return cbs[0], nil
}

// Submit pushes a job onto the bounded queue. Called on the main thread
// during frame dispatch (spec §4.7/§4.8 steps 4 and 6), after Start.
func (s *System) Submit(j Job) {
	s.pending.Add(1)
	s.jobs <- j
}

// WaitForFinish implements wait_for_finish(): blocks the main thread until
// every job submitted since the last Start has completed, then returns the
// results stable-sorted by (pass, cascade, ordering) — the concatenation
// order the primary command buffer assembly (spec §4.8 step 7) replays.
func (s *System) WaitForFinish() []Result {
	s.pending.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]Result, len(s.results))
	copy(sorted, s.results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Pass != sorted[j].Pass {
			return sorted[i].Pass < sorted[j].Pass
		}
		if sorted[i].Cascade != sorted[j].Cascade {
			return sorted[i].Cascade < sorted[j].Cascade
		}
		return sorted[i].Ordering < sorted[j].Ordering
	})
	return sorted
}

// Destroy stops every worker and releases its command pool. Not safe to
// call while a frame is in flight.
func (s *System) Destroy() {
	close(s.jobs)
	for _, w := range s.workers {
		vk.DestroyCommandPool(s.device, w.pool, nil)
	}
}
