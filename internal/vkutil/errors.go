// Package vkutil collects the small cross-cutting helpers every other
// internal package needs when talking to the Vulkan API: error wrapping,
// fatal-on-init-failure, and the C-string marshaling dance vulkan-go
// requires. Grounded on the teacher's errors.go/util.go (package asche).
package vkutil

import (
	"fmt"
	"log"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// IsError reports whether ret is a non-success Vulkan result.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError wraps a non-success vk.Result with the caller's stack frame.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %d", ret)
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Errorf("vulkan error: %d on %s", ret, name)
}

// Fatal logs err, if non-nil, and terminates the process. memory.Region.Allocate
// routes AllocationExhausted (spec §7) through this; InitFailure errors are
// returned to cmd/vkengine instead, which reports them and exits non-zero.
func Fatal(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	log.Fatalf("fatal: %v", err)
}

// CheckErr recovers a panic into *err, used by call sites that orPanic.
func CheckErr(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%+v", v)
	}
}

// OrPanic converts a non-nil error into a panic after running finalizers.
// Kept because the teacher's platform bring-up code (platform.go) leans on
// this pattern heavily during one-time instance/device setup.
func OrPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}
