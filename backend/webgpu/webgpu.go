// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated inference.
//
// The native bindings are only wired on Windows. On other platforms New
// returns an error wrapping ErrUnavailable, so callers can fall back to the
// CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/digits/backend/cpu"
//	    "github.com/born-ml/digits/backend/webgpu"
//	    "github.com/born-ml/digits/engine"
//	)
//
//	func main() {
//	    var e *engine.Engine
//	    if gpu, err := webgpu.New(); err == nil {
//	        defer gpu.Release()
//	        e = engine.New(gpu)
//	    } else {
//	        e = engine.New(cpu.New())
//	    }
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/digits/internal/backend/webgpu"
	"github.com/born-ml/digits/internal/tensor"
)

// Backend represents the WebGPU backend implementation for GPU-accelerated
// forward passes.
type Backend = internalwebgpu.Backend

// ErrUnavailable is wrapped by the error of New when no adapter can be used.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
//
// This function initializes the WebGPU device and returns a backend
// ready for inference. Call Release() when done to free GPU resources.
//
// Returns an error wrapping ErrUnavailable if initialization fails
// (e.g., no compatible GPU or an unsupported platform).
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
