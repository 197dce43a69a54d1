// Package webgpu implements the WebGPU backend for GPU-accelerated forward passes.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import "github.com/pkg/errors"

// ErrUnavailable is returned by New when no WebGPU adapter can be used,
// either because the platform is unsupported or the native library is missing.
var ErrUnavailable = errors.New("webgpu: not available")
