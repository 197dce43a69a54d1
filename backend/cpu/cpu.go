// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/digits/internal/backend/cpu"
	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// ParallelConfig controls how the CPU kernels split rows across goroutines.
type ParallelConfig = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using one worker per physical core.
//
// Example:
//
//	import (
//	    "github.com/born-ml/digits/backend/cpu"
//	    "github.com/born-ml/digits/engine"
//	)
//
//	func main() {
//	    e := engine.New(cpu.New())
//	    res, err := e.Infer(layers, input)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with an explicit parallelism setting.
// Use parallel settings with Enabled=false to run every kernel on the
// calling goroutine.
func NewWithConfig(cfg ParallelConfig) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultParallelConfig returns the parallelism used by New.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}
