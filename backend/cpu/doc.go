// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the digits engine.
//
// # Overview
//
// This package implements the engine's operation set in Go:
//   - Pure Go implementation (no CGO)
//   - Row-parallel matrix multiplication
//   - Broadcasting add and multiply for rank-2 tensors
//   - ReLU and a numerically stable softmax along any dimension
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/digits/backend/cpu"
//	    "github.com/born-ml/digits/engine"
//	    "github.com/born-ml/digits/params"
//	)
//
//	func main() {
//	    layers, err := params.LoadFrom(ctx, params.FileSource{Path: "params.json"})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    e := engine.New(cpu.New())
//	    res, err := e.Infer(layers, input)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each operation allocates its
// own result and does not share mutable state.
package cpu
