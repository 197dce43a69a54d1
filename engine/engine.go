// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine runs the forward pass of a dense digit classifier.
//
// An Engine takes the ordered layers produced by the params package and one
// flattened 28x28 input, and returns every activation, every
// weight-activation product and the two most probable classes.
//
// Example:
//
//	e := engine.New(cpu.New())
//	res, err := e.Infer(layers, input)
//	switch {
//	case errors.Is(err, engine.ErrConcurrentInference):
//	    // Another call is running; drop this request.
//	case err != nil:
//	    log.Fatal(err)
//	default:
//	    fmt.Println(res.Prediction1, res.Prediction2)
//	}
package engine

import (
	internalengine "github.com/born-ml/digits/internal/engine"
	"github.com/born-ml/digits/internal/params"
	"github.com/born-ml/digits/internal/tensor"
)

// Engine executes forward passes on a backend. It is single-flight.
type Engine = internalengine.Engine

// Result holds the activations and predictions of one forward pass.
type Result = internalengine.Result

// Option configures an Engine.
type Option = internalengine.Option

// Backend is the set of operations an engine needs from a compute device.
type Backend = tensor.Backend

// Error types returned by Infer.
type (
	ShapeMismatchError = internalengine.ShapeMismatchError
	BackendError       = internalengine.BackendError
)

// ErrConcurrentInference is returned when Infer is called while another
// call on the same Engine is still running.
var ErrConcurrentInference = internalengine.ErrConcurrentInference

// NoPrediction marks an absent runner-up when there is only one class.
const NoPrediction = internalengine.NoPrediction

// New creates an engine on backend.
func New(backend Backend, opts ...Option) *Engine {
	return internalengine.New(backend, opts...)
}

// WithoutWeightActivations skips the weight-activation diagnostic.
func WithoutWeightActivations() Option {
	return internalengine.WithoutWeightActivations()
}

// WithWeightActivations turns the weight-activation diagnostic on or off.
func WithWeightActivations(enabled bool) Option {
	return internalengine.WithWeightActivations(enabled)
}

// CheckShapes verifies that an input of length inputLen flows through layers.
func CheckShapes(layers params.Layers, inputLen int) error {
	return internalengine.CheckShapes(layers, inputLen)
}
