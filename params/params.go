// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package params loads pretrained dense-layer parameters.
//
// A parameter document is a JSON object mapping names to 2-D arrays. Keys
// starting with the weight prefix ("W") are weight matrices, keys starting
// with the bias prefix ("b") are bias column vectors. Keys are sorted
// byte-wise and the i-th weight is paired with the i-th bias, so "W0", "W1"
// pair with "b0", "b1".
//
// Example:
//
//	layers, err := params.LoadFrom(ctx, params.ParseSource("https://example.com/params.json"))
//	if err != nil {
//	    var loadErr *params.LoadError
//	    if errors.As(err, &loadErr) {
//	        log.Fatalf("bad parameters from %s: %v", loadErr.Source, loadErr.Err)
//	    }
//	}
package params

import (
	"context"
	"io"

	internalparams "github.com/born-ml/digits/internal/params"
)

// Default key prefixes.
const (
	DefaultWeightPrefix = internalparams.DefaultWeightPrefix
	DefaultBiasPrefix   = internalparams.DefaultBiasPrefix
)

// Parameter types.
type (
	RawParameterSet = internalparams.RawParameterSet
	Matrix          = internalparams.Matrix
	Layer           = internalparams.Layer
	Layers          = internalparams.Layers
	Loader          = internalparams.Loader
	LoadError       = internalparams.LoadError
)

// Sources of parameter documents.
type (
	Source     = internalparams.Source
	FileSource = internalparams.FileSource
	HTTPSource = internalparams.HTTPSource
)

// DefaultLoader uses the "W" and "b" prefixes.
var DefaultLoader = internalparams.DefaultLoader

// Load builds layers from raw with the default prefixes.
func Load(raw RawParameterSet) (Layers, error) {
	return internalparams.Load(raw)
}

// LoadFrom reads, decodes and loads the document at src with the default
// prefixes. Every failure is a *LoadError.
func LoadFrom(ctx context.Context, src Source) (Layers, error) {
	return internalparams.LoadFrom(ctx, src)
}

// ParseSource returns an HTTPSource for http(s) URLs and a FileSource otherwise.
func ParseSource(location string) Source {
	return internalparams.ParseSource(location)
}

// Decode parses a JSON parameter document.
func Decode(r io.Reader) (RawParameterSet, error) {
	return internalparams.Decode(r)
}
