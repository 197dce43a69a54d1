// Package engine runs the forward pass of a chain of dense layers over one
// input vector and returns every intermediate activation.
//
// An Engine is single-flight: while one Infer call is running, further calls
// fail immediately with ErrConcurrentInference instead of waiting.
package engine

import (
	"time"

	"github.com/born-ml/digits/internal/grid"
	"github.com/born-ml/digits/internal/params"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"k8s.io/klog/v2"
)

// Engine executes forward passes on a backend.
type Engine struct {
	backend           tensor.Backend
	guard             *semaphore.Weighted
	weightActivations bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutWeightActivations skips the weight-activation diagnostic; the
// corresponding Result slots are nil.
func WithoutWeightActivations() Option {
	return func(e *Engine) { e.weightActivations = false }
}

// WithWeightActivations turns the weight-activation diagnostic on or off.
func WithWeightActivations(enabled bool) Option {
	return func(e *Engine) { e.weightActivations = enabled }
}

// New creates an engine on backend.
func New(backend tensor.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:           backend,
		guard:             semaphore.NewWeighted(1),
		weightActivations: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the backend the engine runs on.
func (e *Engine) Backend() tensor.Backend {
	return e.backend
}

// InferGrid runs Infer on the flattened grid.
func (e *Engine) InferGrid(layers params.Layers, g *grid.Grid) (*Result, error) {
	return e.Infer(layers, g.Flatten())
}

// Infer runs layers over input, a column vector of length layers[0].Weight.Cols.
// Hidden layers use ReLU and the last layer uses softmax.
//
// Every tensor allocated during the call is released before it returns, on
// every path. Infer does not block: if the engine is busy it returns
// ErrConcurrentInference.
func (e *Engine) Infer(layers params.Layers, input []float32) (*Result, error) {
	if !e.guard.TryAcquire(1) {
		klog.V(1).Info("engine: busy, dropping inference request")
		return nil, ErrConcurrentInference
	}
	defer e.guard.Release(1)

	if err := CheckShapes(layers, len(input)); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{
		Activations:       make([][]float32, len(layers)+1),
		WeightActivations: make([][]float32, len(layers)),
	}

	// Readbacks run in the group; the scope is closed only once they finish.
	scope := tensor.NewScope()
	var readbacks errgroup.Group
	defer func() {
		_ = readbacks.Wait()
		scope.Close()
	}()

	var backendErr error
	if r := exceptions.Try(func() { e.forward(layers, input, scope, &readbacks, res) }); r != nil {
		backendErr = asError(r)
	}
	if err := readbacks.Wait(); err != nil && backendErr == nil {
		backendErr = err
	}
	if backendErr != nil {
		klog.Warningf("engine: inference on %s failed: %v", e.backend.Name(), backendErr)
		return nil, &BackendError{Backend: e.backend.Name(), Err: backendErr}
	}

	res.Prediction1, res.Prediction2 = top2(res.Probabilities())
	res.Elapsed = time.Since(start)
	klog.V(1).Infof("engine: predicted %d (p=%.4f), runner-up %d, %d layers on %s in %s",
		res.Prediction1, res.Confidence(), res.Prediction2, len(layers), e.backend.Name(), res.Elapsed)
	return res, nil
}

// forward issues the kernels layer by layer. Each recorded tensor's readback
// is submitted once no later kernel reads it; its slot in res is fixed here,
// so completion order does not matter.
func (e *Engine) forward(layers params.Layers, input []float32, scope *tensor.Scope, readbacks *errgroup.Group, res *Result) {
	b := e.backend
	a := scope.Track(uploaded(b.FromSlice(input, tensor.Shape{len(input), 1})))

	for i, layer := range layers {
		w := scope.Track(uploaded(b.FromSlice(layer.Weight.Data, layer.Weight.Shape())))
		bias := scope.Track(uploaded(b.FromSlice(layer.Bias.Data, layer.Bias.Shape())))

		if e.weightActivations {
			// [out, in] ⊙ [1, in] broadcast over rows.
			row := scope.Track(b.Transpose(a))
			wa := scope.Track(b.Mul(w, row))
			submitReadback(readbacks, &res.WeightActivations[i], wa)
		}

		z := scope.Track(b.Add(scope.Track(b.MatMul(w, a)), bias))
		submitReadback(readbacks, &res.Activations[i], a)

		if i == len(layers)-1 {
			zRow := scope.Track(b.Transpose(z))
			probs := scope.Track(b.Softmax(zRow, 1))
			a = scope.Track(b.Transpose(probs))
		} else {
			a = scope.Track(b.ReLU(z))
		}
		klog.V(2).Infof("engine: layer %d: W%v · a -> %v", i, layer.Weight.Shape(), a.Shape())
	}
	submitReadback(readbacks, &res.Activations[len(layers)], a)
}

// submitReadback copies t into *slot on the group.
func submitReadback(g *errgroup.Group, slot *[]float32, t *tensor.Tensor) {
	g.Go(func() error {
		data, err := t.Read()
		if err != nil {
			return errors.WithMessage(err, "readback")
		}
		*slot = data
		return nil
	})
}

// CheckShapes verifies that an input of length inputLen flows through layers.
// It returns a *ShapeMismatchError describing the first inconsistency.
func CheckShapes(layers params.Layers, inputLen int) error {
	if len(layers) == 0 {
		return &ShapeMismatchError{Layer: -1, Kind: "layer count", Want: 1, Got: 0}
	}
	prev := inputLen
	for i, l := range layers {
		kind := "weight cols vs previous layer rows"
		if i == 0 {
			kind = "input length vs weight cols"
		}
		if l.Weight.Cols != prev {
			return &ShapeMismatchError{Layer: i, Kind: kind, Want: l.Weight.Cols, Got: prev}
		}
		if l.Bias.Rows != l.Weight.Rows {
			return &ShapeMismatchError{Layer: i, Kind: "bias rows vs weight rows", Want: l.Weight.Rows, Got: l.Bias.Rows}
		}
		if l.Bias.Cols != 1 {
			return &ShapeMismatchError{Layer: i, Kind: "bias cols", Want: 1, Got: l.Bias.Cols}
		}
		if n := l.Weight.Rows * l.Weight.Cols; len(l.Weight.Data) != n {
			return &ShapeMismatchError{Layer: i, Kind: "weight data length", Want: n, Got: len(l.Weight.Data)}
		}
		if len(l.Bias.Data) != l.Bias.Rows {
			return &ShapeMismatchError{Layer: i, Kind: "bias data length", Want: l.Bias.Rows, Got: len(l.Bias.Data)}
		}
		prev = l.Weight.Rows
	}
	return nil
}

// uploaded panics with err so that upload failures surface like kernel failures.
func uploaded(t *tensor.Tensor, err error) *tensor.Tensor {
	if err != nil {
		panic(errors.WithMessage(err, "upload"))
	}
	return t
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.Errorf("%v", r)
}
