package engine

import (
	"math"
	"time"
)

// NoPrediction marks an absent runner-up when the network has one output class.
const NoPrediction = -1

// Result holds everything one forward pass produced. The slices are owned by
// the caller and stay valid after the engine is reused.
type Result struct {
	// WeightActivations[i] is layer i's weights multiplied element-wise by its
	// input, laid out [out, in] row-major like the weight matrix:
	// WeightActivations[i][o*in+j] = W[o,j] * Activations[i][j]. It is not
	// the transposed [in, out] order. Nil when disabled.
	WeightActivations [][]float32

	// Activations[0] is the flattened input; Activations[i+1] is the output of layer i.
	Activations [][]float32

	Prediction1 int
	Prediction2 int

	// Elapsed is the wall time of the call.
	Elapsed time.Duration
}

// Probabilities returns the final activation, the softmax over classes.
func (r *Result) Probabilities() []float32 {
	if len(r.Activations) == 0 {
		return nil
	}
	return r.Activations[len(r.Activations)-1]
}

// Confidence returns the probability assigned to Prediction1.
func (r *Result) Confidence() float32 {
	probs := r.Probabilities()
	if r.Prediction1 < 0 || r.Prediction1 >= len(probs) {
		return 0
	}
	return probs[r.Prediction1]
}

// top2 returns the indices of the two largest values, highest first. Ties go
// to the lower index and NaN ranks below every number. second is
// NoPrediction when len(values) < 2.
func top2(values []float32) (first, second int) {
	first, second = NoPrediction, NoPrediction
	for i, v := range values {
		switch {
		case first == NoPrediction || above(v, values[first]):
			first, second = i, first
		case second == NoPrediction || above(v, values[second]):
			second = i
		}
	}
	return first, second
}

// above reports whether v ranks strictly above w.
func above(v, w float32) bool {
	if math.IsNaN(float64(v)) {
		return false
	}
	return v > w || math.IsNaN(float64(w))
}
