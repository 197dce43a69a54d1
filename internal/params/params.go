// Package params turns a JSON document of named matrices into the ordered
// list of dense layers the engine runs.
//
// Layer order comes only from sorting the keys: weights and biases are
// collected in ascending key order and paired by position. Producers must
// therefore name them so both streams sort the same way, e.g. W0, W1, ...
// and b0, b1, .... Note W10 sorts before W2; use zero padding past ten layers.
package params

import (
	"math"
	"sort"
	"strings"

	"github.com/born-ml/digits/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultWeightPrefix marks weight matrices.
	DefaultWeightPrefix = "W"
	// DefaultBiasPrefix marks bias vectors.
	DefaultBiasPrefix = "b"
)

// RawParameterSet maps a key to a 2-D numeric array (rows × cols).
type RawParameterSet map[string][][]float64

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float32
}

// Shape returns the matrix dimensions as a tensor shape.
func (m Matrix) Shape() tensor.Shape {
	return tensor.Shape{m.Rows, m.Cols}
}

// At returns the element at row r, column c.
func (m Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

// Layer is one affine transform z = Weight·a + Bias.
type Layer struct {
	Weight Matrix // [out, in]
	Bias   Matrix // [out, 1]
}

// Layers is the ordered parameter chain. It is immutable after loading and
// safe to share between goroutines.
type Layers []Layer

// Inputs returns the input size of the first layer, or 0 if empty.
func (ls Layers) Inputs() int {
	if len(ls) == 0 {
		return 0
	}
	return ls[0].Weight.Cols
}

// Outputs returns the number of output classes, or 0 if empty.
func (ls Layers) Outputs() int {
	if len(ls) == 0 {
		return 0
	}
	return ls[len(ls)-1].Weight.Rows
}

// NumParameters returns the total count of weights and biases.
func (ls Layers) NumParameters() int {
	n := 0
	for _, l := range ls {
		n += len(l.Weight.Data) + len(l.Bias.Data)
	}
	return n
}

// Loader builds Layers from a RawParameterSet.
type Loader struct {
	WeightPrefix string
	BiasPrefix   string
}

// DefaultLoader uses the W / b naming convention.
var DefaultLoader = Loader{WeightPrefix: DefaultWeightPrefix, BiasPrefix: DefaultBiasPrefix}

// Load builds Layers from raw using the default prefixes.
func Load(raw RawParameterSet) (Layers, error) {
	return DefaultLoader.Load(raw)
}

// Load sorts the keys of raw, splits them into weight and bias streams by
// prefix, and zips the streams. Keys matching neither prefix are ignored.
func (l Loader) Load(raw RawParameterSet) (Layers, error) {
	layers, err := l.build(raw)
	if err != nil {
		return nil, &LoadError{Source: "parameters", Err: err}
	}
	return layers, nil
}

func (l Loader) build(raw RawParameterSet) (Layers, error) {
	if l.WeightPrefix == "" || l.BiasPrefix == "" {
		return nil, errors.New("weight and bias prefixes must be non-empty")
	}
	if l.WeightPrefix == l.BiasPrefix {
		return nil, errors.Errorf("weight and bias prefixes are both %q", l.WeightPrefix)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var weights, biases []Matrix
	for _, k := range keys {
		isWeight := strings.HasPrefix(k, l.WeightPrefix)
		isBias := strings.HasPrefix(k, l.BiasPrefix)
		if isWeight && isBias {
			// One prefix extends the other; the longer one wins.
			isWeight = len(l.WeightPrefix) >= len(l.BiasPrefix)
			isBias = !isWeight
		}
		if !isWeight && !isBias {
			klog.V(2).Infof("params: ignoring key %q", k)
			continue
		}

		m, err := toMatrix(raw[k])
		if err != nil {
			return nil, errors.WithMessagef(err, "key %q", k)
		}
		if isWeight {
			weights = append(weights, m)
		} else {
			biases = append(biases, m)
		}
	}

	if len(weights) == 0 {
		return nil, errors.Errorf("no weight matrices with prefix %q", l.WeightPrefix)
	}
	if len(weights) != len(biases) {
		return nil, errors.Errorf("found %d weight matrices (%q) but %d bias vectors (%q)",
			len(weights), l.WeightPrefix, len(biases), l.BiasPrefix)
	}

	layers := make(Layers, len(weights))
	for i := range weights {
		layers[i] = Layer{Weight: weights[i], Bias: biases[i]}
	}
	return layers, nil
}

// toMatrix flattens a rectangular 2-D array into a row-major float32 matrix.
func toMatrix(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Matrix{}, errors.New("empty matrix")
	}
	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for r, row := range rows {
		if len(row) != cols {
			return Matrix{}, errors.Errorf("ragged matrix: row %d has %d columns, row 0 has %d", r, len(row), cols)
		}
		for c, v := range row {
			f := float32(v)
			if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
				return Matrix{}, errors.Errorf("value %g at [%d,%d] is not a finite float32", v, r, c)
			}
			data = append(data, f)
		}
	}
	return Matrix{Rows: len(rows), Cols: cols, Data: data}, nil
}
