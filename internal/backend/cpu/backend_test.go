package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create test backend.
func newTestBackend() *CPUBackend {
	return New()
}

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	t.Cleanup(x.Release)
	return x
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Contains(t, backend.Name(), "CPU")
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.GreaterOrEqual(t, backend.Workers(), 1)

	seq := NewWithConfig(parallel.Sequential())
	assert.Equal(t, 1, seq.Workers())
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := newTestBackend()

	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	result := backend.MatMul(a, b)
	defer result.Release()

	assert.Equal(t, tensor.Shape{2, 2}, result.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, result.Data())
}

func TestCPUBackend_MatMulColumnVector(t *testing.T) {
	// [out, in] @ [in, 1]: the shape every dense layer uses.
	backend := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 2})

	const out, in = 37, 11
	w := make([]float32, out*in)
	for i := range w {
		w[i] = float32(i%7) - 3
	}
	x := make([]float32, in)
	for i := range x {
		x[i] = float32(i) * 0.5
	}

	result := backend.MatMul(fromSlice(t, w, tensor.Shape{out, in}), fromSlice(t, x, tensor.Shape{in, 1}))
	defer result.Release()

	require.Equal(t, tensor.Shape{out, 1}, result.Shape())
	got := result.Data()
	for o := 0; o < out; o++ {
		var want float32
		for i := 0; i < in; i++ {
			want += w[o*in+i] * x[i]
		}
		assert.InDelta(t, want, got[o], 1e-4, "row %d", o)
	}
}

func TestCPUBackend_MatMulMismatch(t *testing.T) {
	backend := newTestBackend()
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	err := exceptions.TryCatch[error](func() { backend.MatMul(a, b) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matmul: shape mismatch [2,3] @ [2,2]")

	v := fromSlice(t, []float32{1, 2}, tensor.Shape{2})
	err = exceptions.TryCatch[error](func() { backend.MatMul(a, v) })
	assert.ErrorContains(t, err, "only 2D tensors supported")
}

func TestCPUBackend_Add(t *testing.T) {
	backend := newTestBackend()

	tests := []struct {
		name   string
		a      []float32
		aShape tensor.Shape
		b      []float32
		bShape tensor.Shape
		want   []float32
		shape  tensor.Shape
	}{
		{
			name: "SameShape",
			a:    []float32{1, 2, 3}, aShape: tensor.Shape{3, 1},
			b: []float32{10, 20, 30}, bShape: tensor.Shape{3, 1},
			want: []float32{11, 22, 33}, shape: tensor.Shape{3, 1},
		},
		{
			name: "ColumnBroadcast",
			a:    []float32{1, 2, 3, 4, 5, 6}, aShape: tensor.Shape{2, 3},
			b: []float32{10, 20}, bShape: tensor.Shape{2, 1},
			want: []float32{11, 12, 13, 24, 25, 26}, shape: tensor.Shape{2, 3},
		},
		{
			name: "RowBroadcast",
			a:    []float32{1, 2, 3, 4, 5, 6}, aShape: tensor.Shape{2, 3},
			b: []float32{10, 20, 30}, bShape: tensor.Shape{3},
			want: []float32{11, 22, 33, 14, 25, 36}, shape: tensor.Shape{2, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := backend.Add(fromSlice(t, tt.a, tt.aShape), fromSlice(t, tt.b, tt.bShape))
			defer result.Release()
			assert.Equal(t, tt.shape, result.Shape())
			assert.Equal(t, tt.want, result.Data())
		})
	}
}

func TestCPUBackend_AddDoesNotAliasInputs(t *testing.T) {
	backend := newTestBackend()
	a := fromSlice(t, []float32{1, 2}, tensor.Shape{2, 1})
	b := fromSlice(t, []float32{3, 4}, tensor.Shape{2, 1})

	result := backend.Add(a, b)
	defer result.Release()

	assert.Equal(t, []float32{1, 2}, a.Data())
	assert.Equal(t, []float32{4, 6}, result.Data())
}

func TestCPUBackend_MulOuter(t *testing.T) {
	// [3, 2] weights times a [1, 2] row of activations.
	backend := newTestBackend()
	w := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{3, 2})
	act := fromSlice(t, []float32{10, -1}, tensor.Shape{1, 2})

	result := backend.Mul(w, act)
	defer result.Release()

	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.Equal(t, []float32{10, -2, 30, -4, 50, -6}, result.Data())
}

func TestCPUBackend_BroadcastMismatch(t *testing.T) {
	backend := newTestBackend()
	a := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3, 1})
	b := fromSlice(t, []float32{1, 2}, tensor.Shape{2, 1})

	err := exceptions.TryCatch[error](func() { backend.Add(a, b) })
	assert.ErrorContains(t, err, "add: shapes not compatible")
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1})

	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	result := backend.Transpose(x)
	defer result.Release()
	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, result.Data())

	col := fromSlice(t, []float32{7, 8, 9}, tensor.Shape{3, 1})
	row := backend.Transpose(col)
	defer row.Release()
	assert.Equal(t, tensor.Shape{1, 3}, row.Shape())
	assert.Equal(t, []float32{7, 8, 9}, row.Data())
}

func TestCPUBackend_ReLU(t *testing.T) {
	backend := newTestBackend()
	x := fromSlice(t, []float32{-2, -0.5, 0, 0.5, 3}, tensor.Shape{5, 1})

	result := backend.ReLU(x)
	defer result.Release()
	assert.Equal(t, []float32{0, 0, 0, 0.5, 3}, result.Data())
	assert.Equal(t, []float32{-2, -0.5, 0, 0.5, 3}, x.Data())
}

func TestCPUBackend_Softmax(t *testing.T) {
	backend := newTestBackend()

	t.Run("Column", func(t *testing.T) {
		x := fromSlice(t, []float32{3, 4}, tensor.Shape{2, 1})
		result := backend.Softmax(x, 0)
		defer result.Release()
		got := result.Data()
		assert.InDelta(t, 0.2689, got[0], 1e-4)
		assert.InDelta(t, 0.7311, got[1], 1e-4)
	})

	t.Run("LastDim", func(t *testing.T) {
		x := fromSlice(t, []float32{1, 2, 3, 1, 1, 1}, tensor.Shape{2, 3})
		result := backend.Softmax(x, -1)
		defer result.Release()
		got := result.Data()
		assert.InDelta(t, 1.0, got[0]+got[1]+got[2], 1e-6)
		for i := 3; i < 6; i++ {
			assert.InDelta(t, 1.0/3.0, got[i], 1e-6)
		}
	})

	t.Run("LargeLogits", func(t *testing.T) {
		x := fromSlice(t, []float32{1000, 1001, 999}, tensor.Shape{3, 1})
		result := backend.Softmax(x, 0)
		defer result.Release()
		var sum float64
		for _, v := range result.Data() {
			assert.False(t, math.IsNaN(float64(v)))
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	})

	t.Run("BadDim", func(t *testing.T) {
		x := fromSlice(t, []float32{1, 2}, tensor.Shape{2, 1})
		err := exceptions.TryCatch[error](func() { backend.Softmax(x, 2) })
		assert.ErrorContains(t, err, "out of range")
	})
}

func TestCPUBackend_ResultsAreOwned(t *testing.T) {
	backend := newTestBackend()
	before := tensor.LiveBuffers()

	x, err := backend.FromSlice([]float32{1, -1}, tensor.Shape{2, 1})
	require.NoError(t, err)
	y := backend.ReLU(x)
	z := backend.Softmax(y, 0)
	assert.Equal(t, before+3, tensor.LiveBuffers())

	for _, r := range []*tensor.Tensor{x, y, z} {
		r.Release()
	}
	assert.Equal(t, before, tensor.LiveBuffers())
}

func BenchmarkMatMulDense(b *testing.B) {
	backend := New()
	w, _ := tensor.FromSlice(make([]float32, 128*784), tensor.Shape{128, 784})
	x, _ := tensor.FromSlice(make([]float32, 784), tensor.Shape{784, 1})
	defer w.Release()
	defer x.Release()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.MatMul(w, x).Release()
	}
}
