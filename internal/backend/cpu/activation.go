package cpu

import (
	"math"

	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	result := cpu.newResult("relu", x.Shape())
	src, dst := x.Data(), result.Data()
	parallel.ForRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			if src[i] > 0 {
				dst[i] = src[i]
			}
		}
	}, cpu.elementwise())
	return result
}

// Softmax computes softmax along the specified dimension.
// Softmax(x_i) = exp(x_i) / sum(exp(x_j)) for all j in dimension.
func (cpu *CPUBackend) Softmax(x *tensor.Tensor, dim int) *tensor.Tensor {
	shape := x.Shape()
	ndim := len(shape)

	// Normalize dimension
	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		exceptions.Panicf("softmax: dimension %d out of range for tensor of rank %d", dim, ndim)
	}

	result := cpu.newResult("softmax", shape)
	softmaxFloat32(result.Data(), x.Data(), shape, dim)
	return result
}

func softmaxFloat32(dst, src []float32, shape tensor.Shape, dim int) {
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]

	// Number of "rows" (groups of elements that share softmax computation)
	numRows := shape.NumElements() / dimSize

	for row := 0; row < numRows; row++ {
		// Compute base index for this row
		baseIdx := 0
		remaining := row
		for i := len(shape) - 1; i >= 0; i-- {
			if i == dim {
				continue
			}
			coord := remaining % shape[i]
			remaining /= shape[i]
			baseIdx += coord * strides[i]
		}

		// Find max for numerical stability
		maxVal := float32(math.Inf(-1))
		for i := 0; i < dimSize; i++ {
			if v := src[baseIdx+i*dimStride]; v > maxVal {
				maxVal = v
			}
		}

		// Compute exp(x - max) and sum
		var sum float64
		for i := 0; i < dimSize; i++ {
			idx := baseIdx + i*dimStride
			expVal := math.Exp(float64(src[idx] - maxVal))
			dst[idx] = float32(expVal)
			sum += expVal
		}

		// Normalize
		for i := 0; i < dimSize; i++ {
			dst[baseIdx+i*dimStride] = float32(float64(dst[baseIdx+i*dimStride]) / sum)
		}
	}
}
