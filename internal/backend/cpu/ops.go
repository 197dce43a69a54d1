package cpu

import (
	"github.com/born-ml/digits/internal/parallel"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.Tensor) *tensor.Tensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.Tensor) *tensor.Tensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.Tensor, f func(x, y float32) float32) *tensor.Tensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	result := cpu.newResult(op, outShape)
	dst, src1, src2 := result.Data(), a.Data(), b.Data()

	if !needsBroadcast {
		// Fast path: same shape.
		parallel.ForRange(len(dst), func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = f(src1[i], src2[i])
			}
		}, cpu.elementwise())
		return result
	}

	outStrides := outShape.ComputeStrides()
	aStrides := tensor.BroadcastStrides(a.Shape(), outShape)
	bStrides := tensor.BroadcastStrides(b.Shape(), outShape)
	parallel.ForRange(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = f(src1[flatIndex(i, outStrides, aStrides)], src2[flatIndex(i, outStrides, bStrides)])
		}
	}, cpu.elementwise())
	return result
}

// flatIndex maps a flat output index to the flat index of a broadcast input.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	idx := 0
	for dim, s := range outStrides {
		coord := outIdx / s
		outIdx %= s
		idx += coord * inStrides[dim]
	}
	return idx
}

// Transpose swaps the axes of a 2D tensor.
func (cpu *CPUBackend) Transpose(t *tensor.Tensor) *tensor.Tensor {
	rows, cols := require2D("transpose", t)
	result := cpu.newResult("transpose", tensor.Shape{cols, rows})

	src, dst := t.Data(), result.Data()
	if rows == 1 || cols == 1 {
		// A vector's memory layout is unchanged.
		copy(dst, src)
		return result
	}
	parallel.ForRange(rows, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < cols; j++ {
				dst[j*rows+i] = src[i*cols+j]
			}
		}
	}, cpu.par)
	return result
}

// elementwise scales the chunk size so cheap per-element work is not
// split into goroutines smaller than a matmul row.
func (cpu *CPUBackend) elementwise() parallel.Config {
	cfg := cpu.par
	cfg.MinChunkSize = max(cfg.MinChunkSize, 4096)
	return cfg
}
